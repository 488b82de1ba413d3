// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/marketman/internal/auth"
	"github.com/hitoshi/marketman/internal/mailer"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/repository"
	"github.com/hitoshi/marketman/internal/security"
	"github.com/hitoshi/marketman/internal/storage"
)

// RegistrationIDPrefix は自己登録の登録IDに要求するプレフィックス。
const RegistrationIDPrefix = "REG"

// MinPasswordLength はパスワードの最低文字数。
const MinPasswordLength = 8

// AccountProvisioner は決済プロバイダー上の連結アカウント作成インターフェース。
type AccountProvisioner interface {
	// CreateAccount は連結アカウントを作成し、アカウントIDを返す。
	CreateAccount(ctx context.Context, email string) (string, error)
}

// RegisterInput は新規登録のリクエスト内容。
type RegisterInput struct {
	Username       string
	Name           string
	Email          string
	RegistrationID string
	Password       string
	PhoneNumber    string
}

// UpdateInput はプロフィール更新のリクエスト内容。
// nilフィールドは変更しない。
type UpdateInput struct {
	Username    *string
	Name        *string
	Bio         *string
	PhoneNumber *string
}

// Service はユーザー管理のサービス層。
// 登録・プロフィール管理・退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	provisioner AccountProvisioner
	sender      mailer.Sender
	sanitizer   security.ContentSanitizerService
	uploader    storage.Uploader
}

// NewService はServiceの新しいインスタンスを生成する。
// provisionerとuploaderはnil可（該当機能が無効化される）。
func NewService(
	userRepo repository.UserRepository,
	provisioner AccountProvisioner,
	sender mailer.Sender,
	sanitizer security.ContentSanitizerService,
	uploader storage.Uploader,
) *Service {
	return &Service{
		userRepo:    userRepo,
		provisioner: provisioner,
		sender:      sender,
		sanitizer:   sanitizer,
		uploader:    uploader,
	}
}

// Register は新規ユーザーを登録する。
// 検証順: 必須項目 → メール形状 → 登録IDプレフィックス → パスワード長 → 重複。
// いずれかに失敗した場合はレコードを作成しない。
// 連結アカウントの作成とウェルカムメールはベストエフォートで、
// 失敗しても登録自体は成功する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.RegistrationID = strings.TrimSpace(input.RegistrationID)

	if input.Username == "" || input.Name == "" {
		return nil, model.NewInvalidRequestError("ユーザー名と氏名は必須です")
	}
	if !auth.EmailPattern.MatchString(input.Email) {
		return nil, model.NewInvalidEmailError(input.Email)
	}
	if !strings.HasPrefix(input.RegistrationID, RegistrationIDPrefix) {
		return nil, model.NewInvalidRegistrationIDError(RegistrationIDPrefix)
	}
	if len(input.Password) < MinPasswordLength {
		return nil, model.NewPasswordTooShortError(MinPasswordLength)
	}

	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	existing, err = s.userRepo.FindByRegistrationID(ctx, input.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateRegistrationIDError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:             uuid.New().String(),
		Username:       s.sanitizer.Sanitize(input.Username),
		Name:           s.sanitizer.Sanitize(input.Name),
		Email:          input.Email,
		RegistrationID: input.RegistrationID,
		PasswordHash:   string(hash),
		Status:         model.UserStatusActive,
		Role:           model.UserRoleUser,
		PhoneNumber:    input.PhoneNumber,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// 連結アカウントの作成（ベストエフォート）
	if s.provisioner != nil {
		accountID, err := s.provisioner.CreateAccount(ctx, user.Email)
		if err != nil {
			slog.Warn("連結アカウントの作成に失敗しました",
				slog.String("email", user.Email),
				slog.String("error", err.Error()),
			)
		} else {
			user.StripeAccountID = accountID
		}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	// ウェルカムメール（ベストエフォート）
	if err := s.sender.Send(ctx, user.Email,
		"登録ありがとうございます",
		fmt.Sprintf("%s様\n\nアカウントの登録が完了しました。登録ID: %s", user.Name, user.RegistrationID),
	); err != nil {
		slog.Warn("ウェルカムメールの送信に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("新規ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.String("registration_id", user.RegistrationID),
	)

	return user, nil
}

// Get は指定IDのユーザーを取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// List は全ユーザーを取得する。管理者専用（認可はハンドラー層で行う）。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Update はプロフィール情報を部分更新する。
// 本人または管理者のみ実行できる（認可はハンドラー層で行う）。
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		user.Username = s.sanitizer.Sanitize(*input.Username)
	}
	if input.Name != nil {
		user.Name = s.sanitizer.Sanitize(*input.Name)
	}
	if input.Bio != nil {
		user.Bio = s.sanitizer.Sanitize(*input.Bio)
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = *input.PhoneNumber
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return user, nil
}

// UploadProfileImage はプロフィール画像をアップロードし、URLを保存する。
func (s *Service) UploadProfileImage(ctx context.Context, userID, filename, contentType string, size int64, body io.Reader) (string, error) {
	if s.uploader == nil {
		return "", model.NewInvalidRequestError("画像アップロードは現在利用できません")
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	url, err := s.uploader.Upload(ctx, filename, contentType, size, body)
	if err != nil {
		return "", err
	}

	user.ProfileImage = url
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("プロフィール画像の保存に失敗しました: %w", err)
	}

	slog.Info("プロフィール画像を更新しました",
		slog.String("user_id", userID),
	)
	return url, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 出品・メッセージはCASCADE削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}
