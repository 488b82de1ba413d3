package auth

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/repository"
)

// EmailPattern はメールアドレスの形状判定に使う。
// ログイン識別子がこの形状に一致すればメールアドレスとして扱い、
// 一致しなければ登録IDとして扱う。
var EmailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token string
	User  *model.User
}

// Service はパスワード認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenManager) *Service {
	return &Service{userRepo: userRepo, tokens: tokens}
}

// Login はメールアドレスまたは登録IDとパスワードで認証し、トークンを発行する。
// 識別子のメール形状判定で検索方法を切り替える。
// ユーザー不在とパスワード不一致はどちらもINVALID_CREDENTIALSを返し、区別しない。
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, model.NewInvalidRequestError("識別子とパスワードは必須です")
	}

	var user *model.User
	var err error
	if EmailPattern.MatchString(identifier) {
		user, err = s.userRepo.FindByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.FindByRegistrationID(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if user.Status != model.UserStatusActive {
		return nil, model.NewForbiddenError()
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &LoginResult{Token: token, User: user}, nil
}

// CurrentUser はトークンのクレームからユーザーを取得する。
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
