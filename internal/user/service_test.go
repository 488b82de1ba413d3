package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/marketman/internal/mailer"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn             func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn          func(ctx context.Context, email string) (*model.User, error)
	findByRegistrationIDFn func(ctx context.Context, registrationID string) (*model.User, error)
	listFn                 func(ctx context.Context) ([]*model.User, error)
	createFn               func(ctx context.Context, user *model.User) error
	updateFn               func(ctx context.Context, user *model.User) error
	deleteByIDFn           func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByRegistrationID(ctx context.Context, registrationID string) (*model.User, error) {
	if m.findByRegistrationIDFn != nil {
		return m.findByRegistrationIDFn(ctx, registrationID)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByStripeAccountID(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateStripeAccount(_ context.Context, _ string, _ *model.StripeAccountUpdate) error {
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockProvisioner struct {
	createAccountFn func(ctx context.Context, email string) (string, error)
}

func (m *mockProvisioner) CreateAccount(ctx context.Context, email string) (string, error) {
	if m.createAccountFn != nil {
		return m.createAccountFn(ctx, email)
	}
	return "acct_test", nil
}

type mockSender struct {
	sent []string // 件名を記録
	err  error
}

func (m *mockSender) Send(_ context.Context, _, subject, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, subject)
	return nil
}

type mockUploader struct {
	uploadFn func(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error)
}

func (m *mockUploader) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, filename, contentType, size, body)
	}
	return "https://bucket.s3.example.com/uploads/1-" + filename, nil
}

func newTestService(repo *mockUserRepo) *Service {
	return NewService(repo, &mockProvisioner{}, &mockSender{}, security.NewContentSanitizer(), &mockUploader{})
}

func validInput() RegisterInput {
	return RegisterInput{
		Username:       "taro",
		Name:           "Taro Tanaka",
		Email:          "taro@example.com",
		RegistrationID: "REG12345",
		Password:       "password123",
	}
}

// --- Register ---

// 登録の検証テーブル: 失敗時はレコードを作成しないことを検証
func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name          string
		modify        func(*RegisterInput)
		existingEmail *model.User
		existingRegID *model.User
		wantCode      string
	}{
		{
			name:     "ユーザー名なし",
			modify:   func(in *RegisterInput) { in.Username = "" },
			wantCode: model.ErrCodeInvalidRequest,
		},
		{
			name:     "メール形状不正",
			modify:   func(in *RegisterInput) { in.Email = "not-an-email" },
			wantCode: model.ErrCodeInvalidEmail,
		},
		{
			name:     "メールにドメインドットなし",
			modify:   func(in *RegisterInput) { in.Email = "taro@example" },
			wantCode: model.ErrCodeInvalidEmail,
		},
		{
			name:     "登録IDプレフィックス不正",
			modify:   func(in *RegisterInput) { in.RegistrationID = "XYZ12345" },
			wantCode: model.ErrCodeInvalidRegistID,
		},
		{
			name:     "パスワード7文字",
			modify:   func(in *RegisterInput) { in.Password = "short77" },
			wantCode: model.ErrCodePasswordTooShort,
		},
		{
			name:          "メール重複",
			modify:        func(_ *RegisterInput) {},
			existingEmail: &model.User{ID: "other", Email: "taro@example.com"},
			wantCode:      model.ErrCodeDuplicateEmail,
		},
		{
			name:          "登録ID重複",
			modify:        func(_ *RegisterInput) {},
			existingRegID: &model.User{ID: "other", RegistrationID: "REG12345"},
			wantCode:      model.ErrCodeDuplicateRegistID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			repo := &mockUserRepo{
				findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
					return tt.existingEmail, nil
				},
				findByRegistrationIDFn: func(_ context.Context, _ string) (*model.User, error) {
					return tt.existingRegID, nil
				},
				createFn: func(_ context.Context, _ *model.User) error {
					created = true
					return nil
				},
			}
			svc := newTestService(repo)

			input := validInput()
			tt.modify(&input)

			_, err := svc.Register(context.Background(), input)

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if created {
				t.Error("user record should not be created on validation failure")
			}
		})
	}
}

// 正常登録時にbcryptハッシュが保存され、平文パスワードが残らないことを検証
func TestRegister_Succeeds_HashesPassword(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	sender := &mockSender{}
	svc := NewService(repo, &mockProvisioner{}, sender, security.NewContentSanitizer(), nil)

	user, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if created == nil {
		t.Fatal("expected user record to be created")
	}
	if created.PasswordHash == "password123" {
		t.Error("password must not be stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password123")); err != nil {
		t.Errorf("stored hash does not match original password: %v", err)
	}
	if user.Role != model.UserRoleUser {
		t.Errorf("role = %q, want %q", user.Role, model.UserRoleUser)
	}
	if user.Status != model.UserStatusActive {
		t.Errorf("status = %q, want %q", user.Status, model.UserStatusActive)
	}
	if user.StripeAccountID != "acct_test" {
		t.Errorf("stripe account ID = %q, want acct_test", user.StripeAccountID)
	}
	if len(sender.sent) != 1 {
		t.Errorf("welcome mail count = %d, want 1", len(sender.sent))
	}
}

// 連結アカウント作成の失敗が登録を妨げないことを検証（ベストエフォート）
func TestRegister_ProvisionerFailure_StillSucceeds(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	provisioner := &mockProvisioner{
		createAccountFn: func(_ context.Context, _ string) (string, error) {
			return "", fmt.Errorf("provider unavailable")
		},
	}
	svc := NewService(repo, provisioner, &mockSender{}, security.NewContentSanitizer(), nil)

	user, err := svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register should succeed despite provisioner failure: %v", err)
	}
	if created == nil {
		t.Fatal("expected user record to be created")
	}
	if user.StripeAccountID != "" {
		t.Errorf("stripe account ID = %q, want empty", user.StripeAccountID)
	}
}

// メール送信失敗が登録を妨げないことを検証（ベストエフォート）
func TestRegister_MailFailure_StillSucceeds(t *testing.T) {
	repo := &mockUserRepo{}
	sender := &mockSender{err: fmt.Errorf("smtp down")}
	svc := NewService(repo, &mockProvisioner{}, sender, security.NewContentSanitizer(), nil)

	if _, err := svc.Register(context.Background(), validInput()); err != nil {
		t.Fatalf("Register should succeed despite mail failure: %v", err)
	}
}

// ユーザー名・氏名がサニタイズされることを検証
func TestRegister_SanitizesNames(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	svc := newTestService(repo)

	input := validInput()
	input.Username = `<script>alert(1)</script>taro`
	input.Name = "<b>Taro</b>"

	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if strings.Contains(created.Username, "<") {
		t.Errorf("username not sanitized: %q", created.Username)
	}
	if created.Name != "Taro" {
		t.Errorf("name = %q, want Taro", created.Name)
	}
}

// --- Get / List / Update / Withdraw ---

// 存在しないユーザーの取得がUSER_NOT_FOUNDを返すことを検証
func TestGet_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.Get(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}

// Updateのnilフィールドが既存の値を維持することを検証
func TestUpdate_PartialUpdate(t *testing.T) {
	existing := &model.User{
		ID:          "user-1",
		Username:    "taro",
		Name:        "Taro Tanaka",
		Bio:         "古いプロフィール",
		PhoneNumber: "090-0000-0000",
	}
	var updated *model.User
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.User, error) {
			u := *existing
			return &u, nil
		},
		updateFn: func(_ context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}
	svc := newTestService(repo)

	newBio := "新しいプロフィール"
	_, err := svc.Update(context.Background(), "user-1", UpdateInput{Bio: &newBio})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if updated.Bio != "新しいプロフィール" {
		t.Errorf("bio = %q, want 新しいプロフィール", updated.Bio)
	}
	if updated.Username != "taro" {
		t.Errorf("username should be unchanged: %q", updated.Username)
	}
	if updated.PhoneNumber != "090-0000-0000" {
		t.Errorf("phone number should be unchanged: %q", updated.PhoneNumber)
	}
}

// プロフィール画像アップロードがURLを保存することを検証
func TestUploadProfileImage_SavesURL(t *testing.T) {
	existing := &model.User{ID: "user-1", Username: "taro"}
	var updated *model.User
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.User, error) {
			u := *existing
			return &u, nil
		},
		updateFn: func(_ context.Context, user *model.User) error {
			updated = user
			return nil
		},
	}
	svc := newTestService(repo)

	url, err := svc.UploadProfileImage(context.Background(), "user-1",
		"avatar.png", "image/png", 1024, strings.NewReader("fake-image"))
	if err != nil {
		t.Fatalf("UploadProfileImage failed: %v", err)
	}
	if url == "" {
		t.Fatal("expected non-empty URL")
	}
	if updated.ProfileImage != url {
		t.Errorf("profile image = %q, want %q", updated.ProfileImage, url)
	}
}

// アップローダー未設定時にエラーを返すことを検証
func TestUploadProfileImage_UploaderDisabled(t *testing.T) {
	svc := NewService(&mockUserRepo{}, nil, &mockSender{}, security.NewContentSanitizer(), nil)

	_, err := svc.UploadProfileImage(context.Background(), "user-1",
		"avatar.png", "image/png", 1024, strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error when uploader is not configured")
	}
}

// 退会処理がユーザーを削除することを検証
func TestWithdraw_DeletesUser(t *testing.T) {
	deleted := ""
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestService(repo)

	if err := svc.Withdraw(context.Background(), "user-1"); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if deleted != "user-1" {
		t.Errorf("deleted ID = %q, want user-1", deleted)
	}
}

// 存在しないユーザーの退会がUSER_NOT_FOUNDを返すことを検証
func TestWithdraw_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	err := svc.Withdraw(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}

// mailerパッケージのインターフェース適合確認
var _ mailer.Sender = (*mockSender)(nil)
