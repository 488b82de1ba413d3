package handler

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/hitoshi/marketman/internal/auth"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/post"
	"github.com/hitoshi/marketman/internal/user"
)

// mockAuthService はAuthServiceInterfaceのテスト用モック。
type mockAuthService struct {
	loginFunc func(ctx context.Context, identifier, password string) (*auth.LoginResult, error)
}

func (m *mockAuthService) Login(ctx context.Context, identifier, password string) (*auth.LoginResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, identifier, password)
	}
	return &auth.LoginResult{Token: "test-token", User: testUser("user-1", model.UserRoleUser)}, nil
}

// mockUserService はUserServiceInterfaceのテスト用モック。
type mockUserService struct {
	registerFunc func(ctx context.Context, input user.RegisterInput) (*model.User, error)
	getFunc      func(ctx context.Context, id string) (*model.User, error)
	listFunc     func(ctx context.Context) ([]*model.User, error)
	updateFunc   func(ctx context.Context, id string, input user.UpdateInput) (*model.User, error)
	uploadFunc   func(ctx context.Context, userID, filename, contentType string, size int64, body io.Reader) (string, error)
	withdrawFunc func(ctx context.Context, userID string) error
}

func (m *mockUserService) Register(ctx context.Context, input user.RegisterInput) (*model.User, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, input)
	}
	return testUser("user-1", model.UserRoleUser), nil
}

func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return testUser(id, model.UserRoleUser), nil
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return []*model.User{testUser("user-1", model.UserRoleUser)}, nil
}

func (m *mockUserService) Update(ctx context.Context, id string, input user.UpdateInput) (*model.User, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, input)
	}
	return testUser(id, model.UserRoleUser), nil
}

func (m *mockUserService) UploadProfileImage(ctx context.Context, userID, filename, contentType string, size int64, body io.Reader) (string, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, userID, filename, contentType, size, body)
	}
	return "https://storage.example.com/profiles/" + userID + ".jpg", nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFunc != nil {
		return m.withdrawFunc(ctx, userID)
	}
	return nil
}

// mockPostService はPostServiceInterfaceのテスト用モック。
type mockPostService struct {
	createFunc        func(ctx context.Context, creatorID string, input post.CreateInput, imageFilename, imageContentType string, imageSize int64, imageBody io.Reader) (*model.Post, error)
	getFunc           func(ctx context.Context, id string) (*model.Post, error)
	listFunc          func(ctx context.Context, filter model.PostFilter) (*model.PostPage, error)
	listByCreatorFunc func(ctx context.Context, creatorID string) ([]*model.Post, error)
	updateFunc        func(ctx context.Context, postID, callerID string, input post.UpdateInput) (*model.Post, error)
	deleteFunc        func(ctx context.Context, postID, callerID string, callerRole model.UserRole) error
	boostFunc         func(ctx context.Context, postID, callerID string) (*model.Post, error)
}

func (m *mockPostService) Create(ctx context.Context, creatorID string, input post.CreateInput, imageFilename, imageContentType string, imageSize int64, imageBody io.Reader) (*model.Post, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, creatorID, input, imageFilename, imageContentType, imageSize, imageBody)
	}
	return testPost("post-1", creatorID), nil
}

func (m *mockPostService) Get(ctx context.Context, id string) (*model.Post, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return testPost(id, "user-1"), nil
}

func (m *mockPostService) List(ctx context.Context, filter model.PostFilter) (*model.PostPage, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return &model.PostPage{TotalPosts: 1, TotalPages: 1, CurrentPage: 1, Posts: []*model.Post{testPost("post-1", "user-1")}}, nil
}

func (m *mockPostService) ListByCreator(ctx context.Context, creatorID string) ([]*model.Post, error) {
	if m.listByCreatorFunc != nil {
		return m.listByCreatorFunc(ctx, creatorID)
	}
	return []*model.Post{testPost("post-1", creatorID)}, nil
}

func (m *mockPostService) Update(ctx context.Context, postID, callerID string, input post.UpdateInput) (*model.Post, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, postID, callerID, input)
	}
	return testPost(postID, callerID), nil
}

func (m *mockPostService) Delete(ctx context.Context, postID, callerID string, callerRole model.UserRole) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, postID, callerID, callerRole)
	}
	return nil
}

func (m *mockPostService) Boost(ctx context.Context, postID, callerID string) (*model.Post, error) {
	if m.boostFunc != nil {
		return m.boostFunc(ctx, postID, callerID)
	}
	p := testPost(postID, callerID)
	p.IsPremium = true
	return p, nil
}

// mockChatService はChatServiceInterfaceのテスト用モック。
type mockChatService struct {
	createFunc        func(ctx context.Context, callerID string, participants []string) (*model.Chat, error)
	addMessageFunc    func(ctx context.Context, chatID, senderID, content string) (*model.Message, error)
	listUserChatsFunc func(ctx context.Context, userID string) ([]*model.ChatSummary, error)
	getMessagesFunc   func(ctx context.Context, chatID, callerID string) ([]*model.Message, error)
}

func (m *mockChatService) Create(ctx context.Context, callerID string, participants []string) (*model.Chat, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, callerID, participants)
	}
	return &model.Chat{ID: "chat-1", Participants: participants}, nil
}

func (m *mockChatService) AddMessage(ctx context.Context, chatID, senderID, content string) (*model.Message, error) {
	if m.addMessageFunc != nil {
		return m.addMessageFunc(ctx, chatID, senderID, content)
	}
	return &model.Message{ID: "msg-1", ChatID: chatID, SenderID: senderID, Content: content, SentAt: time.Now()}, nil
}

func (m *mockChatService) ListUserChats(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	if m.listUserChatsFunc != nil {
		return m.listUserChatsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockChatService) GetMessages(ctx context.Context, chatID, callerID string) ([]*model.Message, error) {
	if m.getMessagesFunc != nil {
		return m.getMessagesFunc(ctx, chatID, callerID)
	}
	return nil, nil
}

// mockPaymentService はPaymentServiceInterfaceのテスト用モック。
type mockPaymentService struct {
	checkoutFunc    func(ctx context.Context, items []model.CartItem) (*model.CheckoutSession, error)
	accountLinkFunc func(ctx context.Context, userID string) (string, error)
}

func (m *mockPaymentService) CreateCheckoutSession(ctx context.Context, items []model.CartItem) (*model.CheckoutSession, error) {
	if m.checkoutFunc != nil {
		return m.checkoutFunc(ctx, items)
	}
	return &model.CheckoutSession{SessionID: "cs_test", SessionURL: "https://checkout.example.com/cs_test"}, nil
}

func (m *mockPaymentService) CreateAccountLink(ctx context.Context, userID string) (string, error) {
	if m.accountLinkFunc != nil {
		return m.accountLinkFunc(ctx, userID)
	}
	return "https://connect.example.com/onboarding", nil
}

// mockWebhookProcessor はWebhookProcessorInterfaceのテスト用モック。
type mockWebhookProcessor struct {
	handleFunc func(ctx context.Context, payload []byte, sigHeader string) error
}

func (m *mockWebhookProcessor) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if m.handleFunc != nil {
		return m.handleFunc(ctx, payload, sigHeader)
	}
	return nil
}

func testUser(id string, role model.UserRole) *model.User {
	return &model.User{
		ID:             id,
		Username:       "taro",
		Name:           "山田太郎",
		Email:          id + "@example.com",
		RegistrationID: "REG-0001",
		PasswordHash:   "$2a$10$secret",
		Status:         model.UserStatusActive,
		Role:           role,
		CreatedAt:      time.Now(),
	}
}

func testPost(id, creatorID string) *model.Post {
	return &model.Post{
		ID:        id,
		Name:      "テスト出品",
		Category:  "electronics",
		Price:     1000,
		Stock:     3,
		Status:    model.PostStatusPublished,
		CreatorID: creatorID,
		CreatedAt: time.Now(),
	}
}

func bodyContains(body, substr string) bool {
	return strings.Contains(body, substr)
}
