// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/marketman/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュや内部フラグは含めない。
type userResponse struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	RegistrationID     string    `json:"registration_id"`
	Role               string    `json:"role"`
	Status             string    `json:"status"`
	Bio                string    `json:"bio"`
	PhoneNumber        string    `json:"phone_number"`
	ProfileImage       string    `json:"profile_image"`
	StripeConnected    bool      `json:"stripe_connected"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Username:           u.Username,
		Name:               u.Name,
		Email:              u.Email,
		RegistrationID:     u.RegistrationID,
		Role:               string(u.Role),
		Status:             string(u.Status),
		Bio:                u.Bio,
		PhoneNumber:        u.PhoneNumber,
		ProfileImage:       u.ProfileImage,
		StripeConnected:    u.StripeConnected,
		OnboardingComplete: u.StripeOnboardingComplete,
		CreatedAt:          u.CreatedAt,
	}
}

// postResponse は出品情報のAPIレスポンス。
type postResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	Status      string    `json:"status"`
	IsPremium   bool      `json:"is_premium"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:          p.ID,
		Name:        p.Name,
		Image:       p.Image,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
		Status:      string(p.Status),
		IsPremium:   p.IsPremium,
		CreatorID:   p.CreatorID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// postPageResponse はページネーション付き出品一覧のAPIレスポンス。
type postPageResponse struct {
	TotalPosts  int            `json:"total_posts"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
	Posts       []postResponse `json:"posts"`
}

func toPostPageResponse(page *model.PostPage) postPageResponse {
	posts := make([]postResponse, len(page.Posts))
	for i, p := range page.Posts {
		posts[i] = toPostResponse(p)
	}
	return postPageResponse{
		TotalPosts:  page.TotalPosts,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		Posts:       posts,
	}
}

// messageResponse はチャットメッセージのAPIレスポンス。
type messageResponse struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:       m.ID,
		ChatID:   m.ChatID,
		SenderID: m.SenderID,
		Content:  m.Content,
		SentAt:   m.SentAt,
	}
}

// chatSummaryResponse はチャット一覧表示用のAPIレスポンス。
type chatSummaryResponse struct {
	ID               string           `json:"id"`
	Participants     []string         `json:"participants"`
	OtherParticipant string           `json:"other_participant"`
	LastMessage      *messageResponse `json:"last_message"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func toChatSummaryResponse(s *model.ChatSummary) chatSummaryResponse {
	resp := chatSummaryResponse{
		ID:               s.ID,
		Participants:     s.Participants,
		OtherParticipant: s.OtherParticipant,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.LastMessage != nil {
		last := toMessageResponse(s.LastMessage)
		resp.LastMessage = &last
	}
	return resp
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
