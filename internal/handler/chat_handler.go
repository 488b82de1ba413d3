package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	// Create は参加者集合のチャットを作成する。
	// 同じ参加者集合のチャットが既にあればそれを返す。
	Create(ctx context.Context, callerID string, participants []string) (*model.Chat, error)
	// AddMessage はチャットにメッセージを追加し、他の参加者へ通知する。
	AddMessage(ctx context.Context, chatID, senderID, content string) (*model.Message, error)
	// ListUserChats はユーザーが参加する全チャットの一覧投影を返す。
	ListUserChats(ctx context.Context, userID string) ([]*model.ChatSummary, error)
	// GetMessages はチャットの全メッセージを返す。参加者のみ閲覧できる。
	GetMessages(ctx context.Context, chatID, callerID string) ([]*model.Message, error)
}

// ChatHandler はチャットのHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// createChatRequest はチャット作成リクエストのボディ。
type createChatRequest struct {
	Participants []string `json:"participants"`
}

// addMessageRequest はメッセージ追加リクエストのボディ。
type addMessageRequest struct {
	Content string `json:"content"`
}

// chatResponse はチャット情報のAPIレスポンス。
type chatResponse struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
}

// ListUserChats は認証済みユーザーのチャット一覧を返す。
// GET /api/chats/user
func (h *ChatHandler) ListUserChats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summaries, err := h.service.ListUserChats(r.Context(), userID)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	resp := make([]chatSummaryResponse, len(summaries))
	for i, s := range summaries {
		resp[i] = toChatSummaryResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はチャット作成を処理する。
// POST /api/chats/create
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	chat, err := h.service.Create(r.Context(), userID, req.Participants)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, chatResponse{
		ID:           chat.ID,
		Participants: chat.Participants,
	})
}

// GetMessages はチャットのメッセージ一覧を返す。
// GET /api/chats/{chatId}/messages
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	messages, err := h.service.GetMessages(r.Context(), chi.URLParam(r, "chatId"), userID)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	resp := make([]messageResponse, len(messages))
	for i, m := range messages {
		resp[i] = toMessageResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddMessage はチャットへのメッセージ追加を処理する。
// PUT /api/chats/update/{chatId}
func (h *ChatHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req addMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	msg, err := h.service.AddMessage(r.Context(), chi.URLParam(r, "chatId"), userID, req.Content)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}
