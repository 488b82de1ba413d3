package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
)

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	// CreateCheckoutSession はカート内容からチェックアウトセッションを作成する。
	CreateCheckoutSession(ctx context.Context, items []model.CartItem) (*model.CheckoutSession, error)
	// CreateAccountLink は出品者のオンボーディング用リンクを作成する。
	CreateAccountLink(ctx context.Context, userID string) (string, error)
}

// PaymentHandler は決済のHTTPハンドラー。
type PaymentHandler struct {
	service PaymentServiceInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// cartItemRequest はチェックアウト対象の1商品。
type cartItemRequest struct {
	PostID    string `json:"post_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	CreatorID string `json:"creator_id"`
}

// checkoutRequest はチェックアウトセッション作成リクエストのボディ。
type checkoutRequest struct {
	Items []cartItemRequest `json:"items"`
}

// CreateCheckoutSession はチェックアウトセッション作成を処理する。
// POST /api/payments/create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	items := make([]model.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = model.CartItem{
			PostID:    item.PostID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			CreatorID: item.CreatorID,
		}
	}

	session, err := h.service.CreateCheckoutSession(r.Context(), items)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":  session.SessionID,
		"session_url": session.SessionURL,
	})
}

// Connect は出品者のオンボーディング用アカウントリンクを発行する。
// POST /api/payments/stripe/connect
func (h *PaymentHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	url, err := h.service.CreateAccountLink(r.Context(), userID)
	if err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"onboarding_url": url})
}
