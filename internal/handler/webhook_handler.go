package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
)

// maxWebhookBytes はwebhookペイロードのボディ上限。
const maxWebhookBytes = 1 << 20

// WebhookProcessorInterface はwebhookハンドラーが必要とする処理インターフェース。
type WebhookProcessorInterface interface {
	// HandleEvent は署名を検証してイベントを処理する。
	HandleEvent(ctx context.Context, payload []byte, sigHeader string) error
}

// WebhookHandler は決済プロバイダーからのwebhookを受けるHTTPハンドラー。
// 認証ミドルウェアの外に配置し、署名検証のみで保護する。
type WebhookHandler struct {
	processor WebhookProcessorInterface
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(processor WebhookProcessorInterface) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Handle はwebhookイベントを処理する。
// POST /webhook
// 署名検証は生のリクエストボディに対して行うため、ボディを変形せず読み込む。
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの読み込みに失敗しました"))
		return
	}

	if err := h.processor.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		middleware.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
