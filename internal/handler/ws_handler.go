package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/realtime"
)

// WSHandler はWebSocket接続のHTTPハンドラー。
// ブラウザのWebSocket APIはカスタムヘッダーを付けられないため、
// トークンはクエリパラメータでも受け付ける。
type WSHandler struct {
	hub      *realtime.Hub
	verifier middleware.TokenVerifier
	upgrader websocket.Upgrader
}

// NewWSHandler はWSHandlerを生成する。
func NewWSHandler(hub *realtime.Hub, verifier middleware.TokenVerifier, allowedOrigin string) *WSHandler {
	return &WSHandler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Serve はWebSocket接続を確立し、切断までイベントを中継する。
// GET /ws?token=<アクセストークン>
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
			token = header[7:]
		}
	}
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeは失敗時に自身でエラーレスポンスを書き込む
		slog.Warn("websocket upgrade failed",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
		return
	}

	h.hub.HandleConnection(r.Context(), conn, claims.UserID, model.UserRole(claims.Role))
}
