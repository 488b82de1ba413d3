package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Middlewares       []func(next http.Handler) http.Handler // ログ・メトリクス等の横断ミドルウェア

	// サービス
	AuthService      AuthServiceInterface
	UserService      UserServiceInterface
	PostService      PostServiceInterface
	ChatService      ChatServiceInterface
	PaymentService   PaymentServiceInterface
	WebhookProcessor WebhookProcessorInterface
	WSHandler        *WSHandler

	// 運用エンドポイント
	MetricsHandler http.Handler
	HealthCheck    http.HandlerFunc
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → (ログ・メトリクス) → Auth → RateLimit(General)
//
// webhook・ログイン・ユーザー登録・ヘルスチェックは認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	for _, mw := range deps.Middlewares {
		r.Use(mw)
	}

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	postHandler := NewPostHandler(deps.PostService)
	chatHandler := NewChatHandler(deps.ChatService)
	paymentHandler := NewPaymentHandler(deps.PaymentService)
	webhookHandler := NewWebhookHandler(deps.WebhookProcessor)

	// --- 認証不要のルート ---

	// ログイン（試行レート制限付き）
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/api/login", authHandler.Login)

	// ユーザー登録
	r.Post("/api/users/register", userHandler.Register)

	// 決済プロバイダーwebhook（署名検証で保護）
	r.Post("/webhook", webhookHandler.Handle)

	// 運用エンドポイント
	if deps.HealthCheck != nil {
		r.Get("/health", deps.HealthCheck)
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// WebSocket（トークンはクエリパラメータで検証）
	if deps.WSHandler != nil {
		r.Get("/ws", deps.WSHandler.Serve)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			// GET /api/users/all - 管理者専用
			r.With(middleware.NewRequireRoleMiddleware(model.UserRoleAdmin)).Get("/all", userHandler.List)

			r.Get("/me", userHandler.Me)
			r.Put("/update/{id}", userHandler.Update)
			r.Delete("/delete/{id}", userHandler.Delete)
			r.Post("/upload-profile", userHandler.UploadProfile)
		})

		// 出品管理
		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", postHandler.List)
			r.Get("/post/{userId}", postHandler.ListByUser)
			r.Post("/create", postHandler.Create)

			r.Route("/{postId}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Put("/", postHandler.Update)
				r.Delete("/", postHandler.Delete)
				r.Post("/boost", postHandler.Boost)
			})
		})

		// チャット
		r.Route("/api/chats", func(r chi.Router) {
			r.Get("/user", chatHandler.ListUserChats)
			r.Post("/create", chatHandler.Create)
			r.Get("/{chatId}/messages", chatHandler.GetMessages)
			r.Put("/update/{chatId}", chatHandler.AddMessage)
		})

		// 決済
		r.Route("/api/payments", func(r chi.Router) {
			// チェックアウト作成は専用レート制限を追加
			r.With(deps.RateLimiter.CheckoutMiddleware()).Post("/create-checkout-session", paymentHandler.CreateCheckoutSession)
			r.Post("/stripe/connect", paymentHandler.Connect)
		})
	})

	return r
}
