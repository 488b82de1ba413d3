package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/hitoshi/marketman/internal/auth"
	"github.com/hitoshi/marketman/internal/chat"
	"github.com/hitoshi/marketman/internal/config"
	"github.com/hitoshi/marketman/internal/database"
	"github.com/hitoshi/marketman/internal/handler"
	"github.com/hitoshi/marketman/internal/logger"
	"github.com/hitoshi/marketman/internal/mailer"
	"github.com/hitoshi/marketman/internal/metrics"
	"github.com/hitoshi/marketman/internal/middleware"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/payment"
	"github.com/hitoshi/marketman/internal/post"
	"github.com/hitoshi/marketman/internal/realtime"
	"github.com/hitoshi/marketman/internal/repository"
	"github.com/hitoshi/marketman/internal/security"
	"github.com/hitoshi/marketman/internal/storage"
	"github.com/hitoshi/marketman/internal/user"
	"github.com/hitoshi/marketman/internal/worker/cleanup"
)

// seedAdminEmail と seedAdminRegistrationID はseedコマンドが作成する管理者の識別子。
const (
	seedAdminEmail          = "admin@example.com"
	seedAdminRegistrationID = "ADM-0001"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	chatRepo := repository.NewPostgresChatRepo(db)
	eventRepo := repository.NewPostgresWebhookEventRepo(db)

	// 3. 横断サービスの初期化
	sanitizer := security.NewContentSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	var uploader storage.Uploader
	if cfg.S3Enabled() {
		s3, err := storage.NewS3Uploader(ctx, storage.S3Config{
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			MaxSize:         cfg.UploadMaxSize,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 uploader: %w", err)
		}
		uploader = s3
	} else {
		slog.Warn("S3 is not configured, image upload is disabled")
	}

	var sender mailer.Sender = mailer.NopSender{}
	if cfg.SMTPEnabled() {
		smtp, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize SMTP sender: %w", err)
		}
		sender = smtp
	} else {
		slog.Warn("SMTP is not configured, mail sending is disabled")
	}

	// 4. ドメインサービスの初期化
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	authService := auth.NewService(userRepo, tokens)

	stripeClient := payment.NewStripeClient(cfg.StripeSecretKey)
	paymentService := payment.NewService(stripeClient, userRepo, collector, payment.ServiceConfig{
		Currency:   cfg.Currency,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		RefreshURL: cfg.ConnectRefreshURL,
		ReturnURL:  cfg.ConnectReturnURL,
	})

	userService := user.NewService(userRepo, paymentService, sender, sanitizer, uploader)
	postService := post.NewService(postRepo, sanitizer, uploader)

	hub := realtime.NewHub()
	hub.OnClientCountChange(collector.SetWebsocketConnections)
	chatService := chat.NewService(chatRepo, sanitizer, hub)

	processor := payment.NewProcessor(
		stripeClient, userRepo, postRepo, eventRepo,
		hub, sender, collector,
		cfg.StripeWebhookSecret, cfg.Currency,
	)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Middlewares: []func(next http.Handler) http.Handler{
			middleware.NewLoggingMiddleware(slog.Default()),
			middleware.NewMetricsMiddleware(collector),
		},

		AuthService:      authService,
		UserService:      userService,
		PostService:      postService,
		ChatService:      chatService,
		PaymentService:   paymentService,
		WebhookProcessor: processor,
		WSHandler:        handler.NewWSHandler(hub, tokens, cfg.CORSAllowedOrigin),

		MetricsHandler: metrics.Handler(registry),
		HealthCheck:    healthCheckHandler(db),
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// rateLimiterConfig はconfigのreq/min単位の値をレートリミッター設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitLogin > 0 {
		rlCfg.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
		rlCfg.LoginBurst = cfg.RateLimitLogin
	}
	if cfg.RateLimitCheckout > 0 {
		rlCfg.CheckoutRate = rate.Limit(float64(cfg.RateLimitCheckout) / 60.0)
		rlCfg.CheckoutBurst = cfg.RateLimitCheckout
	}
	return rlCfg
}

// healthCheckHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func healthCheckHandler(db interface {
	PingContext(ctx context.Context) error
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、webhookイベント台帳のクリーンアップスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	eventRepo := repository.NewPostgresWebhookEventRepo(db)
	cleanupJob := cleanup.NewCleanupJob(eventRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.WebhookEventRetentionDays
	scheduler := cleanup.NewScheduler(cleanupJob, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("retention_days", cleanupJob.RetentionDays),
	)

	// クリーンアップスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, 24*time.Hour)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed は管理者ユーザーの初期データを投入する。
// 既に存在する場合は何もしない（冪等）。
// パスワードはSEED_ADMIN_PASSWORD環境変数から読み込む。
func runSeed(cfg *config.Config) error {
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		return fmt.Errorf("SEED_ADMIN_PASSWORD is not set")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userRepo := repository.NewPostgresUserRepo(db)

	existing, err := userRepo.FindByEmail(ctx, seedAdminEmail)
	if err != nil {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}
	if existing != nil {
		slog.Info("admin user already exists, skipping seed",
			slog.String("email", seedAdminEmail),
		)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &model.User{
		ID:              uuid.New().String(),
		Username:        "admin",
		Name:            "管理者",
		Email:           seedAdminEmail,
		RegistrationID:  seedAdminRegistrationID,
		PasswordHash:    string(hash),
		Status:          model.UserStatusActive,
		Role:            model.UserRoleAdmin,
		IsEmailVerified: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("admin user seeded",
		slog.String("email", seedAdminEmail),
		slog.String("registration_id", seedAdminRegistrationID),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
