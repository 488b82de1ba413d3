// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret string
	JWTExpiry time.Duration

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string // ISO通貨コード（小文字）
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	ConnectRefreshURL   string // オンボーディング中断時の再開URL
	ConnectReturnURL    string // オンボーディング完了後の戻りURL

	// S3
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3Bucket           string
	S3Endpoint         string // S3互換サービス用。空の場合はAWS標準エンドポイント

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	// Rate Limit
	RateLimitGeneral  int // req/min/user
	RateLimitLogin    int // req/min/IP
	RateLimitCheckout int // req/min/user

	// Upload
	UploadMaxSize int64

	// Webhook
	WebhookEventRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	if cfg.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}

	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	if cfg.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// S3（未設定の場合、画像アップロードは起動時に無効化される）
	cfg.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.AWSSecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.AWSRegion = getEnvString("AWS_REGION", "ap-southeast-2")
	cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
	cfg.S3Endpoint = os.Getenv("AWS_S3_ENDPOINT")

	// SMTP（未設定の場合、メール送信は無効化される）
	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUser = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.MailFrom = getEnvString("MAIL_FROM", cfg.SMTPUser)

	// Optional fields with defaults
	cfg.JWTExpiry = getEnvDuration("JWT_EXPIRY", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.RateLimitCheckout = getEnvInt("RATE_LIMIT_CHECKOUT", 20)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 5242880)
	cfg.WebhookEventRetentionDays = getEnvInt("WEBHOOK_EVENT_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	// Stripe（リダイレクトURLのデフォルトはフロントエンドのオリジンから導出する）
	cfg.Currency = getEnvString("CURRENCY", "aud")
	cfg.CheckoutSuccessURL = getEnvString("CHECKOUT_SUCCESS_URL", cfg.CORSAllowedOrigin+"/checkout/success")
	cfg.CheckoutCancelURL = getEnvString("CHECKOUT_CANCEL_URL", cfg.CORSAllowedOrigin+"/checkout/cancel")
	cfg.ConnectRefreshURL = getEnvString("CONNECT_REFRESH_URL", cfg.CORSAllowedOrigin+"/connect/refresh")
	cfg.ConnectReturnURL = getEnvString("CONNECT_RETURN_URL", cfg.CORSAllowedOrigin+"/connect/return")

	return cfg, nil
}

// S3Enabled はS3アップロードに必要な設定が揃っているかを返す。
func (c *Config) S3Enabled() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" && c.S3Bucket != ""
}

// SMTPEnabled はメール送信に必要な設定が揃っているかを返す。
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
