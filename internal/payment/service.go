package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hitoshi/marketman/internal/metrics"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/repository"
)

// MetadataKeyVendorProductInfo はチェックアウトセッションのmetadataに
// 商品ごとの出品者内訳を格納するキー。
const MetadataKeyVendorProductInfo = "vendorProductInfo"

// vendorProductEntry はvendorProductInfoの1商品分のJSON表現。
type vendorProductEntry struct {
	PostID    string `json:"postId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	CreatorID string `json:"creatorId"`
}

// ServiceConfig は決済サービスの設定。
type ServiceConfig struct {
	Currency   string // ISO通貨コード（例: "aud", "jpy"）
	SuccessURL string
	CancelURL  string
	RefreshURL string // オンボーディング中断時の再開URL
	ReturnURL  string // オンボーディング完了後の戻りURL
}

// Service は決済に関するビジネスロジックを提供する。
type Service struct {
	stripe    StripeClient
	userRepo  repository.UserRepository
	collector metrics.MetricsCollector
	config    ServiceConfig
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(
	stripe StripeClient,
	userRepo repository.UserRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		stripe:    stripe,
		userRepo:  userRepo,
		collector: collector,
		config:    config,
	}
}

// CreateCheckoutSession はカート内容からチェックアウトセッションを作成する。
// 商品ごとの出品者内訳をvendorProductInfoとしてmetadataに埋め込み、
// webhook処理時の送金計算に使用する。
func (s *Service) CreateCheckoutSession(ctx context.Context, items []model.CartItem) (*model.CheckoutSession, error) {
	if len(items) == 0 {
		return nil, model.NewEmptyCartError()
	}
	for _, item := range items {
		if item.PostID == "" || item.CreatorID == "" {
			return nil, model.NewInvalidRequestError("商品IDと出品者IDは必須です")
		}
		if item.Price < 0 || item.Quantity <= 0 {
			return nil, model.NewInvalidRequestError("価格と数量が不正です")
		}
	}

	entries := make([]vendorProductEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, vendorProductEntry{
			PostID:    item.PostID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			CreatorID: item.CreatorID,
		})
	}
	info, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("出品者内訳のエンコードに失敗しました: %w", err)
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, items,
		s.config.Currency, s.config.SuccessURL, s.config.CancelURL,
		map[string]string{MetadataKeyVendorProductInfo: string(info)},
	)
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordCheckoutSession()
	}

	slog.Info("チェックアウトセッションを作成しました",
		slog.String("session_id", session.SessionID),
		slog.Int("items", len(items)),
	)
	return session, nil
}

// CreateAccount は連結アカウントを作成し、アカウントIDを返す。
// ユーザー登録時のベストエフォート・プロビジョニングに使用する。
func (s *Service) CreateAccount(ctx context.Context, email string) (string, error) {
	return s.stripe.CreateAccount(ctx, email)
}

// CreateAccountLink はユーザーのオンボーディング用アカウントリンクを作成する。
// 連結アカウントが未作成の場合は先に作成して保存する。
func (s *Service) CreateAccountLink(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}

	accountID := user.StripeAccountID
	if accountID == "" {
		accountID, err = s.stripe.CreateAccount(ctx, user.Email)
		if err != nil {
			return "", err
		}
		if err := s.userRepo.UpdateStripeAccount(ctx, userID, &model.StripeAccountUpdate{
			AccountID: &accountID,
		}); err != nil {
			return "", fmt.Errorf("連結アカウントIDの保存に失敗しました: %w", err)
		}
		slog.Info("連結アカウントを作成しました",
			slog.String("user_id", userID),
			slog.String("account_id", accountID),
		)
	}

	link, err := s.stripe.CreateAccountLink(ctx, accountID, s.config.RefreshURL, s.config.ReturnURL)
	if err != nil {
		return "", err
	}
	return link, nil
}
