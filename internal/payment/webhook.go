package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/hitoshi/marketman/internal/mailer"
	"github.com/hitoshi/marketman/internal/metrics"
	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/realtime"
	"github.com/hitoshi/marketman/internal/repository"
)

// 処理対象のwebhookイベント種別
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventAccountUpdated         = "account.updated"
	EventExternalAccountCreated = "account.external_account.created"
	EventIdentityVerified       = "identity.verification_session.verified"
	EventAccountDeauthorized    = "account.application.deauthorized"
)

// Notifier はリアルタイム通知の配信インターフェース。
type Notifier interface {
	SendToUser(userID, event string, data interface{}) bool
}

// Processor はwebhookイベントの検証と処理を行う。
// 署名検証に失敗したイベントは一切の状態変更なしで拒否される。
// イベントIDの台帳により、プロバイダーの再送による重複配信は無視される。
type Processor struct {
	stripe    StripeClient
	userRepo  repository.UserRepository
	postRepo  repository.PostRepository
	eventRepo repository.WebhookEventRepository
	notifier  Notifier
	sender    mailer.Sender
	collector metrics.MetricsCollector

	signingSecret string
	currency      string
}

// NewProcessor はProcessorを生成する。notifierとcollectorはnil可。
func NewProcessor(
	stripeClient StripeClient,
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	eventRepo repository.WebhookEventRepository,
	notifier Notifier,
	sender mailer.Sender,
	collector metrics.MetricsCollector,
	signingSecret string,
	currency string,
) *Processor {
	return &Processor{
		stripe:        stripeClient,
		userRepo:      userRepo,
		postRepo:      postRepo,
		eventRepo:     eventRepo,
		notifier:      notifier,
		sender:        sender,
		collector:     collector,
		signingSecret: signingSecret,
		currency:      currency,
	}
}

// HandleEvent はwebhookペイロードを検証して処理する。
// 署名不正の場合はWEBHOOK_SIGNATURE_INVALIDを返し、状態は変更しない。
// 処理済みイベントの再配信はエラーなしの無処理で返る。
// 台帳への記録は処理成功後に行うため、一時的な失敗はプロバイダーの
// 再送でリトライされる。再実行される送金はidempotencyキーで重複しない。
func (p *Processor) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.signingSecret)
	if err != nil {
		p.record("unknown", "invalid_signature")
		slog.Warn("webhook署名の検証に失敗しました",
			slog.String("error", err.Error()),
		)
		return model.NewWebhookSignatureError()
	}

	eventType := string(event.Type)

	processed, err := p.eventRepo.IsProcessed(ctx, event.ID)
	if err != nil {
		p.record(eventType, "error")
		return fmt.Errorf("イベント台帳の参照に失敗しました: %w", err)
	}
	if processed {
		p.record(eventType, "duplicate")
		slog.Info("重複配信されたwebhookイベントをスキップします",
			slog.String("event_id", event.ID),
			slog.String("type", eventType),
		)
		return nil
	}

	switch eventType {
	case EventCheckoutCompleted:
		err = p.handleCheckoutCompleted(ctx, &event)
	case EventAccountUpdated:
		err = p.handleAccountUpdated(ctx, &event)
	case EventExternalAccountCreated:
		err = p.updateAccountFlags(ctx, event.Account, &model.StripeAccountUpdate{
			HasBankAccount: boolPtr(true),
		})
	case EventIdentityVerified:
		err = p.updateAccountFlags(ctx, event.Account, &model.StripeAccountUpdate{
			IdentityVerified: boolPtr(true),
		})
	case EventAccountDeauthorized:
		now := time.Now()
		err = p.updateAccountFlags(ctx, event.Account, &model.StripeAccountUpdate{
			OnboardingComplete: boolPtr(false),
			Connected:          boolPtr(false),
			HasBankAccount:     boolPtr(false),
			DeauthorizedAt:     &now,
		})
	default:
		slog.Info("処理対象外のwebhookイベントを無視します",
			slog.String("type", eventType),
		)
	}

	if err != nil {
		p.record(eventType, "error")
		return err
	}

	// 処理が完走したイベントのみ台帳に記録する。
	if _, err := p.eventRepo.MarkProcessed(ctx, &model.WebhookEvent{
		ID:          event.ID,
		Type:        eventType,
		ProcessedAt: time.Now(),
	}); err != nil {
		p.record(eventType, "error")
		return fmt.Errorf("イベント台帳の記録に失敗しました: %w", err)
	}
	p.record(eventType, "processed")
	return nil
}

// handleCheckoutCompleted は決済完了イベントを処理する。
// metadataのvendorProductInfoから商品ごとの手数料を計算し、
// 出品者の連結アカウントへ送金する。
// 連結アカウント未設定の出品者はスキップし、警告ログを残す。
func (p *Processor) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("セッションのデコードに失敗しました: %w", err)
	}

	info, ok := session.Metadata[MetadataKeyVendorProductInfo]
	if !ok || info == "" {
		slog.Warn("vendorProductInfoのないセッションをスキップします",
			slog.String("session_id", session.ID),
		)
		return nil
	}

	var entries []vendorProductEntry
	if err := json.Unmarshal([]byte(info), &entries); err != nil {
		return fmt.Errorf("vendorProductInfoのデコードに失敗しました: %w", err)
	}

	transferGroup := ""
	if session.PaymentIntent != nil {
		transferGroup = session.PaymentIntent.ID
	}

	for _, entry := range entries {
		// イベントIDと出品IDの組で送金を一意にする。
		// イベント再配信時の再実行は同一キーとなり二重送金にならない。
		idempotencyKey := fmt.Sprintf("%s:%s", event.ID, entry.PostID)
		if err := p.transferToVendor(ctx, entry, transferGroup, idempotencyKey); err != nil {
			return err
		}
	}

	// 購入者への確認メール（ベストエフォート）
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		if err := p.sender.Send(ctx, session.CustomerDetails.Email,
			"ご購入ありがとうございます",
			fmt.Sprintf("お支払いが完了しました。注文番号: %s", session.ID),
		); err != nil {
			slog.Warn("購入確認メールの送信に失敗しました",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// transferToVendor は1商品分の送金を実行する。
func (p *Processor) transferToVendor(ctx context.Context, entry vendorProductEntry, transferGroup, idempotencyKey string) error {
	// 出品のプレミアム状態で手数料率が決まる。出品が削除済みの場合は標準料率。
	premium := false
	post, err := p.postRepo.FindByID(ctx, entry.PostID)
	if err != nil {
		return fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	if post != nil {
		premium = post.IsPremium
	} else {
		slog.Warn("送金対象の出品が見つかりません。標準料率を適用します",
			slog.String("post_id", entry.PostID),
		)
	}

	vendor, err := p.userRepo.FindByID(ctx, entry.CreatorID)
	if err != nil {
		return fmt.Errorf("出品者の取得に失敗しました: %w", err)
	}
	if vendor == nil || vendor.StripeAccountID == "" {
		if p.collector != nil {
			p.collector.RecordTransferSkipped()
		}
		slog.Warn("連結アカウント未設定の出品者への送金をスキップします",
			slog.String("creator_id", entry.CreatorID),
			slog.String("post_id", entry.PostID),
		)
		return nil
	}

	amount, fee := TransferAmount(entry.Price, entry.Quantity, premium)
	if amount <= 0 {
		return nil
	}

	transferID, err := p.stripe.CreateTransfer(ctx, amount, p.currency, vendor.StripeAccountID, transferGroup, idempotencyKey)
	if err != nil {
		return fmt.Errorf("出品者への送金に失敗しました: %w", err)
	}

	if p.collector != nil {
		p.collector.RecordTransfer(amount)
	}

	slog.Info("出品者へ送金しました",
		slog.String("transfer_id", transferID),
		slog.String("creator_id", entry.CreatorID),
		slog.Int64("amount", amount),
		slog.Int64("fee", fee),
	)

	if p.notifier != nil {
		p.notifier.SendToUser(entry.CreatorID, realtime.EventNotification,
			realtime.NotifyPayload{
				Title:   "商品が売れました",
				Message: fmt.Sprintf("「%s」が購入されました。", entry.Name),
			})
	}

	return nil
}

// handleAccountUpdated は連結アカウントの状態変化を反映する。
func (p *Processor) handleAccountUpdated(ctx context.Context, event *stripe.Event) error {
	var account stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
		return fmt.Errorf("アカウントのデコードに失敗しました: %w", err)
	}

	user, err := p.userRepo.FindByStripeAccountID(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		slog.Warn("未知の連結アカウントのイベントを無視します",
			slog.String("account_id", account.ID),
		)
		return nil
	}

	onboardingComplete := account.DetailsSubmitted && account.ChargesEnabled
	requirementsDue := []string{}
	if account.Requirements != nil {
		requirementsDue = account.Requirements.CurrentlyDue
	}

	update := &model.StripeAccountUpdate{
		OnboardingComplete: &onboardingComplete,
		RequirementsDue:    requirementsDue,
		Connected:          boolPtr(true),
	}
	if err := p.userRepo.UpdateStripeAccount(ctx, user.ID, update); err != nil {
		return fmt.Errorf("連結状態の更新に失敗しました: %w", err)
	}

	// オンボーディング完了の通知メール（ベストエフォート）
	if onboardingComplete && !user.StripeOnboardingComplete {
		if err := p.sender.Send(ctx, user.Email,
			"出品者登録が完了しました",
			"売上の受け取り設定が完了しました。出品した商品の売上は自動的に振り込まれます。",
		); err != nil {
			slog.Warn("オンボーディング完了メールの送信に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// updateAccountFlags は連結アカウントIDでユーザーを特定し、フラグを部分更新する。
func (p *Processor) updateAccountFlags(ctx context.Context, accountID string, update *model.StripeAccountUpdate) error {
	if accountID == "" {
		slog.Warn("アカウントIDのないConnectイベントを無視します")
		return nil
	}

	user, err := p.userRepo.FindByStripeAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		slog.Warn("未知の連結アカウントのイベントを無視します",
			slog.String("account_id", accountID),
		)
		return nil
	}

	if err := p.userRepo.UpdateStripeAccount(ctx, user.ID, update); err != nil {
		return fmt.Errorf("連結状態の更新に失敗しました: %w", err)
	}
	return nil
}

func (p *Processor) record(eventType, outcome string) {
	if p.collector != nil {
		p.collector.RecordWebhookEvent(eventType, outcome)
	}
}

func boolPtr(b bool) *bool { return &b }
