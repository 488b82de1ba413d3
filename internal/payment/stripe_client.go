// Package payment は決済・送金・webhook処理のドメインロジックを提供する。
package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/hitoshi/marketman/internal/model"
)

// StripeClient は決済プロバイダーAPIの抽象化インターフェース。
// サービス層・webhook処理はこのインターフェース越しにStripeを操作する。
type StripeClient interface {
	// CreateCheckoutSession はチェックアウトセッションを作成する。
	// metadataにはvendorProductInfo等の追加情報を渡す。
	CreateCheckoutSession(ctx context.Context, items []model.CartItem, currency, successURL, cancelURL string, metadata map[string]string) (*model.CheckoutSession, error)

	// CreateAccount はExpressタイプの連結アカウントを作成し、アカウントIDを返す。
	CreateAccount(ctx context.Context, email string) (string, error)

	// CreateAccountLink はオンボーディング用のアカウントリンクURLを返す。
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)

	// CreateTransfer は連結アカウントへの送金を作成し、送金IDを返す。
	// transferGroupで同一決済に属する送金をまとめる。
	// idempotencyKeyが同じリクエストの再実行は二重送金にならない。
	CreateTransfer(ctx context.Context, amount int64, currency, destinationAccountID, transferGroup, idempotencyKey string) (string, error)
}

// apiClient はstripe-goを使用したStripeClientの実装。
type apiClient struct {
	api *client.API
}

// NewStripeClient はStripeClientを生成する。
func NewStripeClient(secretKey string) StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &apiClient{api: api}
}

// CreateCheckoutSession はチェックアウトセッションを作成する。
func (c *apiClient) CreateCheckoutSession(ctx context.Context, items []model.CartItem, currency, successURL, cancelURL string, metadata map[string]string) (*model.CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.Price),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("チェックアウトセッションの作成に失敗しました: %w", err)
	}

	return &model.CheckoutSession{
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}

// CreateAccount はExpressタイプの連結アカウントを作成する。
func (c *apiClient) CreateAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
	}
	params.Context = ctx

	account, err := c.api.Accounts.New(params)
	if err != nil {
		return "", fmt.Errorf("連結アカウントの作成に失敗しました: %w", err)
	}
	return account.ID, nil
}

// CreateAccountLink はオンボーディング用のアカウントリンクURLを返す。
func (c *apiClient) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := c.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("アカウントリンクの作成に失敗しました: %w", err)
	}
	return link.URL, nil
}

// CreateTransfer は連結アカウントへの送金を作成する。
func (c *apiClient) CreateTransfer(ctx context.Context, amount int64, currency, destinationAccountID, transferGroup, idempotencyKey string) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(destinationAccountID),
		TransferGroup: stripe.String(transferGroup),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	transfer, err := c.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("送金の作成に失敗しました: %w", err)
	}
	return transfer.ID, nil
}

// compile-time interface check
var _ StripeClient = (*apiClient)(nil)
