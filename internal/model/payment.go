// Package model はドメインモデルを定義する。
package model

import "time"

// CartItem はチェックアウト対象の1商品を表す。
// Priceは最小通貨単位（セント）。
type CartItem struct {
	PostID    string
	Name      string
	Price     int64
	Quantity  int64
	CreatorID string
}

// CheckoutSession は決済プロバイダー上に作成された決済フローを表す。
type CheckoutSession struct {
	SessionID  string
	SessionURL string
}

// WebhookEvent は処理済みwebhookイベントの記録を表す。
// プロバイダー側の再送で同一イベントIDが重複配信されても、
// この台帳に存在するイベントは再処理しない。
type WebhookEvent struct {
	ID          string // プロバイダーのイベントID
	Type        string
	ProcessedAt time.Time
}
