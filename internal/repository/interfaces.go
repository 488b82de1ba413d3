// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/marketman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByRegistrationID は登録IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByRegistrationID(ctx context.Context, registrationID string) (*model.User, error)

	// FindByStripeAccountID はStripeアカウントIDでユーザーを検索する。見つからない場合はnilを返す。
	FindByStripeAccountID(ctx context.Context, accountID string) (*model.User, error)

	// List は全ユーザーを作成日時降順で取得する。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。
	// email または registration_id の一意制約違反はエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのプロフィール情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// UpdateStripeAccount はStripe連携状態を部分更新する。
	// updateのnilフィールドは変更せず、既存の値を維持する。
	UpdateStripeAccount(ctx context.Context, userID string, update *model.StripeAccountUpdate) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連する出品・メッセージはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// PostRepository は出品データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの出品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// List は検索条件に合致する出品をページネーション付きで取得する。
	List(ctx context.Context, filter model.PostFilter) (*model.PostPage, error)

	// ListByCreator は出品者の全出品を作成日時降順で取得する。
	ListByCreator(ctx context.Context, creatorID string) ([]*model.Post, error)

	// Create は出品を作成する。
	Create(ctx context.Context, post *model.Post) error

	// Update は出品情報を更新する。
	Update(ctx context.Context, post *model.Post) error

	// SetPremium は出品のプレミアムフラグをトランザクション内で切り替える。
	// 有効化時は同一出品者の既存プレミアム出品を先に解除し、
	// 「出品者ごとに最大1件」の不変条件を維持する。
	SetPremium(ctx context.Context, postID, creatorID string, premium bool) error

	// Delete は指定IDの出品を削除する。
	Delete(ctx context.Context, id string) error
}

// ChatRepository はチャットデータの永続化インターフェース。
type ChatRepository interface {
	// FindByID は指定IDのチャットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Chat, error)

	// FindByParticipantKey は参加者集合キーでチャットを検索する。見つからない場合はnilを返す。
	FindByParticipantKey(ctx context.Context, key string) (*model.Chat, error)

	// Create はチャットを作成する。
	// 同一参加者集合のチャットが既に存在する場合は一意制約違反を返す。
	Create(ctx context.Context, chat *model.Chat, participantKey string) error

	// ListByParticipant はユーザーが参加する全チャットを最新更新順で取得する。
	ListByParticipant(ctx context.Context, userID string) ([]*model.Chat, error)

	// CreateMessage はメッセージを作成し、チャットのupdated_atを更新する。
	CreateMessage(ctx context.Context, msg *model.Message) error

	// ListMessages はチャットのメッセージを送信日時昇順で取得する。
	ListMessages(ctx context.Context, chatID string) ([]*model.Message, error)

	// LastMessage はチャットの最新メッセージを取得する。メッセージがない場合はnilを返す。
	LastMessage(ctx context.Context, chatID string) (*model.Message, error)

	// Delete は指定IDのチャットを削除する。関連メッセージはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// WebhookEventRepository は処理済みwebhookイベント台帳の永続化インターフェース。
type WebhookEventRepository interface {
	// IsProcessed はイベントIDが処理済み台帳に存在するかを返す。
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed はイベントIDを処理済みとして記録する。
	// 既に記録済みの場合はfalseを返し、新規記録の場合はtrueを返す。
	MarkProcessed(ctx context.Context, event *model.WebhookEvent) (bool, error)

	// DeleteOlderThan は指定日時より古い処理済みイベントを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
