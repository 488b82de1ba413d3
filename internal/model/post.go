// Package model はドメインモデルを定義する。
package model

import "time"

// PostStatus は出品の公開状態を表す。
type PostStatus string

const (
	// PostStatusDraft は下書き状態。
	PostStatusDraft PostStatus = "draft"
	// PostStatusPublished は公開中の状態。
	PostStatusPublished PostStatus = "published"
	// PostStatusArchived はアーカイブされた状態。
	PostStatusArchived PostStatus = "archived"
	// PostStatusSold は売約済みの状態。
	PostStatusSold PostStatus = "sold"
	// PostStatusRented は貸出中の状態。
	PostStatusRented PostStatus = "rented"
)

// ValidPostStatus は既知の出品状態かどうかを返す。
func ValidPostStatus(s PostStatus) bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived, PostStatusSold, PostStatusRented:
		return true
	}
	return false
}

// Post はマーケットプレイスの出品を表す。
// Priceは最小通貨単位（セント）で保持する。
// IsPremiumは出品者ごとに最大1件（部分ユニークインデックスで保証）。
type Post struct {
	ID          string
	Name        string
	Image       string // オブジェクトストレージ上の画像URL
	Description string
	Category    string
	Price       int64
	Stock       int
	Status      PostStatus
	IsPremium   bool
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostFilter は出品一覧の検索条件を表す。
// ゼロ値のフィールドは条件として適用しない。
type PostFilter struct {
	Search    string // name/descriptionの部分一致
	Category  string
	MinPrice  *int64 // 最小通貨単位
	MaxPrice  *int64
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
	SortBy    string // ソート対象カラム（許可リスト外はcreated_at）
	Order     string // "asc" または "desc"
}

// PostPage は出品一覧のページネーション結果を表す。
type PostPage struct {
	TotalPosts  int
	TotalPages  int
	CurrentPage int
	Posts       []*Post
}
