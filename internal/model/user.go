// Package model はドメインモデルを定義する。
package model

import "time"

// UserRole はユーザーの権限区分を表す。
type UserRole string

const (
	// UserRoleAdmin は管理者権限。
	UserRoleAdmin UserRole = "admin"
	// UserRoleModerator はモデレーター権限。
	UserRoleModerator UserRole = "moderator"
	// UserRoleUser は一般ユーザー権限。
	UserRoleUser UserRole = "user"
)

// UserStatus はユーザーアカウントの状態を表す。
type UserStatus string

const (
	// UserStatusActive は有効なアカウント状態。
	UserStatusActive UserStatus = "active"
	// UserStatusInactive は無効化されたアカウント状態。
	UserStatusInactive UserStatus = "inactive"
	// UserStatusSuspended は凍結されたアカウント状態。
	UserStatusSuspended UserStatus = "suspended"
)

// User はマーケットプレイスの利用ユーザーを表す。
// 認証情報（bcryptハッシュ）とStripe Connectアカウントの紐付けを保持する。
type User struct {
	ID              string
	Username        string
	Name            string
	Email           string
	RegistrationID  string
	PasswordHash    string
	Status          UserStatus
	Role            UserRole
	IsEmailVerified bool
	Bio             string
	PhoneNumber     string
	ProfileImage    string // オブジェクトストレージ上の画像URL

	// Stripe Connect関連
	StripeAccountID          string
	StripeOnboardingComplete bool
	StripeRequirementsDue    []string
	HasBankAccount           bool
	IdentityVerified         bool
	StripeConnected          bool
	DeauthorizedAt           *time.Time
	LastStripeUpdate         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StripeAccountUpdate はwebhookイベントに基づくStripe連携状態の部分更新を表す。
// nilフィールドは変更せず、既存の値を維持する。
type StripeAccountUpdate struct {
	AccountID          *string
	OnboardingComplete *bool
	RequirementsDue    []string
	HasBankAccount     *bool
	IdentityVerified   *bool
	Connected          *bool
	DeauthorizedAt     *time.Time
}
