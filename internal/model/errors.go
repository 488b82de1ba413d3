// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// 内部エラーの詳細はログにのみ記録し、クライアントへは返さない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, chat, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"

	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeInvalidRegistID    = "INVALID_REGISTRATION_ID"
	ErrCodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeDuplicateRegistID  = "DUPLICATE_REGISTRATION_ID"

	ErrCodePostNotFound = "POST_NOT_FOUND"
	ErrCodeNotPostOwner = "NOT_POST_OWNER"

	ErrCodeChatNotFound       = "CHAT_NOT_FOUND"
	ErrCodeNotChatParticipant = "NOT_CHAT_PARTICIPANT"

	ErrCodeEmptyCart            = "EMPTY_CART"
	ErrCodeStripeAccountMissing = "STRIPE_ACCOUNT_MISSING"
	ErrCodeWebhookSignature     = "WEBHOOK_SIGNATURE_INVALID"

	ErrCodeInvalidImageType = "INVALID_IMAGE_TYPE"
	ErrCodeImageTooLarge    = "IMAGE_TOO_LARGE"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "トークンの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "必要な権限を持つアカウントでログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("メールアドレスの形式が正しくありません: %s", email),
		Category: "validation",
		Action:   "正しいメールアドレスを入力してください。",
	}
}

// NewInvalidRegistrationIDError は登録ID形式エラーを生成する。
func NewInvalidRegistrationIDError(prefix string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRegistID,
		Message:  fmt.Sprintf("登録IDは%sで始まる必要があります。", prefix),
		Category: "validation",
		Action:   "発行された登録IDをそのまま入力してください。",
	}
}

// NewPasswordTooShortError はパスワード長エラーを生成する。
func NewPasswordTooShortError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewDuplicateRegistrationIDError は登録ID重複エラーを生成する。
func NewDuplicateRegistrationIDError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateRegistID,
		Message:  "この登録IDは既に使用されています。",
		Category: "validation",
		Action:   "登録IDを確認してください。",
	}
}

// NewPostNotFoundError は出品が見つからない場合のエラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された出品が見つかりません: %s", postID),
		Category: "post",
		Action:   "出品IDを確認してください。",
	}
}

// NewNotPostOwnerError は出品の所有者でない場合のエラーを生成する。
func NewNotPostOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotPostOwner,
		Message:  "自分の出品に対してのみ実行できる操作です。",
		Category: "post",
		Action:   "対象の出品を確認してください。",
	}
}

// NewChatNotFoundError はチャットが見つからない場合のエラーを生成する。
func NewChatNotFoundError(chatID string) *APIError {
	return &APIError{
		Code:     ErrCodeChatNotFound,
		Message:  fmt.Sprintf("指定されたチャットが見つかりません: %s", chatID),
		Category: "chat",
		Action:   "チャットIDを確認してください。",
	}
}

// NewNotChatParticipantError はチャット参加者でない場合のエラーを生成する。
func NewNotChatParticipantError() *APIError {
	return &APIError{
		Code:     ErrCodeNotChatParticipant,
		Message:  "このチャットの参加者ではありません。",
		Category: "chat",
		Action:   "参加しているチャットを選択してください。",
	}
}

// NewEmptyCartError は空カートエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "商品が1件も指定されていません。",
		Category: "payment",
		Action:   "カートに商品を追加してからチェックアウトしてください。",
	}
}

// NewStripeAccountMissingError はStripeアカウント未連携エラーを生成する。
func NewStripeAccountMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeStripeAccountMissing,
		Message:  "Stripeアカウントが連携されていません。",
		Category: "payment",
		Action:   "先にStripeアカウントの連携を完了してください。",
	}
}

// NewWebhookSignatureError はwebhook署名検証失敗エラーを生成する。
func NewWebhookSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeWebhookSignature,
		Message:  "webhookの署名検証に失敗しました。",
		Category: "payment",
		Action:   "webhookシークレットの設定を確認してください。",
	}
}

// NewInvalidImageTypeError は画像形式エラーを生成する。
func NewInvalidImageTypeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageType,
		Message:  "jpeg、jpg、png形式の画像のみアップロードできます。",
		Category: "validation",
		Action:   "対応形式の画像を選択してください。",
	}
}

// NewImageTooLargeError は画像サイズ超過エラーを生成する。
func NewImageTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeImageTooLarge,
		Message:  fmt.Sprintf("画像サイズが上限（%dMB）を超えています。", maxBytes/(1024*1024)),
		Category: "validation",
		Action:   "より小さい画像をアップロードしてください。",
	}
}
