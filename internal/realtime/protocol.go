// Package realtime はWebSocketによるリアルタイム通知を提供する。
package realtime

import "encoding/json"

// クライアントから受信するイベント名
const (
	EventRegister         = "register"
	EventPrivateMessage   = "private_message"
	EventBroadcastMessage = "broadcast_message"
	EventNotifyUser       = "notify_user"
	EventAdminBroadcast   = "admin_broadcast"
	EventBatchEmit        = "batch_emit"
	EventPing             = "ping"
)

// サーバーから送信するイベント名
const (
	EventReceivePrivateMessage = "receive_private_message"
	EventReceiveBroadcast      = "receive_broadcast"
	EventNotification          = "notification"
	EventSystemMessage         = "system_message"
	EventPong                  = "pong"
)

// Envelope はWebSocket上でやり取りするメッセージの外枠。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PrivateMessagePayload はprivate_message / receive_private_messageのペイロード。
type PrivateMessagePayload struct {
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId"`
	To       string `json:"to,omitempty"`
	Content  string `json:"content"`
}

// NotifyPayload はnotify_user / notificationのペイロード。
type NotifyPayload struct {
	UserID  string `json:"userId,omitempty"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// BroadcastPayload はbroadcast_message / receive_broadcastおよび
// admin_broadcast / system_messageのペイロード。
type BroadcastPayload struct {
	SenderID string `json:"senderId,omitempty"`
	Message  string `json:"message"`
}

// BatchEmitPayload はbatch_emitのペイロード。
// 1つのイベントを宛先ユーザーのリストへ一斉配信する。
type BatchEmitPayload struct {
	Users []string        `json:"users"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
