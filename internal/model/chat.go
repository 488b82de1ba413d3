// Package model はドメインモデルを定義する。
package model

import "time"

// Chat は参加者集合で識別されるチャットルームを表す。
// Participantsは重複排除・ソート済みのユーザーID集合として保持し、
// 「この2者間のチャットは既に存在するか」の同一性判定キーに使う。
type Chat struct {
	ID           string
	Participants []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message はチャット内の1メッセージを表す。作成後は不変。
type Message struct {
	ID       string
	ChatID   string
	SenderID string
	Content  string
	SentAt   time.Time
}

// ChatSummary はチャット一覧表示用の投影。
// 最新メッセージと「自分以外の参加者」を展開して返す。
type ChatSummary struct {
	Chat
	LastMessage      *Message
	OtherParticipant string
}
