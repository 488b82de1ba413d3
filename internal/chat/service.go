// Package chat はチャット・メッセージ管理のドメインロジックを提供する。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/marketman/internal/model"
	"github.com/hitoshi/marketman/internal/realtime"
	"github.com/hitoshi/marketman/internal/repository"
	"github.com/hitoshi/marketman/internal/security"
)

// Notifier はリアルタイム通知の配信インターフェース。
type Notifier interface {
	// SendToUser は指定ユーザーへイベントを配信する。配信はベストエフォート。
	SendToUser(userID, event string, data interface{}) bool
}

// Service はチャット管理のサービス層。
type Service struct {
	chatRepo  repository.ChatRepository
	sanitizer security.ContentSanitizerService
	notifier  Notifier
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierはnil可（リアルタイム通知が無効化される）。
func NewService(
	chatRepo repository.ChatRepository,
	sanitizer security.ContentSanitizerService,
	notifier Notifier,
) *Service {
	return &Service{
		chatRepo:  chatRepo,
		sanitizer: sanitizer,
		notifier:  notifier,
	}
}

// ParticipantKey は参加者集合の同一性判定キーを導出する。
// 重複排除・ソートしたIDを":"で連結する。
func ParticipantKey(participants []string) (string, []string) {
	normalized := normalizeParticipants(participants)
	return strings.Join(normalized, ":"), normalized
}

// normalizeParticipants は参加者IDを重複排除してソートする。
func normalizeParticipants(participants []string) []string {
	seen := make(map[string]bool, len(participants))
	result := make([]string, 0, len(participants))
	for _, id := range participants {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	slices.Sort(result)
	return result
}

// Create はチャットを作成する。
// 同一参加者集合（順序・重複を無視）のチャットが既に存在する場合は
// 新規作成せず、既存のチャットを返す。
// callerIDは参加者に含まれていなければならない。
func (s *Service) Create(ctx context.Context, callerID string, participants []string) (*model.Chat, error) {
	key, normalized := ParticipantKey(participants)
	if len(normalized) < 2 {
		return nil, model.NewInvalidRequestError("参加者は2名以上必要です")
	}
	if !slices.Contains(normalized, callerID) {
		return nil, model.NewNotChatParticipantError()
	}

	existing, err := s.chatRepo.FindByParticipantKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("チャットの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	chat := &model.Chat{
		ID:           uuid.New().String(),
		Participants: normalized,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.chatRepo.Create(ctx, chat, key); err != nil {
		// 並行作成で一意制約に負けた場合は既存を引き直す
		existing, findErr := s.chatRepo.FindByParticipantKey(ctx, key)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("チャットの作成に失敗しました: %w", err)
	}

	slog.Info("チャットを作成しました",
		slog.String("chat_id", chat.ID),
		slog.Int("participants", len(normalized)),
	)
	return chat, nil
}

// AddMessage はチャットにメッセージを追加する。
// 送信者は参加者でなければならない。本文はサニタイズして保存する。
// 保存後、他の参加者へreceive_private_messageを配信する（ベストエフォート）。
func (s *Service) AddMessage(ctx context.Context, chatID, senderID, content string) (*model.Message, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(chat.Participants, senderID) {
		return nil, model.NewNotChatParticipantError()
	}

	sanitized := s.sanitizer.Sanitize(content)
	if sanitized == "" {
		return nil, model.NewInvalidRequestError("メッセージ本文は必須です")
	}

	msg := &model.Message{
		ID:       uuid.New().String(),
		ChatID:   chatID,
		SenderID: senderID,
		Content:  sanitized,
		SentAt:   time.Now(),
	}

	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("メッセージの保存に失敗しました: %w", err)
	}

	if s.notifier != nil {
		for _, participant := range chat.Participants {
			if participant == senderID {
				continue
			}
			s.notifier.SendToUser(participant, realtime.EventReceivePrivateMessage,
				realtime.PrivateMessagePayload{
					ChatID:   chatID,
					SenderID: senderID,
					Content:  sanitized,
				})
		}
	}

	return msg, nil
}

// ListUserChats はユーザーが参加する全チャットを、
// 最新メッセージと「自分以外の参加者」付きで返す。
func (s *Service) ListUserChats(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	chats, err := s.chatRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("チャット一覧の取得に失敗しました: %w", err)
	}

	summaries := make([]*model.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		last, err := s.chatRepo.LastMessage(ctx, chat.ID)
		if err != nil {
			return nil, fmt.Errorf("最新メッセージの取得に失敗しました: %w", err)
		}

		other := ""
		for _, participant := range chat.Participants {
			if participant != userID {
				other = participant
				break
			}
		}

		summaries = append(summaries, &model.ChatSummary{
			Chat:             *chat,
			LastMessage:      last,
			OtherParticipant: other,
		})
	}
	return summaries, nil
}

// GetMessages はチャットのメッセージ履歴を送信日時昇順で返す。
// 参加者のみ閲覧できる。
func (s *Service) GetMessages(ctx context.Context, chatID, callerID string) ([]*model.Message, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(chat.Participants, callerID) {
		return nil, model.NewNotChatParticipantError()
	}

	messages, err := s.chatRepo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ履歴の取得に失敗しました: %w", err)
	}
	return messages, nil
}

func (s *Service) getChat(ctx context.Context, chatID string) (*model.Chat, error) {
	chat, err := s.chatRepo.FindByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("チャットの取得に失敗しました: %w", err)
	}
	if chat == nil {
		return nil, model.NewChatNotFoundError(chatID)
	}
	return chat, nil
}
