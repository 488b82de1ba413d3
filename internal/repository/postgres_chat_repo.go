package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/marketman/internal/model"
)

// PostgresChatRepo はPostgreSQLを使用したチャットリポジトリ。
type PostgresChatRepo struct {
	db *sql.DB
}

// NewPostgresChatRepo はPostgresChatRepoを生成する。
func NewPostgresChatRepo(db *sql.DB) *PostgresChatRepo {
	return &PostgresChatRepo{db: db}
}

// FindByID は指定IDのチャットを取得する。見つからない場合はnilを返す。
func (r *PostgresChatRepo) FindByID(ctx context.Context, id string) (*model.Chat, error) {
	chat := &model.Chat{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, participants, created_at, updated_at FROM chats WHERE id = $1`,
		id,
	).Scan(&chat.ID, pq.Array(&chat.Participants), &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat by ID: %w", err)
	}
	return chat, nil
}

// FindByParticipantKey は参加者集合キーでチャットを検索する。見つからない場合はnilを返す。
func (r *PostgresChatRepo) FindByParticipantKey(ctx context.Context, key string) (*model.Chat, error) {
	chat := &model.Chat{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, participants, created_at, updated_at FROM chats WHERE participant_key = $1`,
		key,
	).Scan(&chat.ID, pq.Array(&chat.Participants), &chat.CreatedAt, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat by participant key: %w", err)
	}
	return chat, nil
}

// Create はチャットを作成する。
// 同一参加者集合のチャットが既に存在する場合は一意制約違反を返す。
func (r *PostgresChatRepo) Create(ctx context.Context, chat *model.Chat, participantKey string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (id, participant_key, participants, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		chat.ID, participantKey, pq.Array(chat.Participants),
		chat.CreatedAt, chat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

// ListByParticipant はユーザーが参加する全チャットを最新更新順で取得する。
func (r *PostgresChatRepo) ListByParticipant(ctx context.Context, userID string) ([]*model.Chat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, participants, created_at, updated_at
		 FROM chats WHERE $1 = ANY(participants)
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats by participant: %w", err)
	}
	defer rows.Close()

	chats := []*model.Chat{}
	for rows.Next() {
		chat := &model.Chat{}
		err := rows.Scan(&chat.ID, pq.Array(&chat.Participants), &chat.CreatedAt, &chat.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}
	return chats, nil
}

// CreateMessage はメッセージを作成し、チャットのupdated_atを更新する。
// 2つの書き込みは同一トランザクションで行う。
func (r *PostgresChatRepo) CreateMessage(ctx context.Context, msg *model.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, sent_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = $1 WHERE id = $2`,
		msg.SentAt, msg.ChatID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListMessages はチャットのメッセージを送信日時昇順で取得する。
func (r *PostgresChatRepo) ListMessages(ctx context.Context, chatID string) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, chat_id, sender_id, content, sent_at
		 FROM messages WHERE chat_id = $1 ORDER BY sent_at ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		msg := &model.Message{}
		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.SentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// LastMessage はチャットの最新メッセージを取得する。メッセージがない場合はnilを返す。
func (r *PostgresChatRepo) LastMessage(ctx context.Context, chatID string) (*model.Message, error) {
	msg := &model.Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, chat_id, sender_id, content, sent_at
		 FROM messages WHERE chat_id = $1 ORDER BY sent_at DESC LIMIT 1`,
		chatID,
	).Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.SentAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last message: %w", err)
	}
	return msg, nil
}

// Delete は指定IDのチャットを削除する。関連メッセージはCASCADE削除される。
func (r *PostgresChatRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("chat not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ChatRepository = (*PostgresChatRepo)(nil)
