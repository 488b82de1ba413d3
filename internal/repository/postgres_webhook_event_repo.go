package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/marketman/internal/model"
)

// PostgresWebhookEventRepo はPostgreSQLを使用したwebhookイベント台帳リポジトリ。
type PostgresWebhookEventRepo struct {
	db *sql.DB
}

// NewPostgresWebhookEventRepo はPostgresWebhookEventRepoを生成する。
func NewPostgresWebhookEventRepo(db *sql.DB) *PostgresWebhookEventRepo {
	return &PostgresWebhookEventRepo{db: db}
}

// IsProcessed はイベントIDが処理済み台帳に存在するかを返す。
func (r *PostgresWebhookEventRepo) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM webhook_events WHERE id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}

// MarkProcessed はイベントIDを処理済みとして記録する。
// ON CONFLICT DO NOTHINGにより重複配信は挿入0件となり、falseを返す。
func (r *PostgresWebhookEventRepo) MarkProcessed(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, type, processed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Type, event.ProcessedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteOlderThan は指定日時より古い処理済みイベントを削除し、削除件数を返す。
func (r *PostgresWebhookEventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old webhook events: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ WebhookEventRepository = (*PostgresWebhookEventRepo)(nil)
