// Package cleanup は処理済みwebhookイベント台帳の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したイベント記録を日次バッチで削除する。
// 台帳は重複配信の検出にのみ使うため、保持期間を過ぎた記録は安全に削除できる。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/marketman/internal/repository"
)

// DefaultRetentionDays はイベント記録のデフォルト保持日数。
const DefaultRetentionDays = 90

// CleanupJob は保持期間を超過したwebhookイベント記録の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	eventRepo     repository.WebhookEventRepository
	logger        *slog.Logger
	RetentionDays int // イベント記録の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(eventRepo repository.WebhookEventRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		eventRepo:     eventRepo,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run は保持期間を超過したイベント記録を削除する。
// processed_atがRetentionDays日前より古い記録が対象。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.eventRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("webhookイベントのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("webhookイベントのクリーンアップに失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("webhookイベントのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Scheduler はクリーンアップジョブの定期実行を行う。
type Scheduler struct {
	job    *CleanupJob
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(job *CleanupJob, logger *slog.Logger) *Scheduler {
	return &Scheduler{job: job, logger: logger}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", s.job.RetentionDays),
	)

	if err := s.job.Run(ctx); err != nil {
		s.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.job.Run(ctx); err != nil {
				s.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
