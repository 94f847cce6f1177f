// Package sync はカレンダーのバックグラウンド同期処理を提供する。
// スケジューラ、シンカー、リトライ/バックオフ戦略を含む。
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// CalendarSyncerService はカレンダー同期の実行インターフェース。
type CalendarSyncerService interface {
	// Sync は指定カレンダーを同期し、結果に応じて同期状態を更新する。
	Sync(ctx context.Context, cal *model.Calendar) error
}

// Scheduler はカレンダー同期のスケジューリングと並列制御を行う。
// 一定間隔のティッカーで同期対象カレンダーを取得し、
// semaphoreパターンで最大並列数を制御しながら同期を実行する。
type Scheduler struct {
	calendarRepo   repository.CalendarRepository
	syncer         CalendarSyncerService
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	calendarRepo repository.CalendarRepository,
	syncer CalendarSyncerService,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		calendarRepo:   calendarRepo,
		syncer:         syncer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は同期対象カレンダーを1回取得し、並列で同期を実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 同期対象カレンダーを取得（FOR UPDATE SKIP LOCKED）
	calendars, err := s.calendarRepo.ListDueForSync(ctx)
	if err != nil {
		return err
	}

	if len(calendars) == 0 {
		s.logger.Info("同期対象のカレンダーはありません")
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("calendar_count", len(calendars)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, cal := range calendars {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(c *model.Calendar) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.syncer.Sync(ctx, c); err != nil {
				s.logger.Error("カレンダー同期に失敗しました",
					slog.String("calendar_id", c.ID),
					slog.String("provider", c.Provider),
					slog.String("error", err.Error()),
				)
			}
		}(cal)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("calendar_count", len(calendars)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
