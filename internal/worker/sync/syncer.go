package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/metrics"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/provider"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// Syncer は個別カレンダーの同期を行う。
// プロバイダーから先読み期間分の予定を取得して接続を検証し、
// 結果に応じてカレンダーの同期状態を遷移させる。
type Syncer struct {
	calendarRepo    repository.CalendarRepository
	registry        *provider.Registry
	collector       metrics.MetricsCollector
	logger          *slog.Logger
	timeout         time.Duration
	lookaheadDays   int
	intervalMinutes int
}

// NewSyncer はSyncerの新しいインスタンスを生成する。
// lookaheadDaysが0以下の場合は14日、intervalMinutesが0以下の場合は5分を使用する。
func NewSyncer(
	calendarRepo repository.CalendarRepository,
	registry *provider.Registry,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	lookaheadDays int,
	intervalMinutes int,
) *Syncer {
	if lookaheadDays <= 0 {
		lookaheadDays = 14
	}
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	return &Syncer{
		calendarRepo:    calendarRepo,
		registry:        registry,
		collector:       collector,
		logger:          logger,
		timeout:         timeout,
		lookaheadDays:   lookaheadDays,
		intervalMinutes: intervalMinutes,
	}
}

// Sync はカレンダーをプロバイダーと同期し、結果に応じて同期状態を更新する。
// CalendarSyncerServiceインターフェースを実装する。
func (s *Syncer) Sync(ctx context.Context, cal *model.Calendar) error {
	start := time.Now()

	p, err := s.registry.Get(cal.Provider)
	if err != nil {
		s.logger.Warn("非対応プロバイダーのため同期を停止します",
			slog.String("calendar_id", cal.ID),
			slog.String("provider", cal.Provider),
		)
		s.collector.RecordSyncFailure(cal.Provider, string(provider.KindUnsupported))
		ApplyStopSync(cal, "プロバイダー非対応のため同期を停止しました: "+cal.Provider)
		return s.updateState(ctx, cal)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	from := time.Now()
	to := from.AddDate(0, 0, s.lookaheadDays)

	events, err := p.ListEvents(ctx, cal, from, to)
	duration := time.Since(start)

	if err != nil {
		return s.handleSyncError(ctx, cal, err)
	}

	s.collector.RecordSyncSuccess(cal.Provider)
	s.collector.RecordSyncLatency(cal.Provider, duration)
	s.collector.RecordEventsFetched(len(events))

	ApplySuccess(cal, s.intervalMinutes)
	if err := s.updateState(ctx, cal); err != nil {
		return err
	}

	s.logger.Info("カレンダー同期が完了しました",
		slog.String("calendar_id", cal.ID),
		slog.String("provider", cal.Provider),
		slog.Int("event_count", len(events)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// handleSyncError はプロバイダーエラーを分類し、状態遷移を適用する。
// 恒久的エラーは同期を停止し、それ以外はバックオフで再試行する。
func (s *Syncer) handleSyncError(ctx context.Context, cal *model.Calendar, syncErr error) error {
	switch {
	case provider.IsPermanent(syncErr):
		s.logger.Warn("恒久的なエラーによりカレンダー同期を停止します",
			slog.String("calendar_id", cal.ID),
			slog.String("provider", cal.Provider),
			slog.String("error", syncErr.Error()),
		)
		s.collector.RecordSyncFailure(cal.Provider, string(provider.KindPermanent))
		ApplyPermanentFailure(cal, "認証エラーにより同期を停止しました: "+syncErr.Error())

	case provider.IsUnsupported(syncErr):
		s.logger.Warn("プロバイダー非対応の操作のため同期を停止します",
			slog.String("calendar_id", cal.ID),
			slog.String("provider", cal.Provider),
			slog.String("error", syncErr.Error()),
		)
		s.collector.RecordSyncFailure(cal.Provider, string(provider.KindUnsupported))
		ApplyStopSync(cal, syncErr.Error())

	default:
		// 一時的エラーおよび未分類エラーはバックオフで再試行する
		s.logger.Warn("カレンダー同期にバックオフを適用します",
			slog.String("calendar_id", cal.ID),
			slog.String("provider", cal.Provider),
			slog.Int("consecutive_errors", cal.ConsecutiveErrors+1),
			slog.String("error", syncErr.Error()),
		)
		s.collector.RecordSyncFailure(cal.Provider, string(provider.KindTransient))
		ApplyBackoff(cal, syncErr.Error())
	}

	return s.updateState(ctx, cal)
}

func (s *Syncer) updateState(ctx context.Context, cal *model.Calendar) error {
	if err := s.calendarRepo.UpdateSyncState(ctx, cal); err != nil {
		s.logger.Error("同期状態の更新に失敗しました",
			slog.String("calendar_id", cal.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
