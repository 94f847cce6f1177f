package calendar

import (
	"context"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/availability"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/provider"
)

// BusySource はプロバイダーレジストリを空き時間集約のビジー区間ソースに適合させる。
type BusySource struct {
	registry *provider.Registry
}

// NewBusySource はBusySourceを生成する。
func NewBusySource(registry *provider.Registry) *BusySource {
	return &BusySource{registry: registry}
}

// ListBusy はカレンダーのプロバイダーから期間内のイベントを取得し、
// ビジー区間として返す。
func (b *BusySource) ListBusy(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]availability.Interval, error) {
	p, err := b.registry.Get(cal.Provider)
	if err != nil {
		return nil, err
	}

	events, err := p.ListEvents(ctx, cal, from, to)
	if err != nil {
		return nil, err
	}

	intervals := make([]availability.Interval, 0, len(events))
	for _, event := range events {
		intervals = append(intervals, availability.Interval{
			Start: event.StartTime,
			End:   event.EndTime,
		})
	}
	return intervals, nil
}

// compile-time interface check
var _ availability.ExternalBusySource = (*BusySource)(nil)
