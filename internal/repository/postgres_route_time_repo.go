package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// PostgresRouteTimeRepo はPostgreSQLを使用した移動時間イベントリポジトリ。
type PostgresRouteTimeRepo struct {
	db *sql.DB
}

// NewPostgresRouteTimeRepo はPostgresRouteTimeRepoを生成する。
func NewPostgresRouteTimeRepo(db *sql.DB) *PostgresRouteTimeRepo {
	return &PostgresRouteTimeRepo{db: db}
}

// Create は移動時間イベントを作成する。
func (r *PostgresRouteTimeRepo) Create(ctx context.Context, e *model.RouteTimeEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO route_time_events (id, meeting_id, user_id, is_before, duration_minutes, start_time, end_time, provider_event_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.MeetingID, e.UserID, e.IsBefore, e.DurationMinutes,
		e.StartTime, e.EndTime, nullString(e.ProviderEventID),
	)
	if err != nil {
		return fmt.Errorf("移動時間イベントの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByMeetingID はミーティングの移動時間イベント一覧を返す。
func (r *PostgresRouteTimeRepo) ListByMeetingID(ctx context.Context, meetingID string) ([]*model.RouteTimeEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, meeting_id, user_id, is_before, duration_minutes, start_time, end_time, provider_event_id
		 FROM route_time_events WHERE meeting_id = $1
		 ORDER BY start_time ASC`,
		meetingID,
	)
	if err != nil {
		return nil, fmt.Errorf("移動時間イベント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectRouteTimeEvents(rows)
}

// ListByUsersInRange は指定ユーザー群の、指定期間と重なる移動時間イベントを返す。
func (r *PostgresRouteTimeRepo) ListByUsersInRange(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.RouteTimeEvent, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, meeting_id, user_id, is_before, duration_minutes, start_time, end_time, provider_event_id
		 FROM route_time_events
		 WHERE user_id = ANY($1)
		   AND start_time < $3 AND end_time > $2
		 ORDER BY start_time ASC`,
		pq.Array(userIDs), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内移動時間イベントの取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectRouteTimeEvents(rows)
}

func collectRouteTimeEvents(rows *sql.Rows) ([]*model.RouteTimeEvent, error) {
	var events []*model.RouteTimeEvent
	for rows.Next() {
		e := &model.RouteTimeEvent{}
		var providerEventID sql.NullString
		if err := rows.Scan(&e.ID, &e.MeetingID, &e.UserID, &e.IsBefore, &e.DurationMinutes, &e.StartTime, &e.EndTime, &providerEventID); err != nil {
			return nil, fmt.Errorf("移動時間イベントの読み取りに失敗しました: %w", err)
		}
		e.ProviderEventID = nullStringValue(providerEventID)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("移動時間イベントの走査に失敗しました: %w", err)
	}
	return events, nil
}

// DeleteByMeetingID はミーティングの移動時間イベントを全て削除する。
func (r *PostgresRouteTimeRepo) DeleteByMeetingID(ctx context.Context, meetingID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM route_time_events WHERE meeting_id = $1`,
		meetingID,
	)
	if err != nil {
		return fmt.Errorf("移動時間イベントの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RouteTimeEventRepository = (*PostgresRouteTimeRepo)(nil)
