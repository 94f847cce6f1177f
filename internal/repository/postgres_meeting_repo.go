package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// PostgresMeetingRepo はPostgreSQLを使用したミーティングリポジトリ。
type PostgresMeetingRepo struct {
	db *sql.DB
}

// NewPostgresMeetingRepo はPostgresMeetingRepoを生成する。
func NewPostgresMeetingRepo(db *sql.DB) *PostgresMeetingRepo {
	return &PostgresMeetingRepo{db: db}
}

const meetingColumns = `id, title, description, start_time, end_time, creator_id, calendar_id,
	team_id, meeting_type, location, virtual_meeting_provider, virtual_meeting_url,
	provider_event_id, created_at, updated_at`

func scanMeeting(row interface{ Scan(...any) error }) (*model.Meeting, error) {
	m := &model.Meeting{}
	var description, teamID, location, vmProvider, vmURL, providerEventID sql.NullString

	err := row.Scan(
		&m.ID, &m.Title, &description, &m.StartTime, &m.EndTime,
		&m.CreatorID, &m.CalendarID, &teamID, &m.MeetingType,
		&location, &vmProvider, &vmURL, &providerEventID,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Description = nullStringValue(description)
	m.TeamID = nullStringValue(teamID)
	m.Location = nullStringValue(location)
	m.VirtualMeetingProvider = nullStringValue(vmProvider)
	m.VirtualMeetingURL = nullStringValue(vmURL)
	m.ProviderEventID = nullStringValue(providerEventID)

	return m, nil
}

// FindByID は指定IDのミーティングを取得する。見つからない場合はnilを返す。
func (r *PostgresMeetingRepo) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	m, err := scanMeeting(r.db.QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ミーティングの取得に失敗しました: %w", err)
	}
	return m, nil
}

// ListByCreator は作成者のミーティング一覧を開始時刻昇順で返す。
func (r *PostgresMeetingRepo) ListByCreator(ctx context.Context, creatorID string) ([]*model.Meeting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE creator_id = $1 ORDER BY start_time ASC`,
		creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("ミーティング一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// ListByTeam はチームのミーティング一覧を開始時刻昇順で返す。
func (r *PostgresMeetingRepo) ListByTeam(ctx context.Context, teamID string) ([]*model.Meeting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE team_id = $1 ORDER BY start_time ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("チームミーティング一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectMeetings(rows)
}

// ListByUsersInRange は指定ユーザー群が作成した、指定期間と重なるミーティングを返す。
func (r *PostgresMeetingRepo) ListByUsersInRange(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.Meeting, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings
		 WHERE creator_id = ANY($1)
		   AND start_time < $3 AND end_time > $2
		 ORDER BY start_time ASC`,
		pq.Array(userIDs), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("期間内ミーティングの取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectMeetings(rows)
}

func collectMeetings(rows *sql.Rows) ([]*model.Meeting, error) {
	var meetings []*model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("ミーティングの読み取りに失敗しました: %w", err)
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ミーティングの走査に失敗しました: %w", err)
	}
	return meetings, nil
}

// Create はミーティングを作成する。
func (r *PostgresMeetingRepo) Create(ctx context.Context, m *model.Meeting) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meetings (id, title, description, start_time, end_time, creator_id, calendar_id,
		                       team_id, meeting_type, location, virtual_meeting_provider,
		                       virtual_meeting_url, provider_event_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.ID, m.Title, nullString(m.Description), m.StartTime, m.EndTime,
		m.CreatorID, m.CalendarID, nullString(m.TeamID), m.MeetingType,
		nullString(m.Location), nullString(m.VirtualMeetingProvider),
		nullString(m.VirtualMeetingURL), nullString(m.ProviderEventID),
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ミーティングの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はミーティングを更新する。
func (r *PostgresMeetingRepo) Update(ctx context.Context, m *model.Meeting) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE meetings SET
		    title = $2, description = $3, start_time = $4, end_time = $5,
		    calendar_id = $6, team_id = $7, meeting_type = $8, location = $9,
		    virtual_meeting_provider = $10, virtual_meeting_url = $11,
		    provider_event_id = $12, updated_at = now()
		 WHERE id = $1`,
		m.ID, m.Title, nullString(m.Description), m.StartTime, m.EndTime,
		m.CalendarID, nullString(m.TeamID), m.MeetingType, nullString(m.Location),
		nullString(m.VirtualMeetingProvider), nullString(m.VirtualMeetingURL),
		nullString(m.ProviderEventID),
	)
	if err != nil {
		return fmt.Errorf("ミーティングの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのミーティングを削除する。移動時間イベントはCASCADE削除される。
func (r *PostgresMeetingRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM meetings WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ミーティングの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MeetingRepository = (*PostgresMeetingRepo)(nil)
