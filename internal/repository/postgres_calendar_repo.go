package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// PostgresCalendarRepo はPostgreSQLを使用したカレンダーリポジトリ。
type PostgresCalendarRepo struct {
	db *sql.DB
}

// NewPostgresCalendarRepo はPostgresCalendarRepoを生成する。
func NewPostgresCalendarRepo(db *sql.DB) *PostgresCalendarRepo {
	return &PostgresCalendarRepo{db: db}
}

const calendarColumns = `id, user_id, name, provider, provider_id, access_token, refresh_token,
	token_expires_at, endpoint_url, is_primary, is_active, sync_status,
	consecutive_errors, error_message, next_sync_at, last_synced_at, created_at, updated_at`

func scanCalendar(row interface{ Scan(...any) error }) (*model.Calendar, error) {
	cal := &model.Calendar{}
	var providerID, accessToken, refreshToken, endpointURL, errorMessage sql.NullString
	var tokenExpiresAt, lastSyncedAt sql.NullTime

	err := row.Scan(
		&cal.ID, &cal.UserID, &cal.Name, &cal.Provider, &providerID,
		&accessToken, &refreshToken, &tokenExpiresAt, &endpointURL,
		&cal.IsPrimary, &cal.IsActive, &cal.SyncStatus,
		&cal.ConsecutiveErrors, &errorMessage, &cal.NextSyncAt, &lastSyncedAt,
		&cal.CreatedAt, &cal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cal.ProviderID = nullStringValue(providerID)
	cal.AccessToken = nullStringValue(accessToken)
	cal.RefreshToken = nullStringValue(refreshToken)
	cal.EndpointURL = nullStringValue(endpointURL)
	cal.ErrorMessage = nullStringValue(errorMessage)
	cal.TokenExpiresAt = nullTimeValue(tokenExpiresAt)
	cal.LastSyncedAt = nullTimeValue(lastSyncedAt)

	return cal, nil
}

// FindByID は指定IDのカレンダーを取得する。見つからない場合はnilを返す。
func (r *PostgresCalendarRepo) FindByID(ctx context.Context, id string) (*model.Calendar, error) {
	cal, err := scanCalendar(r.db.QueryRowContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("カレンダーの取得に失敗しました: %w", err)
	}
	return cal, nil
}

// ListByUserID はユーザーのカレンダー一覧を作成日時昇順で返す。
func (r *PostgresCalendarRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Calendar, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("カレンダー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectCalendars(rows)
}

// ListActiveByUserIDs は複数ユーザーの有効なカレンダー一覧を返す。
func (r *PostgresCalendarRepo) ListActiveByUserIDs(ctx context.Context, userIDs []string) ([]*model.Calendar, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars
		 WHERE user_id = ANY($1) AND is_active = true
		 ORDER BY created_at ASC`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("カレンダー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectCalendars(rows)
}

func collectCalendars(rows *sql.Rows) ([]*model.Calendar, error) {
	var calendars []*model.Calendar
	for rows.Next() {
		cal, err := scanCalendar(rows)
		if err != nil {
			return nil, fmt.Errorf("カレンダーの読み取りに失敗しました: %w", err)
		}
		calendars = append(calendars, cal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カレンダーの走査に失敗しました: %w", err)
	}
	return calendars, nil
}

// Create はカレンダーを作成する。
func (r *PostgresCalendarRepo) Create(ctx context.Context, cal *model.Calendar) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calendars (id, user_id, name, provider, provider_id, access_token, refresh_token,
		                        token_expires_at, endpoint_url, is_primary, is_active, sync_status,
		                        consecutive_errors, error_message, next_sync_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		cal.ID, cal.UserID, cal.Name, cal.Provider, nullString(cal.ProviderID),
		nullString(cal.AccessToken), nullString(cal.RefreshToken),
		nullTime(cal.TokenExpiresAt), nullString(cal.EndpointURL),
		cal.IsPrimary, cal.IsActive, cal.SyncStatus,
		cal.ConsecutiveErrors, nullString(cal.ErrorMessage), cal.NextSyncAt,
		cal.CreatedAt, cal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("カレンダーの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はカレンダー情報を更新する。
func (r *PostgresCalendarRepo) Update(ctx context.Context, cal *model.Calendar) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calendars SET
		    name = $2, provider_id = $3, endpoint_url = $4,
		    is_primary = $5, is_active = $6, updated_at = now()
		 WHERE id = $1`,
		cal.ID, cal.Name, nullString(cal.ProviderID), nullString(cal.EndpointURL),
		cal.IsPrimary, cal.IsActive,
	)
	if err != nil {
		return fmt.Errorf("カレンダーの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateTokens はOAuthトークンを更新する。
func (r *PostgresCalendarRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calendars SET
		    access_token = $2, refresh_token = $3, token_expires_at = $4, updated_at = now()
		 WHERE id = $1`,
		id, nullString(accessToken), nullString(refreshToken), nullTime(expiresAt),
	)
	if err != nil {
		return fmt.Errorf("トークンの更新に失敗しました: %w", err)
	}
	return nil
}

// SetPrimary は指定カレンダーをプライマリに設定し、同一ユーザーの他のカレンダーを解除する。
func (r *PostgresCalendarRepo) SetPrimary(ctx context.Context, userID, calendarID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE calendars SET is_primary = false, updated_at = now()
		 WHERE user_id = $1 AND is_primary = true`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("プライマリ解除に失敗しました: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE calendars SET is_primary = true, updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		calendarID, userID,
	)
	if err != nil {
		return fmt.Errorf("プライマリ設定に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("calendar not found: %s", calendarID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定IDのカレンダーを削除する。
func (r *PostgresCalendarRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM calendars WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("カレンダーの削除に失敗しました: %w", err)
	}
	return nil
}

// claimDueCalendarsQuery は同期対象カレンダーの確保クエリ。
// 単発クエリのSELECT ... FOR UPDATEではクエリ終了時に行ロックが解放されるため、
// next_sync_atを5分先送りするUPDATE ... RETURNINGで確保を永続化する。
// 確保した行の次回同期時刻は同期完了時にUpdateSyncStateが再設定する。
const claimDueCalendarsQuery = `UPDATE calendars
	 SET next_sync_at = now() + interval '5 minutes', updated_at = now()
	 WHERE id IN (
	   SELECT id FROM calendars
	   WHERE next_sync_at <= now()
	     AND sync_status = 'active'
	     AND is_active = true
	   ORDER BY next_sync_at ASC
	   FOR UPDATE SKIP LOCKED
	 )
	 RETURNING ` + calendarColumns

// ListDueForSync は同期対象のカレンダーを確保して返す。
// 確保された行は他のワーカーからは取得されない。
func (r *PostgresCalendarRepo) ListDueForSync(ctx context.Context) ([]*model.Calendar, error) {
	rows, err := r.db.QueryContext(ctx, claimDueCalendarsQuery)
	if err != nil {
		return nil, fmt.Errorf("同期対象カレンダーの取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectCalendars(rows)
}

// UpdateSyncState はカレンダーの同期状態を更新する。
func (r *PostgresCalendarRepo) UpdateSyncState(ctx context.Context, cal *model.Calendar) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calendars SET
		    sync_status = $2,
		    consecutive_errors = $3,
		    error_message = $4,
		    next_sync_at = $5,
		    last_synced_at = $6,
		    updated_at = now()
		 WHERE id = $1`,
		cal.ID,
		cal.SyncStatus,
		cal.ConsecutiveErrors,
		nullString(cal.ErrorMessage),
		cal.NextSyncAt,
		nullTime(cal.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("同期状態の更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimeValue はsql.NullTimeから*time.Timeを取得する。
func nullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// compile-time interface check
var _ CalendarRepository = (*PostgresCalendarRepo)(nil)
