package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// PostgresAvailabilityRepo はPostgreSQLを使用した空き時間ルールリポジトリ。
type PostgresAvailabilityRepo struct {
	db *sql.DB
}

// NewPostgresAvailabilityRepo はPostgresAvailabilityRepoを生成する。
func NewPostgresAvailabilityRepo(db *sql.DB) *PostgresAvailabilityRepo {
	return &PostgresAvailabilityRepo{db: db}
}

// FindByID は指定IDのルールを取得する。見つからない場合はnilを返す。
func (r *PostgresAvailabilityRepo) FindByID(ctx context.Context, id string) (*model.Availability, error) {
	a := &model.Availability{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, day_of_week, start_minutes, end_minutes
		 FROM availability WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.UserID, &a.DayOfWeek, &a.StartMinutes, &a.EndMinutes)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("空き時間ルールの取得に失敗しました: %w", err)
	}
	return a, nil
}

// ListByUserID はユーザーのルール一覧を曜日・開始時刻昇順で返す。
func (r *PostgresAvailabilityRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Availability, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, day_of_week, start_minutes, end_minutes
		 FROM availability WHERE user_id = $1
		 ORDER BY day_of_week ASC, start_minutes ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("空き時間ルール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectAvailability(rows)
}

// ListByUserIDs は複数ユーザーのルール一覧を返す。
func (r *PostgresAvailabilityRepo) ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.Availability, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, day_of_week, start_minutes, end_minutes
		 FROM availability WHERE user_id = ANY($1)
		 ORDER BY user_id, day_of_week ASC, start_minutes ASC`,
		pq.Array(userIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("空き時間ルール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return collectAvailability(rows)
}

func collectAvailability(rows *sql.Rows) ([]*model.Availability, error) {
	var rules []*model.Availability
	for rows.Next() {
		a := &model.Availability{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.DayOfWeek, &a.StartMinutes, &a.EndMinutes); err != nil {
			return nil, fmt.Errorf("空き時間ルールの読み取りに失敗しました: %w", err)
		}
		rules = append(rules, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("空き時間ルールの走査に失敗しました: %w", err)
	}
	return rules, nil
}

// Create はルールを作成する。
func (r *PostgresAvailabilityRepo) Create(ctx context.Context, a *model.Availability) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO availability (id, user_id, day_of_week, start_minutes, end_minutes)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.DayOfWeek, a.StartMinutes, a.EndMinutes,
	)
	if err != nil {
		return fmt.Errorf("空き時間ルールの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はルールを更新する。
func (r *PostgresAvailabilityRepo) Update(ctx context.Context, a *model.Availability) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE availability SET
		    day_of_week = $2, start_minutes = $3, end_minutes = $4
		 WHERE id = $1`,
		a.ID, a.DayOfWeek, a.StartMinutes, a.EndMinutes,
	)
	if err != nil {
		return fmt.Errorf("空き時間ルールの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのルールを削除する。
func (r *PostgresAvailabilityRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM availability WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("空き時間ルールの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AvailabilityRepository = (*PostgresAvailabilityRepo)(nil)
