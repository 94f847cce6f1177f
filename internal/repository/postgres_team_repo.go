package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
type PostgresTeamRepo struct {
	db *sql.DB
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db *sql.DB) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	team := &model.Team{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM teams WHERE id = $1`,
		id,
	).Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	return team, nil
}

// FindWithMembers はチームとメンバーID一覧を取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindWithMembers(ctx context.Context, id string) (*model.TeamWithMembers, error) {
	team, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, nil
	}

	memberIDs, err := r.ListMemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	return &model.TeamWithMembers{Team: *team, MemberIDs: memberIDs}, nil
}

// ListByMember はユーザーが所属するチーム一覧を返す。
func (r *PostgresTeamRepo) ListByMember(ctx context.Context, userID string) ([]*model.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.owner_id, t.created_at, t.updated_at
		 FROM teams t
		 INNER JOIN team_members tm ON t.id = tm.team_id
		 WHERE tm.user_id = $1
		 ORDER BY t.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var teams []*model.Team
	for rows.Next() {
		team := &model.Team{}
		if err := rows.Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, fmt.Errorf("チームの読み取りに失敗しました: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チームの走査に失敗しました: %w", err)
	}
	return teams, nil
}

// Create はチームを作成し、オーナーをメンバーに追加する。同一トランザクションで行う。
func (r *PostgresTeamRepo) Create(ctx context.Context, team *model.Team) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO teams (id, name, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		team.ID, team.Name, team.OwnerID, team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チームの作成に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`,
		team.ID, team.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("オーナーのメンバー追加に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はチーム情報を更新する。
func (r *PostgresTeamRepo) Update(ctx context.Context, team *model.Team) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = $2, updated_at = now() WHERE id = $1`,
		team.ID, team.Name,
	)
	if err != nil {
		return fmt.Errorf("チームの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのチームを削除する。メンバー関連はCASCADE削除される。
func (r *PostgresTeamRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM teams WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("チームの削除に失敗しました: %w", err)
	}
	return nil
}

// AddMember はチームにメンバーを追加する。既にメンバーの場合は何もしない。
func (r *PostgresTeamRepo) AddMember(ctx context.Context, teamID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)
		 ON CONFLICT (team_id, user_id) DO NOTHING`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("メンバーの追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveMember はチームからメンバーを削除する。
func (r *PostgresTeamRepo) RemoveMember(ctx context.Context, teamID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("メンバーの削除に失敗しました: %w", err)
	}
	return nil
}

// IsMember はユーザーがチームのメンバーかを返す。
func (r *PostgresTeamRepo) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`,
		teamID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("メンバー確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ListMemberIDs はチームのメンバーID一覧を返す。
func (r *PostgresTeamRepo) ListMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY created_at ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var memberIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("メンバーIDの読み取りに失敗しました: %w", err)
		}
		memberIDs = append(memberIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メンバーIDの走査に失敗しました: %w", err)
	}
	return memberIDs, nil
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
