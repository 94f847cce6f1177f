package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// PostgresOAuthSettingsRepo はPostgreSQLを使用したOAuth設定リポジトリ。
type PostgresOAuthSettingsRepo struct {
	db *sql.DB
}

// NewPostgresOAuthSettingsRepo はPostgresOAuthSettingsRepoを生成する。
func NewPostgresOAuthSettingsRepo(db *sql.DB) *PostgresOAuthSettingsRepo {
	return &PostgresOAuthSettingsRepo{db: db}
}

// FindByProvider は指定プロバイダーの有効な設定を取得する。見つからない場合はnilを返す。
func (r *PostgresOAuthSettingsRepo) FindByProvider(ctx context.Context, provider string) (*model.OAuthSettings, error) {
	s := &model.OAuthSettings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, provider, client_id, client_secret, is_active, created_at, updated_at
		 FROM oauth_settings WHERE provider = $1 AND is_active = true`,
		provider,
	).Scan(&s.ID, &s.Provider, &s.ClientID, &s.ClientSecret, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("OAuth設定の取得に失敗しました: %w", err)
	}
	return s, nil
}

// List は全設定を返す。
func (r *PostgresOAuthSettingsRepo) List(ctx context.Context) ([]*model.OAuthSettings, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, provider, client_id, client_secret, is_active, created_at, updated_at
		 FROM oauth_settings ORDER BY provider ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("OAuth設定一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var settings []*model.OAuthSettings
	for rows.Next() {
		s := &model.OAuthSettings{}
		if err := rows.Scan(&s.ID, &s.Provider, &s.ClientID, &s.ClientSecret, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("OAuth設定の読み取りに失敗しました: %w", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("OAuth設定の走査に失敗しました: %w", err)
	}
	return settings, nil
}

// Upsert はプロバイダーの設定を作成または上書きする。
func (r *PostgresOAuthSettingsRepo) Upsert(ctx context.Context, s *model.OAuthSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_settings (id, provider, client_id, client_secret, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (provider) DO UPDATE SET
		    client_id = EXCLUDED.client_id,
		    client_secret = EXCLUDED.client_secret,
		    is_active = EXCLUDED.is_active,
		    updated_at = now()`,
		s.ID, s.Provider, s.ClientID, s.ClientSecret, s.IsActive, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("OAuth設定の保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定プロバイダーの設定を削除する。
func (r *PostgresOAuthSettingsRepo) Delete(ctx context.Context, provider string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_settings WHERE provider = $1`,
		provider,
	)
	if err != nil {
		return fmt.Errorf("OAuth設定の削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OAuthSettingsRepository = (*PostgresOAuthSettingsRepo)(nil)
