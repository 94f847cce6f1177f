// Package calendar はカレンダー接続の管理とプロバイダー連携を提供する。
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/provider"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// Service はカレンダー接続のサービス層。
// 接続の作成（OAuth / CalDAV）、一覧、プライマリ設定、削除、手動同期を提供する。
type Service struct {
	calendarRepo repository.CalendarRepository
	oauthRepo    repository.OAuthSettingsRepository
	registry     *provider.Registry
	idGen        func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	calendarRepo repository.CalendarRepository,
	oauthRepo repository.OAuthSettingsRepository,
	registry *provider.Registry,
	idGen func() string,
) *Service {
	return &Service{
		calendarRepo: calendarRepo,
		oauthRepo:    oauthRepo,
		registry:     registry,
		idGen:        idGen,
	}
}

// List はユーザーのカレンダー一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Calendar, error) {
	calendars, err := s.calendarRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カレンダー一覧の取得に失敗しました: %w", err)
	}
	return calendars, nil
}

// Get は指定IDのカレンダーを取得する。所有者以外からの取得は未検出として扱う。
func (s *Service) Get(ctx context.Context, userID, calendarID string) (*model.Calendar, error) {
	cal, err := s.calendarRepo.FindByID(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("カレンダーの取得に失敗しました: %w", err)
	}
	if cal == nil || cal.UserID != userID {
		return nil, model.NewCalendarNotFoundError(calendarID)
	}
	return cal, nil
}

// BeginOAuth はOAuthプロバイダーの認可URLを生成する。
// OAuthに対応しないプロバイダーの場合はPROVIDER_UNSUPPORTEDエラーを返す。
func (s *Service) BeginOAuth(ctx context.Context, providerName, state, redirectURL string) (string, error) {
	p, err := s.registry.Get(providerName)
	if err != nil {
		return "", model.NewProviderUnsupportedError(providerName)
	}

	authURL, err := p.AuthCodeURL(ctx, state, redirectURL)
	if err != nil {
		return "", s.mapProviderError(providerName, err)
	}
	return authURL, nil
}

// CompleteOAuth はOAuthコールバックを処理し、カレンダー接続を作成する。
func (s *Service) CompleteOAuth(ctx context.Context, userID, providerName, code, redirectURL, name string) (*model.Calendar, error) {
	p, err := s.registry.Get(providerName)
	if err != nil {
		return nil, model.NewProviderUnsupportedError(providerName)
	}

	token, err := p.ExchangeCode(ctx, code, redirectURL)
	if err != nil {
		return nil, s.mapProviderError(providerName, err)
	}

	now := time.Now()
	cal := &model.Calendar{
		ID:             s.idGen(),
		UserID:         userID,
		Name:           name,
		Provider:       providerName,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		TokenExpiresAt: token.Expiry,
		IsActive:       true,
		SyncStatus:     model.SyncStatusActive,
		NextSyncAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.calendarRepo.Create(ctx, cal); err != nil {
		return nil, fmt.Errorf("カレンダーの作成に失敗しました: %w", err)
	}

	slog.Info("calendar connected via oauth",
		slog.String("calendar_id", cal.ID),
		slog.String("user_id", userID),
		slog.String("provider", providerName),
	)
	return cal, nil
}

// ConnectCalDAV はCalDAVプロバイダー（apple/mailcow）のカレンダー接続を作成する。
// 保存前にVerifyConnectionで認証情報と接続先を検証する。
// CalDAV接続ではaccess_tokenにユーザー名、refresh_tokenにアプリパスワードを保持する。
func (s *Service) ConnectCalDAV(ctx context.Context, userID, providerName, name, endpointURL, username, appPassword string) (*model.Calendar, error) {
	p, err := s.registry.Get(providerName)
	if err != nil {
		return nil, model.NewProviderUnsupportedError(providerName)
	}

	now := time.Now()
	cal := &model.Calendar{
		ID:           s.idGen(),
		UserID:       userID,
		Name:         name,
		Provider:     providerName,
		AccessToken:  username,
		RefreshToken: appPassword,
		EndpointURL:  endpointURL,
		IsActive:     true,
		SyncStatus:   model.SyncStatusActive,
		NextSyncAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.VerifyConnection(ctx, cal); err != nil {
		return nil, s.mapProviderError(providerName, err)
	}

	if err := s.calendarRepo.Create(ctx, cal); err != nil {
		return nil, fmt.Errorf("カレンダーの作成に失敗しました: %w", err)
	}

	slog.Info("calendar connected via caldav",
		slog.String("calendar_id", cal.ID),
		slog.String("user_id", userID),
		slog.String("provider", providerName),
	)
	return cal, nil
}

// SetPrimary は指定カレンダーをプライマリに設定する。
// 同一ユーザーの他のカレンダーのプライマリ指定は解除される。
func (s *Service) SetPrimary(ctx context.Context, userID, calendarID string) error {
	if _, err := s.Get(ctx, userID, calendarID); err != nil {
		return err
	}
	if err := s.calendarRepo.SetPrimary(ctx, userID, calendarID); err != nil {
		return fmt.Errorf("プライマリ設定に失敗しました: %w", err)
	}
	return nil
}

// Delete はカレンダー接続を削除する。
func (s *Service) Delete(ctx context.Context, userID, calendarID string) error {
	if _, err := s.Get(ctx, userID, calendarID); err != nil {
		return err
	}
	if err := s.calendarRepo.Delete(ctx, calendarID); err != nil {
		return fmt.Errorf("カレンダーの削除に失敗しました: %w", err)
	}

	slog.Info("calendar deleted",
		slog.String("calendar_id", calendarID),
		slog.String("user_id", userID),
	)
	return nil
}

// TriggerSync はカレンダーの即時同期を要求する。
// 同期状態をactiveに戻し、次回同期時刻を現在時刻に設定する。
// 実際の同期は同期ワーカーが行う。
func (s *Service) TriggerSync(ctx context.Context, userID, calendarID string) error {
	cal, err := s.Get(ctx, userID, calendarID)
	if err != nil {
		return err
	}

	cal.SyncStatus = model.SyncStatusActive
	cal.ConsecutiveErrors = 0
	cal.ErrorMessage = ""
	cal.NextSyncAt = time.Now()
	if err := s.calendarRepo.UpdateSyncState(ctx, cal); err != nil {
		return fmt.Errorf("同期状態の更新に失敗しました: %w", err)
	}
	return nil
}

// ListOAuthSettings は全プロバイダーのOAuth設定を返す。スーパー管理者のみ実行できる。
func (s *Service) ListOAuthSettings(ctx context.Context, actor *model.User) ([]*model.OAuthSettings, error) {
	if !actor.IsSuperAdmin() {
		return nil, model.NewPermissionDeniedError()
	}
	settings, err := s.oauthRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("OAuth設定一覧の取得に失敗しました: %w", err)
	}
	return settings, nil
}

// UpsertOAuthSettings はプロバイダーのOAuth設定を作成または上書きする。
// スーパー管理者のみ実行できる。DB上の設定は環境変数設定より優先される。
func (s *Service) UpsertOAuthSettings(ctx context.Context, actor *model.User, providerName, clientID, clientSecret string) (*model.OAuthSettings, error) {
	if !actor.IsSuperAdmin() {
		return nil, model.NewPermissionDeniedError()
	}

	now := time.Now()
	settings := &model.OAuthSettings{
		ID:           s.idGen(),
		Provider:     providerName,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.oauthRepo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("OAuth設定の保存に失敗しました: %w", err)
	}

	slog.Info("oauth settings updated",
		slog.String("actor_id", actor.ID),
		slog.String("provider", providerName),
	)
	return settings, nil
}

// DeleteOAuthSettings はプロバイダーのOAuth設定を削除する。スーパー管理者のみ実行できる。
func (s *Service) DeleteOAuthSettings(ctx context.Context, actor *model.User, providerName string) error {
	if !actor.IsSuperAdmin() {
		return model.NewPermissionDeniedError()
	}
	if err := s.oauthRepo.Delete(ctx, providerName); err != nil {
		return fmt.Errorf("OAuth設定の削除に失敗しました: %w", err)
	}
	return nil
}

// mapProviderError はプロバイダーエラーをAPIエラーに変換する。
func (s *Service) mapProviderError(providerName string, err error) error {
	switch {
	case provider.IsUnsupported(err):
		return model.NewProviderUnsupportedError(providerName)
	case provider.IsTransient(err):
		slog.Warn("provider temporarily unavailable",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		return model.NewProviderUnavailableError(providerName)
	default:
		slog.Warn("provider auth failed",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		return model.NewProviderAuthFailedError(providerName)
	}
}
