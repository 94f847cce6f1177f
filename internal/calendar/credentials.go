package calendar

import (
	"context"
	"fmt"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/provider"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// CredentialsStore はOAuthクライアントクレデンシャルの解決を行う。
// DB上のoauth_settingsを優先し、googleについては未設定時に環境変数の値へ
// フォールバックする。
type CredentialsStore struct {
	oauthRepo          repository.OAuthSettingsRepository
	googleClientID     string
	googleClientSecret string
}

// NewCredentialsStore はCredentialsStoreを生成する。
func NewCredentialsStore(oauthRepo repository.OAuthSettingsRepository, googleClientID, googleClientSecret string) *CredentialsStore {
	return &CredentialsStore{
		oauthRepo:          oauthRepo,
		googleClientID:     googleClientID,
		googleClientSecret: googleClientSecret,
	}
}

// ClientCredentials は指定プロバイダーのクライアントID/シークレットを返す。
func (c *CredentialsStore) ClientCredentials(ctx context.Context, providerName string) (string, string, error) {
	settings, err := c.oauthRepo.FindByProvider(ctx, providerName)
	if err != nil {
		return "", "", fmt.Errorf("OAuth設定の取得に失敗しました: %w", err)
	}
	if settings != nil {
		return settings.ClientID, settings.ClientSecret, nil
	}

	if providerName == model.ProviderGoogle && c.googleClientID != "" {
		return c.googleClientID, c.googleClientSecret, nil
	}

	return "", "", model.NewOAuthSettingsNotFoundError(providerName)
}

// compile-time interface check
var _ provider.CredentialsSource = (*CredentialsStore)(nil)
