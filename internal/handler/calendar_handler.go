package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

const oauthStateCookie = "oauth_state"

// CalendarServiceInterface はカレンダーハンドラーが必要とするサービスインターフェース。
type CalendarServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Calendar, error)
	Get(ctx context.Context, userID, calendarID string) (*model.Calendar, error)
	BeginOAuth(ctx context.Context, providerName, state, redirectURL string) (string, error)
	CompleteOAuth(ctx context.Context, userID, providerName, code, redirectURL, name string) (*model.Calendar, error)
	ConnectCalDAV(ctx context.Context, userID, providerName, name, endpointURL, username, appPassword string) (*model.Calendar, error)
	SetPrimary(ctx context.Context, userID, calendarID string) error
	Delete(ctx context.Context, userID, calendarID string) error
	TriggerSync(ctx context.Context, userID, calendarID string) error

	ListOAuthSettings(ctx context.Context, actor *model.User) ([]*model.OAuthSettings, error)
	UpsertOAuthSettings(ctx context.Context, actor *model.User, providerName, clientID, clientSecret string) (*model.OAuthSettings, error)
	DeleteOAuthSettings(ctx context.Context, actor *model.User, providerName string) error
}

// CalendarHandlerConfig はカレンダーハンドラーの設定。
type CalendarHandlerConfig struct {
	FrontendURL  string // OAuth完了後のリダイレクト先
	APIBaseURL   string // OAuthコールバックURLの生成に使用する
	CookieSecure bool
}

// CalendarHandler はカレンダー接続管理のHTTPハンドラー。
type CalendarHandler struct {
	service CalendarServiceInterface
	config  CalendarHandlerConfig
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(service CalendarServiceInterface, config CalendarHandlerConfig) *CalendarHandler {
	return &CalendarHandler{
		service: service,
		config:  config,
	}
}

// calendarResponse はカレンダー接続のAPIレスポンス。認証情報は含めない。
type calendarResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Provider     string     `json:"provider"`
	IsPrimary    bool       `json:"is_primary"`
	IsActive     bool       `json:"is_active"`
	SyncStatus   string     `json:"sync_status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// connectCalDAVRequest はCalDAV接続リクエストのボディ。
type connectCalDAVRequest struct {
	Provider    string `json:"provider"`
	Name        string `json:"name"`
	EndpointURL string `json:"endpoint_url"`
	Username    string `json:"username"`
	AppPassword string `json:"app_password"`
}

// oauthSettingsRequest はOAuth設定の登録リクエストのボディ。
type oauthSettingsRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// oauthSettingsResponse はOAuth設定のAPIレスポンス。シークレットは返さない。
type oauthSettingsResponse struct {
	Provider string `json:"provider"`
	ClientID string `json:"client_id"`
	IsActive bool   `json:"is_active"`
}

// toCalendarResponse はmodel.CalendarからAPIレスポンスに変換する。
func toCalendarResponse(cal *model.Calendar) calendarResponse {
	return calendarResponse{
		ID:           cal.ID,
		Name:         cal.Name,
		Provider:     cal.Provider,
		IsPrimary:    cal.IsPrimary,
		IsActive:     cal.IsActive,
		SyncStatus:   string(cal.SyncStatus),
		ErrorMessage: cal.ErrorMessage,
		LastSyncedAt: cal.LastSyncedAt,
	}
}

// oauthRedirectURL はプロバイダーのOAuthコールバックURLを返す。
func (h *CalendarHandler) oauthRedirectURL(providerName string) string {
	return h.config.APIBaseURL + "/api/calendars/oauth/" + providerName + "/callback"
}

// List は自分のカレンダー接続一覧を返す。
// GET /api/calendars
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	calendars, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]calendarResponse, 0, len(calendars))
	for _, cal := range calendars {
		resp = append(resp, toCalendarResponse(cal))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get はカレンダー接続の詳細を返す。
// GET /api/calendars/{id}
func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	cal, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCalendarResponse(cal))
}

// OAuthLogin はOAuthプロバイダーの認可フローを開始する。
// GET /api/calendars/oauth/{provider}/login
func (h *CalendarHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		})
		return
	}

	authURL, err := h.service.BeginOAuth(r.Context(), providerName, state, h.oauthRedirectURL(providerName))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// OAuthCallback はOAuthコールバックを処理し、カレンダー接続を作成する。
// GET /api/calendars/oauth/{provider}/callback?code=xxx&state=yyy
func (h *CalendarHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	providerName := chi.URLParam(r, "provider")

	// stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("provider", providerName),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = providerName
	}

	if _, err := h.service.CompleteOAuth(r.Context(), userID, providerName, code, h.oauthRedirectURL(providerName), name); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, h.config.FrontendURL, http.StatusTemporaryRedirect)
}

// ConnectCalDAV はCalDAVプロバイダー（apple/mailcow）のカレンダー接続を作成する。
// POST /api/calendars/caldav
func (h *CalendarHandler) ConnectCalDAV(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req connectCalDAVRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.Provider == "" || req.Username == "" || req.AppPassword == "" {
		writeInvalidRequest(w)
		return
	}

	cal, err := h.service.ConnectCalDAV(r.Context(), userID, req.Provider, req.Name, req.EndpointURL, req.Username, req.AppPassword)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCalendarResponse(cal))
}

// SetPrimary はカレンダーをプライマリに設定する。
// PUT /api/calendars/{id}/primary
func (h *CalendarHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.SetPrimary(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete はカレンダー接続を削除する。
// DELETE /api/calendars/{id}
func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerSync はカレンダーの即時同期を要求する。
// POST /api/calendars/{id}/sync
func (h *CalendarHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.TriggerSync(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "同期を受け付けました。",
	})
}

// ListOAuthSettings は全プロバイダーのOAuth設定を返す。スーパー管理者専用。
// GET /api/admin/oauth-settings
func (h *CalendarHandler) ListOAuthSettings(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	settings, err := h.service.ListOAuthSettings(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]oauthSettingsResponse, 0, len(settings))
	for _, s := range settings {
		resp = append(resp, oauthSettingsResponse{
			Provider: s.Provider,
			ClientID: s.ClientID,
			IsActive: s.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpsertOAuthSettings はプロバイダーのOAuth設定を登録する。スーパー管理者専用。
// PUT /api/admin/oauth-settings/{provider}
func (h *CalendarHandler) UpsertOAuthSettings(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req oauthSettingsRequest
	if err := decodeJSON(r, &req); err != nil || req.ClientID == "" || req.ClientSecret == "" {
		writeInvalidRequest(w)
		return
	}

	settings, err := h.service.UpsertOAuthSettings(r.Context(), actor, chi.URLParam(r, "provider"), req.ClientID, req.ClientSecret)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, oauthSettingsResponse{
		Provider: settings.Provider,
		ClientID: settings.ClientID,
		IsActive: settings.IsActive,
	})
}

// DeleteOAuthSettings はプロバイダーのOAuth設定を削除する。スーパー管理者専用。
// DELETE /api/admin/oauth-settings/{provider}
func (h *CalendarHandler) DeleteOAuthSettings(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteOAuthSettings(r.Context(), actor, chi.URLParam(r, "provider")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
