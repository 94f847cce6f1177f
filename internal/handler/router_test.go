package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

type staticSessionFinder struct {
	sessions map[string]*model.Session
}

func (s *staticSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return s.sessions[id], nil
}

type staticUserFinder struct {
	users map[string]*model.User
}

func (s *staticUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.users[id], nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(100),
		GeneralBurst:    100,
		SyncRate:        rate.Limit(100),
		SyncBurst:       100,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		SessionFinder: &staticSessionFinder{sessions: map[string]*model.Session{
			"sess-1": {ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
		}},
		UserFinder: &staticUserFinder{users: map[string]*model.User{
			"user-1": verifiedUser(),
		}},
		CORSAllowedOrigin:   "http://localhost:3000",
		RateLimiter:         rl,
		Logger:              slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AuthService:         &mockAuthService{},
		AuthConfig:          testAuthConfig(),
		UserService:         &mockUserService{},
		CalendarService:     &mockCalendarService{},
		CalendarConfig:      testCalendarConfig(),
		AvailabilityService: &mockAvailabilityService{},
		TeamService:         &mockTeamService{},
		MeetingService:      &mockMeetingService{},
	})
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_ProtectedRouteRequiresSession(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendars", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_SessionCookieGrantsAccess(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/calendars", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_AuthRoutesArePublic(t *testing.T) {
	router := newTestRouter(t)

	// セッションなしでも404や401ではなくハンドラーに到達する
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/verify?token=abc", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_CORSHeadersOnAllRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORSヘッダーが付与されるべき")
	}
}

func TestRouter_SecurityHeadersOnAllRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRouter_TeamAvailabilityRoute(t *testing.T) {
	router := newTestRouter(t)

	target := "/api/teams/team-1/availability?from=2026-09-07T00:00:00Z&to=2026-09-14T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_SyncTriggerRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/calendars/cal-1/sync", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	addCSRFToken(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestRouter_StateChangeWithoutCSRFTokenIsRejected(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/calendars/cal-1/sync", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// addCSRFToken はダブルサブミットCookie方式のCSRFトークンをリクエストに付与する。
func addCSRFToken(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-csrf-token"})
	req.Header.Set("X-CSRF-Token", "test-csrf-token")
}
