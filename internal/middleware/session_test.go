package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockUserFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserFinder) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func activeUser() *model.User {
	return &model.User{
		ID:       "user-1",
		Email:    "taro@example.com",
		Role:     model.RoleUser,
		IsActive: true,
	}
}

func validSession() *model.Session {
	return &model.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestSessionMiddleware_NoCookie(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionFinder{}, &mockUserFinder{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("未認証リクエストはハンドラーに到達しないべき")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/calendars", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionMiddleware_UnknownSession(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionFinder{}, &mockUserFinder{})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("無効なセッションはハンドラーに到達しないべき")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/calendars", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "unknown"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionMiddleware_InactiveUser(t *testing.T) {
	sessions := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return validSession(), nil
		},
	}
	users := &mockUserFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			u := activeUser()
			u.IsActive = false
			return u, nil
		},
	}

	mw := NewSessionMiddleware(sessions, users)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("無効化済みアカウントはハンドラーに到達しないべき")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/calendars", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestSessionMiddleware_InjectsUser(t *testing.T) {
	sessions := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "sess-1" {
				t.Errorf("session ID = %s", id)
			}
			return validSession(), nil
		},
	}
	users := &mockUserFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return activeUser(), nil
		},
	}

	mw := NewSessionMiddleware(sessions, users)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r.Context())
		if err != nil {
			t.Fatalf("UserFromContext: %v", err)
		}
		if user.ID != "user-1" {
			t.Errorf("user ID = %s", user.ID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/calendars", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Error("ユーザー未注入のコンテキストではエラーを返すべき")
	}
}

func TestContextWithUser(t *testing.T) {
	ctx := ContextWithUser(context.Background(), activeUser())

	user, err := UserFromContext(ctx)
	if err != nil {
		t.Fatalf("UserFromContext: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user ID = %s", user.ID)
	}

	userID, err := UserIDFromContext(ctx)
	if err != nil || userID != "user-1" {
		t.Errorf("UserIDFromContext = %q, %v", userID, err)
	}
}
