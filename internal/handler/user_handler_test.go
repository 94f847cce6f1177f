package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

func authedReq(method, target, body string, user *model.User) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.ContextWithUser(req.Context(), user))
}

func testAdmin() *model.User {
	return &model.User{
		ID:       "admin-1",
		Email:    "admin@example.com",
		Role:     model.RoleSuperAdmin,
		IsActive: true,
	}
}

func TestUserMe_Unauthenticated(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUserMe_ReturnsProfile(t *testing.T) {
	svc := &mockUserService{
		getFn: func(ctx context.Context, userID string) (*model.User, error) {
			return verifiedUser(), nil
		},
	}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.Me(rec, authedReq(http.MethodGet, "/api/users/me", "", verifiedUser()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["id"] != "user-1" {
		t.Errorf("id = %v", resp["id"])
	}
}

func TestUpdateMe_RouteTimePreference(t *testing.T) {
	updated := 0
	svc := &mockUserService{
		updateRouteTimeFn: func(ctx context.Context, userID string, minutes int) (*model.User, error) {
			updated = minutes
			u := verifiedUser()
			u.RouteTimePreference = minutes
			return u, nil
		},
	}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.UpdateMe(rec, authedReq(http.MethodPatch, "/api/users/me", `{"route_time_preference":45}`, verifiedUser()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if updated != 45 {
		t.Errorf("minutes = %d, want 45", updated)
	}
}

func TestUpdateMe_InvalidRouteTime(t *testing.T) {
	svc := &mockUserService{
		updateRouteTimeFn: func(ctx context.Context, userID string, minutes int) (*model.User, error) {
			return nil, model.NewInvalidRouteTimeError(minutes)
		},
	}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.UpdateMe(rec, authedReq(http.MethodPatch, "/api/users/me", `{"route_time_preference":15}`, verifiedUser()))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWithdraw(t *testing.T) {
	withdrawn := ""
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawn = userID
			return nil
		},
	}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.Withdraw(rec, authedReq(http.MethodDelete, "/api/users/me", "", verifiedUser()))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if withdrawn != "user-1" {
		t.Errorf("withdrawn = %q", withdrawn)
	}
}

func TestAdminList_PermissionDenied(t *testing.T) {
	svc := &mockUserService{
		listFn: func(ctx context.Context, actor *model.User) ([]*model.User, error) {
			return nil, model.NewPermissionDeniedError()
		},
	}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.AdminList(rec, authedReq(http.MethodGet, "/api/admin/users", "", verifiedUser()))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAdminCreate(t *testing.T) {
	svc := &mockUserService{
		adminCreateFn: func(ctx context.Context, actor *model.User, email, name, password string, role model.UserRole) (*model.User, error) {
			if actor.ID != "admin-1" {
				t.Errorf("actor = %s", actor.ID)
			}
			u := verifiedUser()
			u.Email = email
			u.Role = role
			return u, nil
		},
	}
	h := NewUserHandler(svc)

	body := `{"email":"hanako@example.com","name":"花子","password":"secret123","role":"user"}`
	rec := httptest.NewRecorder()
	h.AdminCreate(rec, authedReq(http.MethodPost, "/api/admin/users", body, testAdmin()))

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestAdminDelete_SelfDelete(t *testing.T) {
	svc := &mockUserService{
		adminDeleteFn: func(ctx context.Context, actor *model.User, userID string) error {
			return model.NewSelfDeleteForbiddenError()
		},
	}
	h := NewUserHandler(svc)

	rec := httptest.NewRecorder()
	h.AdminDelete(rec, authedReq(http.MethodDelete, "/api/admin/users/admin-1", "", testAdmin()))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAdminStats(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	rec := httptest.NewRecorder()
	h.AdminStats(rec, authedReq(http.MethodGet, "/api/admin/users/stats", "", testAdmin()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := resp["total"]; !ok {
		t.Error("totalフィールドが含まれるべき")
	}
}
