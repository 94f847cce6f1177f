package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID, name string) (*model.User, error)
	UpdateRouteTimePreference(ctx context.Context, userID string, minutes int) (*model.User, error)
	Withdraw(ctx context.Context, userID string) error

	List(ctx context.Context, actor *model.User) ([]*model.User, error)
	Stats(ctx context.Context, actor *model.User) (*repository.UserStats, error)
	AdminCreate(ctx context.Context, actor *model.User, email, name, password string, role model.UserRole) (*model.User, error)
	AdminUpdate(ctx context.Context, actor *model.User, userID string, name *string, role *model.UserRole, isActive *bool) (*model.User, error)
	AdminDelete(ctx context.Context, actor *model.User, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Role                string    `json:"role"`
	IsActive            bool      `json:"is_active"`
	IsVerified          bool      `json:"is_verified"`
	RouteTimePreference int       `json:"route_time_preference"`
	CreatedAt           time.Time `json:"created_at"`
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:                  user.ID,
		Email:               user.Email,
		Name:                user.Name,
		Role:                string(user.Role),
		IsActive:            user.IsActive,
		IsVerified:          user.IsVerified,
		RouteTimePreference: user.RouteTimePreference,
		CreatedAt:           user.CreatedAt,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name                *string `json:"name"`
	RouteTimePreference *int    `json:"route_time_preference"`
}

// adminCreateUserRequest は管理者によるユーザー作成リクエストのボディ。
type adminCreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// adminUpdateUserRequest は管理者によるユーザー更新リクエストのボディ。
type adminUpdateUserRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// Me は自分のユーザー情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateMe はプロフィールと移動時間設定を更新する。
// PATCH /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var user *model.User
	if req.Name != nil {
		user, err = h.service.UpdateProfile(r.Context(), userID, *req.Name)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}
	if req.RouteTimePreference != nil {
		user, err = h.service.UpdateRouteTimePreference(r.Context(), userID, *req.RouteTimePreference)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}
	if user == nil {
		user, err = h.service.Get(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminList は全ユーザーの一覧を返す。スーパー管理者専用。
// GET /api/admin/users
func (h *UserHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	users, err := h.service.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminStats はユーザー数の統計を返す。スーパー管理者専用。
// GET /api/admin/users/stats
func (h *UserHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	stats, err := h.service.Stats(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"total":        stats.Total,
		"active":       stats.Active,
		"verified":     stats.Verified,
		"super_admins": stats.SuperAdmins,
	})
}

// AdminCreate は管理者によるユーザー作成を処理する。作成されたユーザーは確認済みになる。
// POST /api/admin/users
func (h *UserHandler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req adminCreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeInvalidRequest(w)
		return
	}

	user, err := h.service.AdminCreate(r.Context(), actor, req.Email, req.Name, req.Password, model.UserRole(req.Role))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// AdminUpdate は管理者によるユーザー更新を処理する。
// PATCH /api/admin/users/{id}
func (h *UserHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req adminUpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var role *model.UserRole
	if req.Role != nil {
		r := model.UserRole(*req.Role)
		role = &r
	}

	user, err := h.service.AdminUpdate(r.Context(), actor, chi.URLParam(r, "id"), req.Name, role, req.IsActive)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// AdminDelete は管理者によるユーザー削除を処理する。自分自身は削除できない。
// DELETE /api/admin/users/{id}
func (h *UserHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.AdminDelete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
