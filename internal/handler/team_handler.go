package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	Create(ctx context.Context, ownerID, name string, memberIDs []string) (*model.Team, error)
	Get(ctx context.Context, requesterID, teamID string) (*model.TeamWithMembers, error)
	List(ctx context.Context, userID string) ([]*model.Team, error)
	Update(ctx context.Context, requesterID, teamID, name string) (*model.Team, error)
	Delete(ctx context.Context, requesterID, teamID string) error
	AddMember(ctx context.Context, requesterID, teamID, userID string) error
	RemoveMember(ctx context.Context, requesterID, teamID, userID string) error
}

// TeamHandler はチーム管理のHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface) *TeamHandler {
	return &TeamHandler{
		service: service,
	}
}

// createTeamRequest はチーム作成リクエストのボディ。
// member_idsで初期メンバーを指定できる。作成者は指定がなくてもメンバーに追加される。
type createTeamRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// teamRequest はチーム更新リクエストのボディ。
type teamRequest struct {
	Name string `json:"name"`
}

// teamMemberRequest はメンバー追加リクエストのボディ。
type teamMemberRequest struct {
	UserID string `json:"user_id"`
}

// teamResponse はチーム情報のAPIレスポンス。
type teamResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// teamWithMembersResponse はメンバーID一覧を含むチーム情報のAPIレスポンス。
type teamWithMembersResponse struct {
	teamResponse
	MemberIDs []string `json:"member_ids"`
}

// toTeamResponse はmodel.TeamからAPIレスポンスに変換する。
func toTeamResponse(team *model.Team) teamResponse {
	return teamResponse{
		ID:      team.ID,
		Name:    team.Name,
		OwnerID: team.OwnerID,
	}
}

// Create はチームを作成する。作成者がオーナー兼メンバーになる。
// POST /api/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createTeamRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeInvalidRequest(w)
		return
	}

	team, err := h.service.Create(r.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTeamResponse(team))
}

// List は自分が所属するチーム一覧を返す。
// GET /api/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	teams, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]teamResponse, 0, len(teams))
	for _, team := range teams {
		resp = append(resp, toTeamResponse(team))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get はチーム詳細をメンバーID一覧付きで返す。メンバーのみ参照できる。
// GET /api/teams/{id}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	team, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, teamWithMembersResponse{
		teamResponse: toTeamResponse(&team.Team),
		MemberIDs:    team.MemberIDs,
	})
}

// Update はチーム名を変更する。オーナーのみ実行できる。
// PATCH /api/teams/{id}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req teamRequest
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeInvalidRequest(w)
		return
	}

	team, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTeamResponse(team))
}

// Delete はチームを削除する。オーナーのみ実行できる。
// DELETE /api/teams/{id}
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// AddMember はチームにメンバーを追加する。オーナーのみ実行できる。
// POST /api/teams/{id}/members
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req teamMemberRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID == "" {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.AddMember(r.Context(), userID, chi.URLParam(r, "id"), req.UserID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember はチームからメンバーを外す。オーナーのみ実行でき、オーナー自身は外せない。
// DELETE /api/teams/{id}/members/{userID}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.RemoveMember(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "userID")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
