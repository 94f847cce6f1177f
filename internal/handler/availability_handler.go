package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/availability"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// AvailabilityServiceInterface は空き時間ハンドラーが必要とするサービスインターフェース。
type AvailabilityServiceInterface interface {
	ListRules(ctx context.Context, userID string) ([]*model.Availability, error)
	CreateRule(ctx context.Context, userID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error)
	UpdateRule(ctx context.Context, userID, ruleID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error)
	DeleteRule(ctx context.Context, userID, ruleID string) error
	UserFree(ctx context.Context, userID string, from, to time.Time) ([]availability.Interval, error)
	TeamAvailability(ctx context.Context, requesterID, teamID string, from, to time.Time) (*availability.TeamAvailabilityResult, error)
}

// AvailabilityHandler は空き時間ルールと空き時間集約のHTTPハンドラー。
type AvailabilityHandler struct {
	service AvailabilityServiceInterface
}

// NewAvailabilityHandler はAvailabilityHandlerを生成する。
func NewAvailabilityHandler(service AvailabilityServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
	}
}

// availabilityRuleRequest は空き時間ルールの作成・更新リクエストのボディ。
type availabilityRuleRequest struct {
	DayOfWeek    int `json:"day_of_week"`
	StartMinutes int `json:"start_minutes"`
	EndMinutes   int `json:"end_minutes"`
}

// availabilityRuleResponse は空き時間ルールのAPIレスポンス。
type availabilityRuleResponse struct {
	ID           string `json:"id"`
	DayOfWeek    int    `json:"day_of_week"`
	StartMinutes int    `json:"start_minutes"`
	EndMinutes   int    `json:"end_minutes"`
}

// toAvailabilityRuleResponse はmodel.AvailabilityからAPIレスポンスに変換する。
func toAvailabilityRuleResponse(rule *model.Availability) availabilityRuleResponse {
	return availabilityRuleResponse{
		ID:           rule.ID,
		DayOfWeek:    rule.DayOfWeek,
		StartMinutes: rule.StartMinutes,
		EndMinutes:   rule.EndMinutes,
	}
}

// ListRules は自分の空き時間ルール一覧を返す。
// GET /api/availabilities
func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	rules, err := h.service.ListRules(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]availabilityRuleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toAvailabilityRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRule は空き時間ルールを作成する。
// POST /api/availabilities
func (h *AvailabilityHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req availabilityRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	rule, err := h.service.CreateRule(r.Context(), userID, req.DayOfWeek, req.StartMinutes, req.EndMinutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAvailabilityRuleResponse(rule))
}

// UpdateRule は空き時間ルールを更新する。
// PUT /api/availabilities/{id}
func (h *AvailabilityHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req availabilityRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	rule, err := h.service.UpdateRule(r.Context(), userID, chi.URLParam(r, "id"), req.DayOfWeek, req.StartMinutes, req.EndMinutes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAvailabilityRuleResponse(rule))
}

// DeleteRule は空き時間ルールを削除する。
// DELETE /api/availabilities/{id}
func (h *AvailabilityHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteRule(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UserFree は自分の空き時間区間を返す。
// GET /api/availabilities/free?from=RFC3339&to=RFC3339
func (h *AvailabilityHandler) UserFree(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	from, to, ok := parseTimeRange(w, r)
	if !ok {
		return
	}

	free, err := h.service.UserFree(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from": from,
		"to":   to,
		"free": free,
	})
}

// TeamAvailability はチーム全員の空き時間と共通空き時間を返す。
// GET /api/teams/{id}/availability?from=RFC3339&to=RFC3339
func (h *AvailabilityHandler) TeamAvailability(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	from, to, ok := parseTimeRange(w, r)
	if !ok {
		return
	}

	result, err := h.service.TeamAvailability(r.Context(), userID, chi.URLParam(r, "id"), from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseTimeRange はfrom/toクエリパラメータをRFC3339として解析する。
// 不正な場合はエラーレスポンスを書き込み、falseを返す。
func parseTimeRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeRangeError())
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeRangeError())
		return time.Time{}, time.Time{}, false
	}
	if !to.After(from) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeRangeError())
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
