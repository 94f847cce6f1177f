package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/meeting"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// MeetingServiceInterface はミーティングハンドラーが必要とするサービスインターフェース。
type MeetingServiceInterface interface {
	Create(ctx context.Context, creator *model.User, in meeting.CreateInput) (*model.Meeting, error)
	Get(ctx context.Context, requesterID, meetingID string) (*model.Meeting, error)
	ListMine(ctx context.Context, userID string) ([]*model.Meeting, error)
	ListByTeam(ctx context.Context, requesterID, teamID string) ([]*model.Meeting, error)
	Update(ctx context.Context, requesterID, meetingID string, in meeting.UpdateInput) (*model.Meeting, error)
	Delete(ctx context.Context, requesterID, meetingID string) error
}

// MeetingHandler はミーティング管理のHTTPハンドラー。
type MeetingHandler struct {
	service MeetingServiceInterface
}

// NewMeetingHandler はMeetingHandlerを生成する。
func NewMeetingHandler(service MeetingServiceInterface) *MeetingHandler {
	return &MeetingHandler{
		service: service,
	}
}

// createMeetingRequest はミーティング作成リクエストのボディ。
// add_route_timeがtrueの場合、route_time_duration（省略時はユーザー設定値）の
// 移動時間イベントを前後に生成する。
type createMeetingRequest struct {
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	StartTime              time.Time `json:"start_time"`
	EndTime                time.Time `json:"end_time"`
	CalendarID             string    `json:"calendar_id"`
	TeamID                 string    `json:"team_id"`
	MeetingType            string    `json:"meeting_type"`
	Location               string    `json:"location"`
	VirtualMeetingProvider string    `json:"virtual_meeting_provider"`
	VirtualMeetingURL      string    `json:"virtual_meeting_url"`
	AddRouteTime           bool      `json:"add_route_time"`
	RouteTimeDuration      int       `json:"route_time_duration"`
}

// updateMeetingRequest はミーティング更新リクエストのボディ。nilのフィールドは変更しない。
// team_idに空文字を指定するとチームとの関連を解除する。
// calendar_idを指定するとミーティングを別の所有カレンダーへ付け替える。
type updateMeetingRequest struct {
	Title                  *string    `json:"title"`
	Description            *string    `json:"description"`
	StartTime              *time.Time `json:"start_time"`
	EndTime                *time.Time `json:"end_time"`
	CalendarID             *string    `json:"calendar_id"`
	TeamID                 *string    `json:"team_id"`
	MeetingType            *string    `json:"meeting_type"`
	Location               *string    `json:"location"`
	VirtualMeetingProvider *string    `json:"virtual_meeting_provider"`
	VirtualMeetingURL      *string    `json:"virtual_meeting_url"`
}

// meetingResponse はミーティング情報のAPIレスポンス。
type meetingResponse struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	StartTime              time.Time `json:"start_time"`
	EndTime                time.Time `json:"end_time"`
	CreatorID              string    `json:"creator_id"`
	CalendarID             string    `json:"calendar_id,omitempty"`
	TeamID                 string    `json:"team_id,omitempty"`
	MeetingType            string    `json:"meeting_type"`
	Location               string    `json:"location,omitempty"`
	VirtualMeetingProvider string    `json:"virtual_meeting_provider,omitempty"`
	VirtualMeetingURL      string    `json:"virtual_meeting_url,omitempty"`
	Mirrored               bool      `json:"mirrored"`
}

// toMeetingResponse はmodel.MeetingからAPIレスポンスに変換する。
func toMeetingResponse(m *model.Meeting) meetingResponse {
	return meetingResponse{
		ID:                     m.ID,
		Title:                  m.Title,
		Description:            m.Description,
		StartTime:              m.StartTime,
		EndTime:                m.EndTime,
		CreatorID:              m.CreatorID,
		CalendarID:             m.CalendarID,
		TeamID:                 m.TeamID,
		MeetingType:            string(m.MeetingType),
		Location:               m.Location,
		VirtualMeetingProvider: m.VirtualMeetingProvider,
		VirtualMeetingURL:      m.VirtualMeetingURL,
		Mirrored:               m.ProviderEventID != "",
	}
}

// Create はミーティングを作成する。
// POST /api/meetings
func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	creator, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createMeetingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	m, err := h.service.Create(r.Context(), creator, meeting.CreateInput{
		Title:                  req.Title,
		Description:            req.Description,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		CalendarID:             req.CalendarID,
		TeamID:                 req.TeamID,
		MeetingType:            model.MeetingType(req.MeetingType),
		Location:               req.Location,
		VirtualMeetingProvider: req.VirtualMeetingProvider,
		VirtualMeetingURL:      req.VirtualMeetingURL,
		AddRouteTime:           req.AddRouteTime,
		RouteTimeDuration:      req.RouteTimeDuration,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMeetingResponse(m))
}

// List は自分のミーティング一覧を返す。
// team_idクエリパラメータを指定するとチームのミーティング一覧を返す。
// GET /api/meetings[?team_id=xxx]
func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var meetings []*model.Meeting
	if teamID := r.URL.Query().Get("team_id"); teamID != "" {
		meetings, err = h.service.ListByTeam(r.Context(), userID, teamID)
	} else {
		meetings, err = h.service.ListMine(r.Context(), userID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]meetingResponse, 0, len(meetings))
	for _, m := range meetings {
		resp = append(resp, toMeetingResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get はミーティング詳細を返す。作成者またはチームメンバーのみ参照できる。
// GET /api/meetings/{id}
func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	m, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMeetingResponse(m))
}

// Update はミーティングを更新する。作成者のみ実行できる。
// PATCH /api/meetings/{id}
func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateMeetingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInvalidRequest(w)
		return
	}

	var meetingType *model.MeetingType
	if req.MeetingType != nil {
		mt := model.MeetingType(*req.MeetingType)
		meetingType = &mt
	}

	m, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), meeting.UpdateInput{
		Title:                  req.Title,
		Description:            req.Description,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		CalendarID:             req.CalendarID,
		TeamID:                 req.TeamID,
		MeetingType:            meetingType,
		Location:               req.Location,
		VirtualMeetingProvider: req.VirtualMeetingProvider,
		VirtualMeetingURL:      req.VirtualMeetingURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMeetingResponse(m))
}

// Delete はミーティングを削除する。作成者のみ実行できる。
// DELETE /api/meetings/{id}
func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
