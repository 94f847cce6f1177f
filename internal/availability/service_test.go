package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

type mockAvailabilityRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.Availability, error)
	listByUserIDFn  func(ctx context.Context, userID string) ([]*model.Availability, error)
	listByUserIDsFn func(ctx context.Context, userIDs []string) ([]*model.Availability, error)
	createFn        func(ctx context.Context, availability *model.Availability) error
	updateFn        func(ctx context.Context, availability *model.Availability) error
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockAvailabilityRepo) FindByID(ctx context.Context, id string) (*model.Availability, error) {
	if m.findByIDFn == nil {
		return nil, nil
	}
	return m.findByIDFn(ctx, id)
}

func (m *mockAvailabilityRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Availability, error) {
	if m.listByUserIDFn == nil {
		return nil, nil
	}
	return m.listByUserIDFn(ctx, userID)
}

func (m *mockAvailabilityRepo) ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.Availability, error) {
	if m.listByUserIDsFn == nil {
		return nil, nil
	}
	return m.listByUserIDsFn(ctx, userIDs)
}

func (m *mockAvailabilityRepo) Create(ctx context.Context, availability *model.Availability) error {
	if m.createFn == nil {
		return nil
	}
	return m.createFn(ctx, availability)
}

func (m *mockAvailabilityRepo) Update(ctx context.Context, availability *model.Availability) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, availability)
}

func (m *mockAvailabilityRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, id)
}

type mockTeamRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.Team, error)
	isMemberFn      func(ctx context.Context, teamID, userID string) (bool, error)
	listMemberIDsFn func(ctx context.Context, teamID string) ([]string, error)
}

func (m *mockTeamRepo) FindByID(ctx context.Context, id string) (*model.Team, error) {
	if m.findByIDFn == nil {
		return nil, nil
	}
	return m.findByIDFn(ctx, id)
}

func (m *mockTeamRepo) FindWithMembers(ctx context.Context, id string) (*model.TeamWithMembers, error) {
	return nil, nil
}

func (m *mockTeamRepo) ListByMember(ctx context.Context, userID string) ([]*model.Team, error) {
	return nil, nil
}

func (m *mockTeamRepo) Create(ctx context.Context, team *model.Team) error { return nil }

func (m *mockTeamRepo) Update(ctx context.Context, team *model.Team) error { return nil }

func (m *mockTeamRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockTeamRepo) AddMember(ctx context.Context, teamID, userID string) error { return nil }

func (m *mockTeamRepo) RemoveMember(ctx context.Context, teamID, userID string) error { return nil }

func (m *mockTeamRepo) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	if m.isMemberFn == nil {
		return false, nil
	}
	return m.isMemberFn(ctx, teamID, userID)
}

func (m *mockTeamRepo) ListMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	if m.listMemberIDsFn == nil {
		return nil, nil
	}
	return m.listMemberIDsFn(ctx, teamID)
}

type mockMeetingRepo struct {
	listByUsersInRangeFn func(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.Meeting, error)
}

func (m *mockMeetingRepo) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	return nil, nil
}

func (m *mockMeetingRepo) ListByCreator(ctx context.Context, creatorID string) ([]*model.Meeting, error) {
	return nil, nil
}

func (m *mockMeetingRepo) ListByTeam(ctx context.Context, teamID string) ([]*model.Meeting, error) {
	return nil, nil
}

func (m *mockMeetingRepo) ListByUsersInRange(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.Meeting, error) {
	if m.listByUsersInRangeFn == nil {
		return nil, nil
	}
	return m.listByUsersInRangeFn(ctx, userIDs, from, to)
}

func (m *mockMeetingRepo) Create(ctx context.Context, meeting *model.Meeting) error { return nil }

func (m *mockMeetingRepo) Update(ctx context.Context, meeting *model.Meeting) error { return nil }

func (m *mockMeetingRepo) Delete(ctx context.Context, id string) error { return nil }

type mockRouteTimeEventRepo struct {
	listByUsersInRangeFn func(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.RouteTimeEvent, error)
}

func (m *mockRouteTimeEventRepo) Create(ctx context.Context, event *model.RouteTimeEvent) error {
	return nil
}

func (m *mockRouteTimeEventRepo) ListByMeetingID(ctx context.Context, meetingID string) ([]*model.RouteTimeEvent, error) {
	return nil, nil
}

func (m *mockRouteTimeEventRepo) ListByUsersInRange(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.RouteTimeEvent, error) {
	if m.listByUsersInRangeFn == nil {
		return nil, nil
	}
	return m.listByUsersInRangeFn(ctx, userIDs, from, to)
}

func (m *mockRouteTimeEventRepo) DeleteByMeetingID(ctx context.Context, meetingID string) error {
	return nil
}

type mockCalendarRepo struct {
	listActiveByUserIDsFn func(ctx context.Context, userIDs []string) ([]*model.Calendar, error)
}

func (m *mockCalendarRepo) FindByID(ctx context.Context, id string) (*model.Calendar, error) {
	return nil, nil
}

func (m *mockCalendarRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Calendar, error) {
	return nil, nil
}

func (m *mockCalendarRepo) ListActiveByUserIDs(ctx context.Context, userIDs []string) ([]*model.Calendar, error) {
	if m.listActiveByUserIDsFn == nil {
		return nil, nil
	}
	return m.listActiveByUserIDsFn(ctx, userIDs)
}

func (m *mockCalendarRepo) Create(ctx context.Context, calendar *model.Calendar) error { return nil }

func (m *mockCalendarRepo) Update(ctx context.Context, calendar *model.Calendar) error { return nil }

func (m *mockCalendarRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error {
	return nil
}

func (m *mockCalendarRepo) SetPrimary(ctx context.Context, userID, calendarID string) error {
	return nil
}

func (m *mockCalendarRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockCalendarRepo) ListDueForSync(ctx context.Context) ([]*model.Calendar, error) {
	return nil, nil
}

func (m *mockCalendarRepo) UpdateSyncState(ctx context.Context, calendar *model.Calendar) error {
	return nil
}

type mockExternalBusy struct {
	listBusyFn func(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]Interval, error)
}

func (m *mockExternalBusy) ListBusy(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]Interval, error) {
	if m.listBusyFn == nil {
		return nil, nil
	}
	return m.listBusyFn(ctx, cal, from, to)
}

var (
	_ repository.AvailabilityRepository   = (*mockAvailabilityRepo)(nil)
	_ repository.TeamRepository           = (*mockTeamRepo)(nil)
	_ repository.MeetingRepository        = (*mockMeetingRepo)(nil)
	_ repository.RouteTimeEventRepository = (*mockRouteTimeEventRepo)(nil)
	_ repository.CalendarRepository       = (*mockCalendarRepo)(nil)
	_ ExternalBusySource                  = (*mockExternalBusy)(nil)
)

func newTestService(
	availRepo *mockAvailabilityRepo,
	teamRepo *mockTeamRepo,
	meetingRepo *mockMeetingRepo,
	routeRepo *mockRouteTimeEventRepo,
	calRepo *mockCalendarRepo,
	external ExternalBusySource,
) *Service {
	if availRepo == nil {
		availRepo = &mockAvailabilityRepo{}
	}
	if teamRepo == nil {
		teamRepo = &mockTeamRepo{}
	}
	if meetingRepo == nil {
		meetingRepo = &mockMeetingRepo{}
	}
	if routeRepo == nil {
		routeRepo = &mockRouteTimeEventRepo{}
	}
	if calRepo == nil {
		calRepo = &mockCalendarRepo{}
	}
	counter := 0
	return NewService(availRepo, teamRepo, meetingRepo, routeRepo, calRepo, external, func() string {
		counter++
		return "id-" + string(rune('0'+counter))
	})
}

func TestCreateRule_Invalid(t *testing.T) {
	service := newTestService(nil, nil, nil, nil, nil, nil)

	_, err := service.CreateRule(context.Background(), "u1", 7, 9*60, 17*60)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidDayOfWeek {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidDayOfWeek)
	}
}

func TestCreateRule_Persists(t *testing.T) {
	var created *model.Availability
	availRepo := &mockAvailabilityRepo{
		createFn: func(ctx context.Context, a *model.Availability) error {
			created = a
			return nil
		},
	}
	service := newTestService(availRepo, nil, nil, nil, nil, nil)

	rule, err := service.CreateRule(context.Background(), "u1", 0, 9*60, 17*60)
	if err != nil {
		t.Fatalf("CreateRule returned error: %v", err)
	}
	if created == nil {
		t.Fatal("rule was not persisted")
	}
	if rule.UserID != "u1" || rule.DayOfWeek != 0 {
		t.Errorf("rule = %+v", rule)
	}
	if rule.ID == "" {
		t.Error("rule ID is empty")
	}
}

func TestUpdateRule_OtherUsersRule_NotFound(t *testing.T) {
	availRepo := &mockAvailabilityRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Availability, error) {
			return &model.Availability{ID: id, UserID: "other"}, nil
		},
	}
	service := newTestService(availRepo, nil, nil, nil, nil, nil)

	_, err := service.UpdateRule(context.Background(), "u1", "rule-1", 0, 9*60, 17*60)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAvailabilityNotFound {
		t.Errorf("expected availability not found, got %v", err)
	}
}

func TestDeleteRule_OtherUsersRule_NotFound(t *testing.T) {
	availRepo := &mockAvailabilityRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Availability, error) {
			return &model.Availability{ID: id, UserID: "other"}, nil
		},
	}
	service := newTestService(availRepo, nil, nil, nil, nil, nil)

	err := service.DeleteRule(context.Background(), "u1", "rule-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAvailabilityNotFound {
		t.Errorf("expected availability not found, got %v", err)
	}
}

func TestUserFree_SubtractsMeetingsAndRouteEvents(t *testing.T) {
	from := atDay(7, 0, 0)
	to := atDay(8, 0, 0)

	availRepo := &mockAvailabilityRepo{
		listByUserIDsFn: func(ctx context.Context, userIDs []string) ([]*model.Availability, error) {
			return []*model.Availability{
				{UserID: "u1", DayOfWeek: 0, StartMinutes: 9 * 60, EndMinutes: 17 * 60},
			}, nil
		},
	}
	meetingRepo := &mockMeetingRepo{
		listByUsersInRangeFn: func(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.Meeting, error) {
			return []*model.Meeting{
				{CreatorID: "u1", StartTime: at(12, 0), EndTime: at(13, 0)},
			}, nil
		},
	}
	routeRepo := &mockRouteTimeEventRepo{
		listByUsersInRangeFn: func(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.RouteTimeEvent, error) {
			return []*model.RouteTimeEvent{
				{UserID: "u1", StartTime: at(11, 30), EndTime: at(12, 0)},
			}, nil
		},
	}
	service := newTestService(availRepo, nil, meetingRepo, routeRepo, nil, nil)

	free, err := service.UserFree(context.Background(), "u1", from, to)
	if err != nil {
		t.Fatalf("UserFree returned error: %v", err)
	}
	assertIntervals(t, free, []Interval{
		{Start: at(9, 0), End: at(11, 30)},
		{Start: at(13, 0), End: at(17, 0)},
	})
}

func TestTeamAvailability_RequesterNotMember(t *testing.T) {
	teamRepo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return &model.Team{ID: id, OwnerID: "owner"}, nil
		},
		isMemberFn: func(ctx context.Context, teamID, userID string) (bool, error) {
			return false, nil
		},
	}
	service := newTestService(nil, teamRepo, nil, nil, nil, nil)

	_, err := service.TeamAvailability(context.Background(), "outsider", "team-1", at(9, 0), at(17, 0))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTeamNotFound {
		t.Errorf("expected team not found, got %v", err)
	}
}

func TestTeamAvailability_CommonFreeIntersection(t *testing.T) {
	from := atDay(7, 0, 0)
	to := atDay(8, 0, 0)

	teamRepo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return &model.Team{ID: id, OwnerID: "u1"}, nil
		},
		isMemberFn: func(ctx context.Context, teamID, userID string) (bool, error) {
			return true, nil
		},
		listMemberIDsFn: func(ctx context.Context, teamID string) ([]string, error) {
			return []string{"u1", "u2"}, nil
		},
	}
	availRepo := &mockAvailabilityRepo{
		listByUserIDsFn: func(ctx context.Context, userIDs []string) ([]*model.Availability, error) {
			return []*model.Availability{
				{UserID: "u1", DayOfWeek: 0, StartMinutes: 9 * 60, EndMinutes: 15 * 60},
				{UserID: "u2", DayOfWeek: 0, StartMinutes: 11 * 60, EndMinutes: 17 * 60},
			}, nil
		},
	}
	meetingRepo := &mockMeetingRepo{
		listByUsersInRangeFn: func(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.Meeting, error) {
			return []*model.Meeting{
				{CreatorID: "u2", StartTime: at(13, 0), EndTime: at(14, 0)},
			}, nil
		},
	}
	service := newTestService(availRepo, teamRepo, meetingRepo, nil, nil, nil)

	result, err := service.TeamAvailability(context.Background(), "u1", "team-1", from, to)
	if err != nil {
		t.Fatalf("TeamAvailability returned error: %v", err)
	}
	if len(result.Members) != 2 {
		t.Fatalf("member count = %d, want 2", len(result.Members))
	}
	assertIntervals(t, result.CommonFree, []Interval{
		{Start: at(11, 0), End: at(13, 0)},
		{Start: at(14, 0), End: at(15, 0)},
	})
}

func TestTeamAvailability_ExternalFailureSwallowed(t *testing.T) {
	from := atDay(7, 0, 0)
	to := atDay(8, 0, 0)

	teamRepo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return &model.Team{ID: id, OwnerID: "u1"}, nil
		},
		isMemberFn: func(ctx context.Context, teamID, userID string) (bool, error) {
			return true, nil
		},
		listMemberIDsFn: func(ctx context.Context, teamID string) ([]string, error) {
			return []string{"u1"}, nil
		},
	}
	availRepo := &mockAvailabilityRepo{
		listByUserIDsFn: func(ctx context.Context, userIDs []string) ([]*model.Availability, error) {
			return []*model.Availability{
				{UserID: "u1", DayOfWeek: 0, StartMinutes: 9 * 60, EndMinutes: 17 * 60},
			}, nil
		},
	}
	calRepo := &mockCalendarRepo{
		listActiveByUserIDsFn: func(ctx context.Context, userIDs []string) ([]*model.Calendar, error) {
			return []*model.Calendar{
				{ID: "cal-1", UserID: "u1", Provider: model.ProviderGoogle},
			}, nil
		},
	}
	external := &mockExternalBusy{
		listBusyFn: func(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]Interval, error) {
			return nil, errors.New("プロバイダー接続失敗")
		},
	}
	service := newTestService(availRepo, teamRepo, nil, nil, calRepo, external)

	result, err := service.TeamAvailability(context.Background(), "u1", "team-1", from, to)
	if err != nil {
		t.Fatalf("TeamAvailability returned error: %v", err)
	}
	// 外部取得失敗はルール由来の空き時間に影響しない
	assertIntervals(t, result.CommonFree, []Interval{{Start: at(9, 0), End: at(17, 0)}})
}

func TestTeamAvailability_ExternalBusyApplied(t *testing.T) {
	from := atDay(7, 0, 0)
	to := atDay(8, 0, 0)

	teamRepo := &mockTeamRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Team, error) {
			return &model.Team{ID: id, OwnerID: "u1"}, nil
		},
		isMemberFn: func(ctx context.Context, teamID, userID string) (bool, error) {
			return true, nil
		},
		listMemberIDsFn: func(ctx context.Context, teamID string) ([]string, error) {
			return []string{"u1"}, nil
		},
	}
	availRepo := &mockAvailabilityRepo{
		listByUserIDsFn: func(ctx context.Context, userIDs []string) ([]*model.Availability, error) {
			return []*model.Availability{
				{UserID: "u1", DayOfWeek: 0, StartMinutes: 9 * 60, EndMinutes: 12 * 60},
			}, nil
		},
	}
	calRepo := &mockCalendarRepo{
		listActiveByUserIDsFn: func(ctx context.Context, userIDs []string) ([]*model.Calendar, error) {
			return []*model.Calendar{
				{ID: "cal-1", UserID: "u1", Provider: model.ProviderGoogle},
			}, nil
		},
	}
	external := &mockExternalBusy{
		listBusyFn: func(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]Interval, error) {
			return []Interval{{Start: at(10, 0), End: at(11, 0)}}, nil
		},
	}
	service := newTestService(availRepo, teamRepo, nil, nil, calRepo, external)

	result, err := service.TeamAvailability(context.Background(), "u1", "team-1", from, to)
	if err != nil {
		t.Fatalf("TeamAvailability returned error: %v", err)
	}
	assertIntervals(t, result.CommonFree, []Interval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(11, 0), End: at(12, 0)},
	})
}
