package handler

import (
	"context"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/availability"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/meeting"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// ハンドラーテスト共通のfnフィールド式モック群。
// fn未設定のメソッドはゼロ値を返す。

type mockAuthService struct {
	registerFn           func(ctx context.Context, email, name, password string) (*model.User, error)
	loginFn              func(ctx context.Context, email, password string) (*model.User, *model.Session, error)
	logoutFn             func(ctx context.Context, sessionID string) error
	getCurrentUserFn     func(ctx context.Context, sessionID string) (*model.User, error)
	verifyEmailFn        func(ctx context.Context, token string) error
	resendVerificationFn func(ctx context.Context, email string) error
	resetPasswordFn      func(ctx context.Context, userID, newPassword string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, email, name, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, name, password)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, token string) error {
	if m.verifyEmailFn != nil {
		return m.verifyEmailFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.resendVerificationFn != nil {
		return m.resendVerificationFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) ResetPassword(ctx context.Context, userID, newPassword string) (*model.User, error) {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, userID, newPassword)
	}
	return &model.User{ID: userID}, nil
}

type mockUserService struct {
	getFn             func(ctx context.Context, userID string) (*model.User, error)
	updateProfileFn   func(ctx context.Context, userID, name string) (*model.User, error)
	updateRouteTimeFn func(ctx context.Context, userID string, minutes int) (*model.User, error)
	withdrawFn        func(ctx context.Context, userID string) error
	listFn            func(ctx context.Context, actor *model.User) ([]*model.User, error)
	statsFn           func(ctx context.Context, actor *model.User) (*repository.UserStats, error)
	adminCreateFn     func(ctx context.Context, actor *model.User, email, name, password string, role model.UserRole) (*model.User, error)
	adminUpdateFn     func(ctx context.Context, actor *model.User, userID string, name *string, role *model.UserRole, isActive *bool) (*model.User, error)
	adminDeleteFn     func(ctx context.Context, actor *model.User, userID string) error
}

func (m *mockUserService) Get(ctx context.Context, userID string) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID, name string) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, name)
	}
	return nil, nil
}

func (m *mockUserService) UpdateRouteTimePreference(ctx context.Context, userID string, minutes int) (*model.User, error) {
	if m.updateRouteTimeFn != nil {
		return m.updateRouteTimeFn(ctx, userID, minutes)
	}
	return nil, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

func (m *mockUserService) List(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor)
	}
	return nil, nil
}

func (m *mockUserService) Stats(ctx context.Context, actor *model.User) (*repository.UserStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, actor)
	}
	return &repository.UserStats{}, nil
}

func (m *mockUserService) AdminCreate(ctx context.Context, actor *model.User, email, name, password string, role model.UserRole) (*model.User, error) {
	if m.adminCreateFn != nil {
		return m.adminCreateFn(ctx, actor, email, name, password, role)
	}
	return nil, nil
}

func (m *mockUserService) AdminUpdate(ctx context.Context, actor *model.User, userID string, name *string, role *model.UserRole, isActive *bool) (*model.User, error) {
	if m.adminUpdateFn != nil {
		return m.adminUpdateFn(ctx, actor, userID, name, role, isActive)
	}
	return nil, nil
}

func (m *mockUserService) AdminDelete(ctx context.Context, actor *model.User, userID string) error {
	if m.adminDeleteFn != nil {
		return m.adminDeleteFn(ctx, actor, userID)
	}
	return nil
}

type mockCalendarService struct {
	listFn                func(ctx context.Context, userID string) ([]*model.Calendar, error)
	getFn                 func(ctx context.Context, userID, calendarID string) (*model.Calendar, error)
	beginOAuthFn          func(ctx context.Context, providerName, state, redirectURL string) (string, error)
	completeOAuthFn       func(ctx context.Context, userID, providerName, code, redirectURL, name string) (*model.Calendar, error)
	connectCalDAVFn       func(ctx context.Context, userID, providerName, name, endpointURL, username, appPassword string) (*model.Calendar, error)
	setPrimaryFn          func(ctx context.Context, userID, calendarID string) error
	deleteFn              func(ctx context.Context, userID, calendarID string) error
	triggerSyncFn         func(ctx context.Context, userID, calendarID string) error
	listOAuthSettingsFn   func(ctx context.Context, actor *model.User) ([]*model.OAuthSettings, error)
	upsertOAuthSettingsFn func(ctx context.Context, actor *model.User, providerName, clientID, clientSecret string) (*model.OAuthSettings, error)
	deleteOAuthSettingsFn func(ctx context.Context, actor *model.User, providerName string) error
}

func (m *mockCalendarService) List(ctx context.Context, userID string) ([]*model.Calendar, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockCalendarService) Get(ctx context.Context, userID, calendarID string) (*model.Calendar, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, calendarID)
	}
	return nil, nil
}

func (m *mockCalendarService) BeginOAuth(ctx context.Context, providerName, state, redirectURL string) (string, error) {
	if m.beginOAuthFn != nil {
		return m.beginOAuthFn(ctx, providerName, state, redirectURL)
	}
	return "https://auth.example.com/", nil
}

func (m *mockCalendarService) CompleteOAuth(ctx context.Context, userID, providerName, code, redirectURL, name string) (*model.Calendar, error) {
	if m.completeOAuthFn != nil {
		return m.completeOAuthFn(ctx, userID, providerName, code, redirectURL, name)
	}
	return &model.Calendar{ID: "cal-1", UserID: userID, Provider: providerName}, nil
}

func (m *mockCalendarService) ConnectCalDAV(ctx context.Context, userID, providerName, name, endpointURL, username, appPassword string) (*model.Calendar, error) {
	if m.connectCalDAVFn != nil {
		return m.connectCalDAVFn(ctx, userID, providerName, name, endpointURL, username, appPassword)
	}
	return &model.Calendar{ID: "cal-1", UserID: userID, Provider: providerName}, nil
}

func (m *mockCalendarService) SetPrimary(ctx context.Context, userID, calendarID string) error {
	if m.setPrimaryFn != nil {
		return m.setPrimaryFn(ctx, userID, calendarID)
	}
	return nil
}

func (m *mockCalendarService) Delete(ctx context.Context, userID, calendarID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, calendarID)
	}
	return nil
}

func (m *mockCalendarService) TriggerSync(ctx context.Context, userID, calendarID string) error {
	if m.triggerSyncFn != nil {
		return m.triggerSyncFn(ctx, userID, calendarID)
	}
	return nil
}

func (m *mockCalendarService) ListOAuthSettings(ctx context.Context, actor *model.User) ([]*model.OAuthSettings, error) {
	if m.listOAuthSettingsFn != nil {
		return m.listOAuthSettingsFn(ctx, actor)
	}
	return nil, nil
}

func (m *mockCalendarService) UpsertOAuthSettings(ctx context.Context, actor *model.User, providerName, clientID, clientSecret string) (*model.OAuthSettings, error) {
	if m.upsertOAuthSettingsFn != nil {
		return m.upsertOAuthSettingsFn(ctx, actor, providerName, clientID, clientSecret)
	}
	return &model.OAuthSettings{Provider: providerName, ClientID: clientID, IsActive: true}, nil
}

func (m *mockCalendarService) DeleteOAuthSettings(ctx context.Context, actor *model.User, providerName string) error {
	if m.deleteOAuthSettingsFn != nil {
		return m.deleteOAuthSettingsFn(ctx, actor, providerName)
	}
	return nil
}

type mockAvailabilityService struct {
	listRulesFn        func(ctx context.Context, userID string) ([]*model.Availability, error)
	createRuleFn       func(ctx context.Context, userID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error)
	updateRuleFn       func(ctx context.Context, userID, ruleID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error)
	deleteRuleFn       func(ctx context.Context, userID, ruleID string) error
	userFreeFn         func(ctx context.Context, userID string, from, to time.Time) ([]availability.Interval, error)
	teamAvailabilityFn func(ctx context.Context, requesterID, teamID string, from, to time.Time) (*availability.TeamAvailabilityResult, error)
}

func (m *mockAvailabilityService) ListRules(ctx context.Context, userID string) ([]*model.Availability, error) {
	if m.listRulesFn != nil {
		return m.listRulesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAvailabilityService) CreateRule(ctx context.Context, userID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error) {
	if m.createRuleFn != nil {
		return m.createRuleFn(ctx, userID, dayOfWeek, startMinutes, endMinutes)
	}
	return &model.Availability{ID: "av-1", UserID: userID, DayOfWeek: dayOfWeek, StartMinutes: startMinutes, EndMinutes: endMinutes}, nil
}

func (m *mockAvailabilityService) UpdateRule(ctx context.Context, userID, ruleID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error) {
	if m.updateRuleFn != nil {
		return m.updateRuleFn(ctx, userID, ruleID, dayOfWeek, startMinutes, endMinutes)
	}
	return &model.Availability{ID: ruleID, UserID: userID, DayOfWeek: dayOfWeek, StartMinutes: startMinutes, EndMinutes: endMinutes}, nil
}

func (m *mockAvailabilityService) DeleteRule(ctx context.Context, userID, ruleID string) error {
	if m.deleteRuleFn != nil {
		return m.deleteRuleFn(ctx, userID, ruleID)
	}
	return nil
}

func (m *mockAvailabilityService) UserFree(ctx context.Context, userID string, from, to time.Time) ([]availability.Interval, error) {
	if m.userFreeFn != nil {
		return m.userFreeFn(ctx, userID, from, to)
	}
	return nil, nil
}

func (m *mockAvailabilityService) TeamAvailability(ctx context.Context, requesterID, teamID string, from, to time.Time) (*availability.TeamAvailabilityResult, error) {
	if m.teamAvailabilityFn != nil {
		return m.teamAvailabilityFn(ctx, requesterID, teamID, from, to)
	}
	return &availability.TeamAvailabilityResult{TeamID: teamID, From: from, To: to}, nil
}

type mockTeamService struct {
	createFn       func(ctx context.Context, ownerID, name string, memberIDs []string) (*model.Team, error)
	getFn          func(ctx context.Context, requesterID, teamID string) (*model.TeamWithMembers, error)
	listFn         func(ctx context.Context, userID string) ([]*model.Team, error)
	updateFn       func(ctx context.Context, requesterID, teamID, name string) (*model.Team, error)
	deleteFn       func(ctx context.Context, requesterID, teamID string) error
	addMemberFn    func(ctx context.Context, requesterID, teamID, userID string) error
	removeMemberFn func(ctx context.Context, requesterID, teamID, userID string) error
}

func (m *mockTeamService) Create(ctx context.Context, ownerID, name string, memberIDs []string) (*model.Team, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, name, memberIDs)
	}
	return &model.Team{ID: "team-1", Name: name, OwnerID: ownerID}, nil
}

func (m *mockTeamService) Get(ctx context.Context, requesterID, teamID string) (*model.TeamWithMembers, error) {
	if m.getFn != nil {
		return m.getFn(ctx, requesterID, teamID)
	}
	return &model.TeamWithMembers{Team: model.Team{ID: teamID}}, nil
}

func (m *mockTeamService) List(ctx context.Context, userID string) ([]*model.Team, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTeamService) Update(ctx context.Context, requesterID, teamID, name string) (*model.Team, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, requesterID, teamID, name)
	}
	return &model.Team{ID: teamID, Name: name}, nil
}

func (m *mockTeamService) Delete(ctx context.Context, requesterID, teamID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requesterID, teamID)
	}
	return nil
}

func (m *mockTeamService) AddMember(ctx context.Context, requesterID, teamID, userID string) error {
	if m.addMemberFn != nil {
		return m.addMemberFn(ctx, requesterID, teamID, userID)
	}
	return nil
}

func (m *mockTeamService) RemoveMember(ctx context.Context, requesterID, teamID, userID string) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(ctx, requesterID, teamID, userID)
	}
	return nil
}

type mockMeetingService struct {
	createFn     func(ctx context.Context, creator *model.User, in meeting.CreateInput) (*model.Meeting, error)
	getFn        func(ctx context.Context, requesterID, meetingID string) (*model.Meeting, error)
	listMineFn   func(ctx context.Context, userID string) ([]*model.Meeting, error)
	listByTeamFn func(ctx context.Context, requesterID, teamID string) ([]*model.Meeting, error)
	updateFn     func(ctx context.Context, requesterID, meetingID string, in meeting.UpdateInput) (*model.Meeting, error)
	deleteFn     func(ctx context.Context, requesterID, meetingID string) error
}

func (m *mockMeetingService) Create(ctx context.Context, creator *model.User, in meeting.CreateInput) (*model.Meeting, error) {
	if m.createFn != nil {
		return m.createFn(ctx, creator, in)
	}
	return &model.Meeting{ID: "m-1", CreatorID: creator.ID}, nil
}

func (m *mockMeetingService) Get(ctx context.Context, requesterID, meetingID string) (*model.Meeting, error) {
	if m.getFn != nil {
		return m.getFn(ctx, requesterID, meetingID)
	}
	return &model.Meeting{ID: meetingID}, nil
}

func (m *mockMeetingService) ListMine(ctx context.Context, userID string) ([]*model.Meeting, error) {
	if m.listMineFn != nil {
		return m.listMineFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockMeetingService) ListByTeam(ctx context.Context, requesterID, teamID string) ([]*model.Meeting, error) {
	if m.listByTeamFn != nil {
		return m.listByTeamFn(ctx, requesterID, teamID)
	}
	return nil, nil
}

func (m *mockMeetingService) Update(ctx context.Context, requesterID, meetingID string, in meeting.UpdateInput) (*model.Meeting, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, requesterID, meetingID, in)
	}
	return &model.Meeting{ID: meetingID}, nil
}

func (m *mockMeetingService) Delete(ctx context.Context, requesterID, meetingID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, requesterID, meetingID)
	}
	return nil
}

// インターフェース実装の検証
var (
	_ AuthServiceInterface         = (*mockAuthService)(nil)
	_ UserServiceInterface         = (*mockUserService)(nil)
	_ CalendarServiceInterface     = (*mockCalendarService)(nil)
	_ AvailabilityServiceInterface = (*mockAvailabilityService)(nil)
	_ TeamServiceInterface         = (*mockTeamService)(nil)
	_ MeetingServiceInterface      = (*mockMeetingService)(nil)
)
