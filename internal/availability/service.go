package availability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// ExternalBusySource は外部プロバイダーからビジー区間を取得する。
// カレンダーのプロバイダーに応じた実装に委譲する。
type ExternalBusySource interface {
	ListBusy(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]Interval, error)
}

// MemberAvailability はメンバー1人分の空き時間計算結果。
type MemberAvailability struct {
	UserID string     `json:"user_id"`
	Free   []Interval `json:"free"`
}

// TeamAvailabilityResult はチーム全体の空き時間集約結果。
// CommonFreeは全メンバーが空いている区間。
type TeamAvailabilityResult struct {
	TeamID     string               `json:"team_id"`
	From       time.Time            `json:"from"`
	To         time.Time            `json:"to"`
	Members    []MemberAvailability `json:"members"`
	CommonFree []Interval           `json:"common_free"`
}

// Service は空き時間ルールの管理とチーム空き時間の集約を提供する。
type Service struct {
	availabilityRepo repository.AvailabilityRepository
	teamRepo         repository.TeamRepository
	meetingRepo      repository.MeetingRepository
	routeTimeRepo    repository.RouteTimeEventRepository
	calendarRepo     repository.CalendarRepository
	externalBusy     ExternalBusySource
	idGen            func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// externalBusyがnilの場合、外部プロバイダーのイベントはビジー区間に含めない。
func NewService(
	availabilityRepo repository.AvailabilityRepository,
	teamRepo repository.TeamRepository,
	meetingRepo repository.MeetingRepository,
	routeTimeRepo repository.RouteTimeEventRepository,
	calendarRepo repository.CalendarRepository,
	externalBusy ExternalBusySource,
	idGen func() string,
) *Service {
	return &Service{
		availabilityRepo: availabilityRepo,
		teamRepo:         teamRepo,
		meetingRepo:      meetingRepo,
		routeTimeRepo:    routeTimeRepo,
		calendarRepo:     calendarRepo,
		externalBusy:     externalBusy,
		idGen:            idGen,
	}
}

// ListRules はユーザーの空き時間ルール一覧を返す。
func (s *Service) ListRules(ctx context.Context, userID string) ([]*model.Availability, error) {
	rules, err := s.availabilityRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("空き時間ルール一覧の取得に失敗しました: %w", err)
	}
	return rules, nil
}

// CreateRule は空き時間ルールを作成する。
func (s *Service) CreateRule(ctx context.Context, userID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error) {
	rule := &model.Availability{
		ID:           s.idGen(),
		UserID:       userID,
		DayOfWeek:    dayOfWeek,
		StartMinutes: startMinutes,
		EndMinutes:   endMinutes,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.availabilityRepo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("空き時間ルールの作成に失敗しました: %w", err)
	}
	return rule, nil
}

// UpdateRule は空き時間ルールを更新する。所有者以外からの更新は未検出として扱う。
func (s *Service) UpdateRule(ctx context.Context, userID, ruleID string, dayOfWeek, startMinutes, endMinutes int) (*model.Availability, error) {
	rule, err := s.availabilityRepo.FindByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("空き時間ルールの取得に失敗しました: %w", err)
	}
	if rule == nil || rule.UserID != userID {
		return nil, model.NewAvailabilityNotFoundError(ruleID)
	}

	rule.DayOfWeek = dayOfWeek
	rule.StartMinutes = startMinutes
	rule.EndMinutes = endMinutes
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.availabilityRepo.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("空き時間ルールの更新に失敗しました: %w", err)
	}
	return rule, nil
}

// DeleteRule は空き時間ルールを削除する。所有者以外からの削除は未検出として扱う。
func (s *Service) DeleteRule(ctx context.Context, userID, ruleID string) error {
	rule, err := s.availabilityRepo.FindByID(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("空き時間ルールの取得に失敗しました: %w", err)
	}
	if rule == nil || rule.UserID != userID {
		return model.NewAvailabilityNotFoundError(ruleID)
	}
	if err := s.availabilityRepo.Delete(ctx, ruleID); err != nil {
		return fmt.Errorf("空き時間ルールの削除に失敗しました: %w", err)
	}
	return nil
}

// UserFree は単一ユーザーの期間内の空き区間を計算する。
// 週次ルールを展開し、ミーティング・移動時間・外部イベントのビジー区間を差し引く。
func (s *Service) UserFree(ctx context.Context, userID string, from, to time.Time) ([]Interval, error) {
	result, err := s.computeFree(ctx, []string{userID}, from, to)
	if err != nil {
		return nil, err
	}
	return result[userID], nil
}

// TeamAvailability はチーム全メンバーの空き時間と共通の空き区間を集約する。
// 要求者がメンバーでない場合はチーム未検出として扱う。
func (s *Service) TeamAvailability(ctx context.Context, requesterID, teamID string, from, to time.Time) (*TeamAvailabilityResult, error) {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if team == nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	isMember, err := s.teamRepo.IsMember(ctx, teamID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("メンバー確認に失敗しました: %w", err)
	}
	if !isMember {
		return nil, model.NewTeamNotFoundError(teamID)
	}

	memberIDs, err := s.teamRepo.ListMemberIDs(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}

	freeByUser, err := s.computeFree(ctx, memberIDs, from, to)
	if err != nil {
		return nil, err
	}

	result := &TeamAvailabilityResult{
		TeamID: teamID,
		From:   from,
		To:     to,
	}

	for i, userID := range memberIDs {
		free := freeByUser[userID]
		result.Members = append(result.Members, MemberAvailability{UserID: userID, Free: free})
		if i == 0 {
			result.CommonFree = free
		} else {
			result.CommonFree = Intersect(result.CommonFree, free)
		}
	}

	return result, nil
}

// computeFree は各ユーザーの空き区間を計算する。
func (s *Service) computeFree(ctx context.Context, userIDs []string, from, to time.Time) (map[string][]Interval, error) {
	rules, err := s.availabilityRepo.ListByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("空き時間ルールの取得に失敗しました: %w", err)
	}
	rulesByUser := make(map[string][]*model.Availability)
	for _, rule := range rules {
		rulesByUser[rule.UserID] = append(rulesByUser[rule.UserID], rule)
	}

	busyByUser, err := s.collectBusy(ctx, userIDs, from, to)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]Interval, len(userIDs))
	for _, userID := range userIDs {
		available := ExpandRules(rulesByUser[userID], from, to)
		result[userID] = Subtract(available, MergeBusy(busyByUser[userID]))
	}
	return result, nil
}

// collectBusy はミーティング、移動時間イベント、外部プロバイダーのイベントから
// ユーザーごとのビジー区間を収集する。
// 外部プロバイダーの取得失敗は警告ログのみで握り潰し、残りのソースで集約を続行する。
func (s *Service) collectBusy(ctx context.Context, userIDs []string, from, to time.Time) (map[string][]Interval, error) {
	busyByUser := make(map[string][]Interval)

	meetings, err := s.meetingRepo.ListByUsersInRange(ctx, userIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("期間内ミーティングの取得に失敗しました: %w", err)
	}
	for _, m := range meetings {
		busyByUser[m.CreatorID] = append(busyByUser[m.CreatorID], Interval{Start: m.StartTime, End: m.EndTime})
	}

	routeEvents, err := s.routeTimeRepo.ListByUsersInRange(ctx, userIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("期間内移動時間イベントの取得に失敗しました: %w", err)
	}
	for _, e := range routeEvents {
		busyByUser[e.UserID] = append(busyByUser[e.UserID], Interval{Start: e.StartTime, End: e.EndTime})
	}

	if s.externalBusy != nil {
		calendars, err := s.calendarRepo.ListActiveByUserIDs(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("カレンダー一覧の取得に失敗しました: %w", err)
		}
		for _, cal := range calendars {
			intervals, err := s.externalBusy.ListBusy(ctx, cal, from, to)
			if err != nil {
				slog.Warn("外部カレンダーのビジー区間取得に失敗",
					"calendar_id", cal.ID,
					"provider", cal.Provider,
					"error", err)
				continue
			}
			busyByUser[cal.UserID] = append(busyByUser[cal.UserID], intervals...)
		}
	}

	return busyByUser, nil
}
