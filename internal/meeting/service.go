// Package meeting はミーティング管理のドメインロジックを提供する。
// ミーティングのCRUD、外部カレンダーへのミラーリング、
// 移動時間バッファイベントの派生生成を担う。
package meeting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/provider"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/security"
)

// routeTimeEventTitle はプロバイダー側に作成する移動時間イベントのタイトル。
const routeTimeEventTitle = "移動時間"

// Service はミーティング管理のサービス層。
// 外部プロバイダーへのミラーリングはベストエフォートで行い、
// 失敗してもミーティング自体の操作は成功させる。
type Service struct {
	meetingRepo   repository.MeetingRepository
	routeTimeRepo repository.RouteTimeEventRepository
	calendarRepo  repository.CalendarRepository
	teamRepo      repository.TeamRepository
	userRepo      repository.UserRepository
	registry      *provider.Registry
	sanitizer     security.ContentSanitizerService
	idGen         func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	meetingRepo repository.MeetingRepository,
	routeTimeRepo repository.RouteTimeEventRepository,
	calendarRepo repository.CalendarRepository,
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	registry *provider.Registry,
	sanitizer security.ContentSanitizerService,
	idGen func() string,
) *Service {
	return &Service{
		meetingRepo:   meetingRepo,
		routeTimeRepo: routeTimeRepo,
		calendarRepo:  calendarRepo,
		teamRepo:      teamRepo,
		userRepo:      userRepo,
		registry:      registry,
		sanitizer:     sanitizer,
		idGen:         idGen,
	}
}

// CreateInput はミーティング作成の入力。
// AddRouteTimeがtrueの場合のみ移動時間イベントを派生生成する。
// RouteTimeDurationが0の場合は作成者の設定値を使用する。
type CreateInput struct {
	Title                  string
	Description            string
	StartTime              time.Time
	EndTime                time.Time
	CalendarID             string
	TeamID                 string
	MeetingType            model.MeetingType
	Location               string
	VirtualMeetingProvider string
	VirtualMeetingURL      string
	AddRouteTime           bool
	RouteTimeDuration      int
}

// UpdateInput はミーティング更新の入力。nilのフィールドは変更しない。
// TeamIDに空文字を指定するとチームとの関連を解除する。
// CalendarIDを指定すると所有権を再検証した上でカレンダーを付け替える。
type UpdateInput struct {
	Title                  *string
	Description            *string
	StartTime              *time.Time
	EndTime                *time.Time
	CalendarID             *string
	TeamID                 *string
	MeetingType            *model.MeetingType
	Location               *string
	VirtualMeetingProvider *string
	VirtualMeetingURL      *string
}

// Create はミーティングを作成する。
// AddRouteTimeが指定された対面ミーティングでは、指定または作成者設定の
// バッファ分数で移動時間イベントを前後に派生生成する。
// カレンダーが紐付く場合は外部プロバイダーへミラーする。ミラー失敗は警告ログのみ。
func (s *Service) Create(ctx context.Context, creator *model.User, in CreateInput) (*model.Meeting, error) {
	if in.TeamID != "" {
		if err := s.requireTeamMember(ctx, in.TeamID, creator.ID); err != nil {
			return nil, err
		}
	}
	if in.CalendarID != "" {
		if err := s.requireOwnCalendar(ctx, creator.ID, in.CalendarID); err != nil {
			return nil, err
		}
	}

	routeTimeDuration := 0
	if in.AddRouteTime {
		routeTimeDuration = in.RouteTimeDuration
		if routeTimeDuration <= 0 {
			routeTimeDuration = creator.RouteTimePreference
		}
		if !model.IsValidRouteTimeDuration(routeTimeDuration) {
			return nil, model.NewInvalidRouteTimeError(routeTimeDuration)
		}
	}

	now := time.Now()
	meeting := &model.Meeting{
		ID:                     s.idGen(),
		Title:                  s.sanitizer.Sanitize(in.Title),
		Description:            s.sanitizer.Sanitize(in.Description),
		StartTime:              in.StartTime,
		EndTime:                in.EndTime,
		CreatorID:              creator.ID,
		CalendarID:             in.CalendarID,
		TeamID:                 in.TeamID,
		MeetingType:            in.MeetingType,
		Location:               in.Location,
		VirtualMeetingProvider: in.VirtualMeetingProvider,
		VirtualMeetingURL:      in.VirtualMeetingURL,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := meeting.Validate(); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Create(ctx, meeting); err != nil {
		return nil, fmt.Errorf("ミーティングの作成に失敗しました: %w", err)
	}

	if in.AddRouteTime {
		if err := s.createRouteTimeEvents(ctx, meeting, routeTimeDuration); err != nil {
			return nil, err
		}
	}

	s.mirrorCreate(ctx, meeting)

	slog.Info("meeting created",
		slog.String("meeting_id", meeting.ID),
		slog.String("creator_id", creator.ID),
		slog.String("type", string(meeting.MeetingType)),
	)
	return meeting, nil
}

// Get は指定IDのミーティングを取得する。
// 作成者本人またはミーティングのチームメンバーのみ参照できる。
func (s *Service) Get(ctx context.Context, requesterID, meetingID string) (*model.Meeting, error) {
	meeting, err := s.meetingRepo.FindByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("ミーティングの取得に失敗しました: %w", err)
	}
	if meeting == nil {
		return nil, model.NewMeetingNotFoundError(meetingID)
	}
	if meeting.CreatorID == requesterID {
		return meeting, nil
	}
	if meeting.TeamID != "" {
		isMember, err := s.teamRepo.IsMember(ctx, meeting.TeamID, requesterID)
		if err != nil {
			return nil, fmt.Errorf("メンバー確認に失敗しました: %w", err)
		}
		if isMember {
			return meeting, nil
		}
	}
	return nil, model.NewMeetingNotFoundError(meetingID)
}

// ListMine は作成者のミーティング一覧を返す。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.Meeting, error) {
	meetings, err := s.meetingRepo.ListByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ミーティング一覧の取得に失敗しました: %w", err)
	}
	return meetings, nil
}

// ListByTeam はチームのミーティング一覧を返す。メンバーのみ参照できる。
func (s *Service) ListByTeam(ctx context.Context, requesterID, teamID string) ([]*model.Meeting, error) {
	if err := s.requireTeamMember(ctx, teamID, requesterID); err != nil {
		return nil, err
	}
	meetings, err := s.meetingRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("ミーティング一覧の取得に失敗しました: %w", err)
	}
	return meetings, nil
}

// Update はミーティングを更新する。作成者のみ実行できる。
// 開始・終了時刻または形式が変わった場合は移動時間イベントを破棄して再生成する。
// カレンダーの付け替え時は新カレンダーの所有権を検証し、
// 旧カレンダー側のミラーイベントを削除した上で新カレンダーへ再ミラーする。
func (s *Service) Update(ctx context.Context, requesterID, meetingID string, in UpdateInput) (*model.Meeting, error) {
	meeting, err := s.meetingRepo.FindByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("ミーティングの取得に失敗しました: %w", err)
	}
	if meeting == nil || meeting.CreatorID != requesterID {
		return nil, model.NewMeetingNotFoundError(meetingID)
	}

	boundaryChanged := in.StartTime != nil || in.EndTime != nil || in.MeetingType != nil

	if in.CalendarID != nil && *in.CalendarID != meeting.CalendarID {
		if *in.CalendarID != "" {
			if err := s.requireOwnCalendar(ctx, requesterID, *in.CalendarID); err != nil {
				return nil, err
			}
		}
		// 旧カレンダー側のミラーを削除してから付け替える。
		// 付け替え後はProviderEventIDが空になり、mirrorUpdateが新規作成する。
		s.mirrorDelete(ctx, meeting)
		meeting.CalendarID = *in.CalendarID
		meeting.ProviderEventID = ""
		boundaryChanged = true
	}

	if in.Title != nil {
		meeting.Title = s.sanitizer.Sanitize(*in.Title)
	}
	if in.Description != nil {
		meeting.Description = s.sanitizer.Sanitize(*in.Description)
	}
	if in.StartTime != nil {
		meeting.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		meeting.EndTime = *in.EndTime
	}
	if in.TeamID != nil {
		if *in.TeamID != "" {
			if err := s.requireTeamMember(ctx, *in.TeamID, requesterID); err != nil {
				return nil, err
			}
		}
		meeting.TeamID = *in.TeamID
	}
	if in.MeetingType != nil {
		meeting.MeetingType = *in.MeetingType
	}
	if in.Location != nil {
		meeting.Location = *in.Location
	}
	if in.VirtualMeetingProvider != nil {
		meeting.VirtualMeetingProvider = *in.VirtualMeetingProvider
	}
	if in.VirtualMeetingURL != nil {
		meeting.VirtualMeetingURL = *in.VirtualMeetingURL
	}
	meeting.UpdatedAt = time.Now()

	if err := meeting.Validate(); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Update(ctx, meeting); err != nil {
		return nil, fmt.Errorf("ミーティングの更新に失敗しました: %w", err)
	}

	if boundaryChanged {
		if err := s.recomputeRouteTimeEvents(ctx, meeting); err != nil {
			return nil, err
		}
	}

	s.mirrorUpdate(ctx, meeting)
	return meeting, nil
}

// Delete はミーティングを削除する。作成者のみ実行できる。
// プロバイダー側のミラーイベントと移動時間イベントも削除する。
func (s *Service) Delete(ctx context.Context, requesterID, meetingID string) error {
	meeting, err := s.meetingRepo.FindByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("ミーティングの取得に失敗しました: %w", err)
	}
	if meeting == nil || meeting.CreatorID != requesterID {
		return model.NewMeetingNotFoundError(meetingID)
	}

	s.mirrorDelete(ctx, meeting)

	// 移動時間イベントのDB上のレコードはCASCADE削除される
	if err := s.meetingRepo.Delete(ctx, meetingID); err != nil {
		return fmt.Errorf("ミーティングの削除に失敗しました: %w", err)
	}

	slog.Info("meeting deleted",
		slog.String("meeting_id", meetingID),
		slog.String("creator_id", requesterID),
	)
	return nil
}

// createRouteTimeEvents は対面ミーティングの前後に移動時間イベントを生成する。
// オンラインミーティングでは何もしない。
func (s *Service) createRouteTimeEvents(ctx context.Context, meeting *model.Meeting, durationMinutes int) error {
	if meeting.MeetingType != model.MeetingTypeInPerson {
		return nil
	}

	buffer := time.Duration(durationMinutes) * time.Minute
	events := []*model.RouteTimeEvent{
		{
			ID:              s.idGen(),
			MeetingID:       meeting.ID,
			UserID:          meeting.CreatorID,
			IsBefore:        true,
			DurationMinutes: durationMinutes,
			StartTime:       meeting.StartTime.Add(-buffer),
			EndTime:         meeting.StartTime,
		},
		{
			ID:              s.idGen(),
			MeetingID:       meeting.ID,
			UserID:          meeting.CreatorID,
			IsBefore:        false,
			DurationMinutes: durationMinutes,
			StartTime:       meeting.EndTime,
			EndTime:         meeting.EndTime.Add(buffer),
		},
	}

	cal, p := s.providerFor(ctx, meeting)
	for _, event := range events {
		if p != nil {
			providerEventID, err := p.CreateEvent(ctx, cal, &provider.Event{
				Title:     routeTimeEventTitle,
				StartTime: event.StartTime,
				EndTime:   event.EndTime,
			})
			if err != nil {
				slog.Warn("移動時間イベントのミラー作成に失敗しました",
					slog.String("meeting_id", meeting.ID),
					slog.String("error", err.Error()),
				)
			} else {
				event.ProviderEventID = providerEventID
			}
		}
		if err := s.routeTimeRepo.Create(ctx, event); err != nil {
			return fmt.Errorf("移動時間イベントの作成に失敗しました: %w", err)
		}
	}
	return nil
}

// recomputeRouteTimeEvents は既存の移動時間イベントを破棄し、
// 現在のミーティング境界と従来のバッファ分数から再生成する。
// 移動時間イベントを持たないミーティングでは何もしない。
func (s *Service) recomputeRouteTimeEvents(ctx context.Context, meeting *model.Meeting) error {
	existing, err := s.routeTimeRepo.ListByMeetingID(ctx, meeting.ID)
	if err != nil {
		return fmt.Errorf("移動時間イベントの取得に失敗しました: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}

	cal, p := s.providerFor(ctx, meeting)
	for _, event := range existing {
		if p != nil && event.ProviderEventID != "" {
			if err := p.DeleteEvent(ctx, cal, event.ProviderEventID); err != nil {
				slog.Warn("移動時間イベントのミラー削除に失敗しました",
					slog.String("meeting_id", meeting.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	if err := s.routeTimeRepo.DeleteByMeetingID(ctx, meeting.ID); err != nil {
		return fmt.Errorf("移動時間イベントの削除に失敗しました: %w", err)
	}

	durationMinutes := existing[0].DurationMinutes
	if !model.IsValidRouteTimeDuration(durationMinutes) {
		creator, err := s.userRepo.FindByID(ctx, meeting.CreatorID)
		if err != nil {
			return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		durationMinutes = 30
		if creator != nil {
			durationMinutes = creator.RouteTimePreference
		}
	}
	return s.createRouteTimeEvents(ctx, meeting, durationMinutes)
}

// mirrorCreate はミーティングをプロバイダー側イベントとして作成する。
// 成功時はProviderEventIDを保存する。失敗は警告ログのみで処理を続行する。
func (s *Service) mirrorCreate(ctx context.Context, meeting *model.Meeting) {
	cal, p := s.providerFor(ctx, meeting)
	if p == nil {
		return
	}

	providerEventID, err := p.CreateEvent(ctx, cal, toProviderEvent(meeting))
	if err != nil {
		slog.Warn("ミーティングのミラー作成に失敗しました",
			slog.String("meeting_id", meeting.ID),
			slog.String("provider", cal.Provider),
			slog.String("error", err.Error()),
		)
		return
	}

	meeting.ProviderEventID = providerEventID
	if err := s.meetingRepo.Update(ctx, meeting); err != nil {
		slog.Warn("ミラーイベントIDの保存に失敗しました",
			slog.String("meeting_id", meeting.ID),
			slog.String("error", err.Error()),
		)
	}
}

// mirrorUpdate はプロバイダー側のミラーイベントを更新する。
// ミラー未作成の場合は新規作成を試みる。失敗は警告ログのみ。
func (s *Service) mirrorUpdate(ctx context.Context, meeting *model.Meeting) {
	if meeting.ProviderEventID == "" {
		s.mirrorCreate(ctx, meeting)
		return
	}

	cal, p := s.providerFor(ctx, meeting)
	if p == nil {
		return
	}
	if err := p.UpdateEvent(ctx, cal, meeting.ProviderEventID, toProviderEvent(meeting)); err != nil {
		slog.Warn("ミーティングのミラー更新に失敗しました",
			slog.String("meeting_id", meeting.ID),
			slog.String("provider", cal.Provider),
			slog.String("error", err.Error()),
		)
	}
}

// mirrorDelete はプロバイダー側のミラーイベントと移動時間イベントを削除する。
// 失敗は警告ログのみ。
func (s *Service) mirrorDelete(ctx context.Context, meeting *model.Meeting) {
	cal, p := s.providerFor(ctx, meeting)
	if p == nil {
		return
	}

	if meeting.ProviderEventID != "" {
		if err := p.DeleteEvent(ctx, cal, meeting.ProviderEventID); err != nil {
			slog.Warn("ミーティングのミラー削除に失敗しました",
				slog.String("meeting_id", meeting.ID),
				slog.String("provider", cal.Provider),
				slog.String("error", err.Error()),
			)
		}
	}

	routeEvents, err := s.routeTimeRepo.ListByMeetingID(ctx, meeting.ID)
	if err != nil {
		slog.Warn("移動時間イベントの取得に失敗しました",
			slog.String("meeting_id", meeting.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, event := range routeEvents {
		if event.ProviderEventID == "" {
			continue
		}
		if err := p.DeleteEvent(ctx, cal, event.ProviderEventID); err != nil {
			slog.Warn("移動時間イベントのミラー削除に失敗しました",
				slog.String("meeting_id", meeting.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// providerFor はミーティングのカレンダーとプロバイダーを解決する。
// カレンダー未設定、取得失敗、未登録プロバイダーの場合は(nil, nil)を返す。
func (s *Service) providerFor(ctx context.Context, meeting *model.Meeting) (*model.Calendar, provider.CalendarProvider) {
	if meeting.CalendarID == "" {
		return nil, nil
	}
	cal, err := s.calendarRepo.FindByID(ctx, meeting.CalendarID)
	if err != nil || cal == nil {
		return nil, nil
	}
	p, err := s.registry.Get(cal.Provider)
	if err != nil {
		return nil, nil
	}
	return cal, p
}

// requireTeamMember はユーザーがチームのメンバーであることを確認する。
// 非メンバーにはチームの存在を漏らさないよう未検出エラーを返す。
func (s *Service) requireTeamMember(ctx context.Context, teamID, userID string) error {
	isMember, err := s.teamRepo.IsMember(ctx, teamID, userID)
	if err != nil {
		return fmt.Errorf("メンバー確認に失敗しました: %w", err)
	}
	if !isMember {
		return model.NewTeamNotFoundError(teamID)
	}
	return nil
}

// requireOwnCalendar はカレンダーがユーザーの所有であることを確認する。
func (s *Service) requireOwnCalendar(ctx context.Context, userID, calendarID string) error {
	cal, err := s.calendarRepo.FindByID(ctx, calendarID)
	if err != nil {
		return fmt.Errorf("カレンダーの取得に失敗しました: %w", err)
	}
	if cal == nil || cal.UserID != userID {
		return model.NewCalendarNotFoundError(calendarID)
	}
	return nil
}

// toProviderEvent はミーティングをプロバイダー共通のイベント表現に変換する。
// オンラインミーティングの場合はURLを場所として設定する。
func toProviderEvent(meeting *model.Meeting) *provider.Event {
	location := meeting.Location
	if meeting.MeetingType == model.MeetingTypeVirtual {
		location = meeting.VirtualMeetingURL
	}
	return &provider.Event{
		ID:          meeting.ProviderEventID,
		Title:       meeting.Title,
		Description: meeting.Description,
		StartTime:   meeting.StartTime,
		EndTime:     meeting.EndTime,
		Location:    location,
	}
}
