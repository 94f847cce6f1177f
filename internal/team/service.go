// Package team はチーム管理のドメインロジックを提供する。
package team

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/security"
)

// Service はチーム管理のサービス層。
// チームのCRUDとメンバー管理を提供する。メンバーでないユーザーには
// チームの存在を漏らさないよう、権限エラーではなく未検出エラーを返す。
type Service struct {
	teamRepo  repository.TeamRepository
	userRepo  repository.UserRepository
	sanitizer security.ContentSanitizerService
	idGen     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	teamRepo repository.TeamRepository,
	userRepo repository.UserRepository,
	sanitizer security.ContentSanitizerService,
	idGen func() string,
) *Service {
	return &Service{
		teamRepo:  teamRepo,
		userRepo:  userRepo,
		sanitizer: sanitizer,
		idGen:     idGen,
	}
}

// Create はチームを作成する。memberIDsには作成時点で追加するメンバーを指定できる。
// 作成者はメンバーリストに含まれていなくてもオーナーとして自動的にメンバーに追加される。
// 存在しないユーザーや無効化済みユーザーが含まれる場合はエラーを返す。
func (s *Service) Create(ctx context.Context, ownerID, name string, memberIDs []string) (*model.Team, error) {
	members := make([]string, 0, len(memberIDs))
	seen := map[string]bool{ownerID: true}
	for _, memberID := range memberIDs {
		if seen[memberID] {
			continue
		}
		seen[memberID] = true

		user, err := s.userRepo.FindByID(ctx, memberID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if user == nil || !user.IsActive {
			return nil, model.NewUserNotFoundError()
		}
		members = append(members, memberID)
	}

	now := time.Now()
	team := &model.Team{
		ID:        s.idGen(),
		Name:      s.sanitizer.Sanitize(name),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("チームの作成に失敗しました: %w", err)
	}

	for _, memberID := range members {
		if err := s.teamRepo.AddMember(ctx, team.ID, memberID); err != nil {
			return nil, fmt.Errorf("メンバーの追加に失敗しました: %w", err)
		}
	}

	slog.Info("team created",
		slog.String("team_id", team.ID),
		slog.String("owner_id", ownerID),
		slog.Int("member_count", len(members)+1),
	)
	return team, nil
}

// Get はチームとメンバー一覧を取得する。要求者がメンバーでない場合は未検出として扱う。
func (s *Service) Get(ctx context.Context, requesterID, teamID string) (*model.TeamWithMembers, error) {
	team, err := s.teamRepo.FindWithMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if team == nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}

	isMember := false
	for _, memberID := range team.MemberIDs {
		if memberID == requesterID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	return team, nil
}

// List はユーザーが所属するチーム一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Team, error) {
	teams, err := s.teamRepo.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("チーム一覧の取得に失敗しました: %w", err)
	}
	return teams, nil
}

// Update はチーム名を更新する。オーナーのみ実行できる。
func (s *Service) Update(ctx context.Context, requesterID, teamID, name string) (*model.Team, error) {
	team, err := s.requireOwner(ctx, requesterID, teamID)
	if err != nil {
		return nil, err
	}

	team.Name = s.sanitizer.Sanitize(name)
	team.UpdatedAt = time.Now()
	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, fmt.Errorf("チームの更新に失敗しました: %w", err)
	}
	return team, nil
}

// Delete はチームを削除する。オーナーのみ実行できる。
// メンバー関連はCASCADE削除され、チームのミーティングはチーム紐付けが解除される。
func (s *Service) Delete(ctx context.Context, requesterID, teamID string) error {
	if _, err := s.requireOwner(ctx, requesterID, teamID); err != nil {
		return err
	}
	if err := s.teamRepo.Delete(ctx, teamID); err != nil {
		return fmt.Errorf("チームの削除に失敗しました: %w", err)
	}

	slog.Info("team deleted",
		slog.String("team_id", teamID),
		slog.String("owner_id", requesterID),
	)
	return nil
}

// AddMember はチームにメンバーを追加する。オーナーのみ実行できる。
// 既にメンバーの場合は何もしない。
func (s *Service) AddMember(ctx context.Context, requesterID, teamID, userID string) error {
	if _, err := s.requireOwner(ctx, requesterID, teamID); err != nil {
		return err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.teamRepo.AddMember(ctx, teamID, userID); err != nil {
		return fmt.Errorf("メンバーの追加に失敗しました: %w", err)
	}
	return nil
}

// RemoveMember はチームからメンバーを削除する。オーナーのみ実行できる。
// オーナー自身は常にメンバーであるため削除できない。
func (s *Service) RemoveMember(ctx context.Context, requesterID, teamID, userID string) error {
	team, err := s.requireOwner(ctx, requesterID, teamID)
	if err != nil {
		return err
	}
	if userID == team.OwnerID {
		return model.NewPermissionDeniedError()
	}

	if err := s.teamRepo.RemoveMember(ctx, teamID, userID); err != nil {
		return fmt.Errorf("メンバーの削除に失敗しました: %w", err)
	}
	return nil
}

// requireOwner はチームを取得し、要求者がオーナーであることを確認する。
func (s *Service) requireOwner(ctx context.Context, requesterID, teamID string) (*model.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if team == nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}
	if team.OwnerID != requesterID {
		return nil, model.NewPermissionDeniedError()
	}
	return team, nil
}
