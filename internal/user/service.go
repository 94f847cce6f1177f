// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// Service はユーザー管理のサービス層。
// プロフィール更新、退会処理、管理者によるユーザー管理を提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// Get は指定IDのユーザーを取得する。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はユーザーの表示名を更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID, name string) (*model.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = name
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return user, nil
}

// UpdateRouteTimePreference は移動時間バッファの設定（分）を更新する。
// 30/45/60分のいずれかのみ許可する。
func (s *Service) UpdateRouteTimePreference(ctx context.Context, userID string, minutes int) (*model.User, error) {
	if !model.IsValidRouteTimeDuration(minutes) {
		return nil, model.NewInvalidRouteTimeError(minutes)
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.RouteTimePreference = minutes
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user。カレンダー、空き時間ルール、ミーティング、
// 移動時間イベント、チームメンバー関連はCASCADE削除される。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// List は全ユーザーを返す。スーパー管理者のみ実行できる。
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, model.NewPermissionDeniedError()
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Stats はユーザー数の統計を返す。スーパー管理者のみ実行できる。
func (s *Service) Stats(ctx context.Context, actor *model.User) (*repository.UserStats, error) {
	if !actor.IsSuperAdmin() {
		return nil, model.NewPermissionDeniedError()
	}
	stats, err := s.userRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー統計の取得に失敗しました: %w", err)
	}
	return stats, nil
}

// AdminCreate はスーパー管理者が新規ユーザーを作成する。
// 管理者が作成したユーザーはメール確認済みとして扱う。
func (s *Service) AdminCreate(ctx context.Context, actor *model.User, email, name, password string, role model.UserRole) (*model.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, model.NewPermissionDeniedError()
	}
	if role != model.RoleUser && role != model.RoleSuperAdmin {
		role = model.RoleUser
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyRegisteredError(email)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:                  uuid.New().String(),
		Email:               email,
		Name:                name,
		HashedPassword:      string(hashed),
		Role:                role,
		IsActive:            true,
		IsVerified:          true,
		RouteTimePreference: 30,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("admin created user",
		slog.String("actor_id", actor.ID),
		slog.String("user_id", user.ID),
		slog.String("role", string(role)),
	)
	return user, nil
}

// AdminUpdate はスーパー管理者がユーザーの属性を更新する。
// 自分自身のロールをuserに降格することはできない。
func (s *Service) AdminUpdate(ctx context.Context, actor *model.User, userID string, name *string, role *model.UserRole, isActive *bool) (*model.User, error) {
	if !actor.IsSuperAdmin() {
		return nil, model.NewPermissionDeniedError()
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if role != nil && userID == actor.ID && *role != model.RoleSuperAdmin {
		return nil, model.NewSelfDemoteForbiddenError()
	}

	if name != nil {
		user.Name = *name
	}
	if role != nil {
		user.Role = *role
	}
	if isActive != nil {
		user.IsActive = *isActive
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return user, nil
}

// AdminDelete はスーパー管理者がユーザーを削除する。
// 自分自身の削除はできない。
func (s *Service) AdminDelete(ctx context.Context, actor *model.User, userID string) error {
	if !actor.IsSuperAdmin() {
		return model.NewPermissionDeniedError()
	}
	if userID == actor.ID {
		return model.NewSelfDeleteForbiddenError()
	}
	return s.Withdraw(ctx, userID)
}
