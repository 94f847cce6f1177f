// Package auth はパスワード認証、メール確認、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/mail"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int    // セッション有効期間（秒）
	BaseURL       string // 確認リンクの生成に使用するベースURL
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	mailer      mail.Sender
	tokens      *TokenIssuer
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	mailer mail.Sender,
	tokens *TokenIssuer,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		mailer:      mailer,
		tokens:      tokens,
		config:      config,
	}
}

// Register は新規ユーザーを登録し、確認メールを送信する。
// メールアドレスが登録済みの場合はEMAIL_ALREADY_REGISTEREDエラーを返す。
// 確認メールの送信失敗は警告ログのみで登録自体は成功させる。
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.User, error) {
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
		Role:                model.RoleUser,
		IsActive:            true,
		IsVerified:          false,
		RouteTimePreference: 30,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	if err := s.sendVerificationMail(ctx, user); err != nil {
		slog.Warn("確認メールの送信に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Login はメールアドレスとパスワードで認証し、セッションを発行する。
// ユーザーが存在しない場合とパスワード不一致は同じINVALID_CREDENTIALSエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if !user.IsActive {
		return nil, nil, model.NewUserInactiveError()
	}
	if !user.IsVerified {
		return nil, nil, model.NewEmailNotVerifiedError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// VerifyEmail は確認トークンを検証し、ユーザーを確認済みにする。
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewInvalidTokenError()
	}
	if user.IsVerified {
		return model.NewEmailAlreadyVerifiedError()
	}

	user.IsVerified = true
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	slog.Info("email verified", slog.String("user_id", userID))
	return nil
}

// ResendVerification は確認メールを再送する。
// 確認済みの場合はEMAIL_ALREADY_VERIFIEDエラーを返す。
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if user.IsVerified {
		return model.NewEmailAlreadyVerifiedError()
	}

	if err := s.sendVerificationMail(ctx, user); err != nil {
		return fmt.Errorf("確認メールの送信に失敗しました: %w", err)
	}
	return nil
}

// ResetPassword はユーザーのパスワードを新しいものに更新する。
// 認証済みユーザーのみ実行できる前提のため、現在のパスワードは要求しない。
func (s *Service) ResetPassword(ctx context.Context, userID, newPassword string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	user.HashedPassword = string(hashed)
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	slog.Info("password reset", slog.String("user_id", userID))
	return user, nil
}

// sendVerificationMail は確認リンク付きメールを送信する。
func (s *Service) sendVerificationMail(ctx context.Context, user *model.User) error {
	if s.mailer == nil {
		return nil
	}

	token := s.tokens.Issue(user.ID)
	link := fmt.Sprintf("%s/api/auth/verify?token=%s", s.config.BaseURL, token)
	body := fmt.Sprintf(
		"%s 様\n\nご登録ありがとうございます。\n以下のリンクをクリックしてメールアドレスを確認してください。\n\n%s\n\nこのリンクの有効期限は24時間です。\n心当たりのない場合はこのメールを破棄してください。\n",
		user.Name, link,
	)
	return s.mailer.Send(ctx, user.Email, "メールアドレスの確認", body)
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
