// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザー情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Stats はユーザー数の統計を返す。
	Stats(ctx context.Context) (*UserStats, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するカレンダー、空き時間ルール、チーム、セッションはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// UserStats はユーザー数の統計。
type UserStats struct {
	Total       int
	Active      int
	Verified    int
	SuperAdmins int
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// CalendarRepository はカレンダー接続データの永続化インターフェース。
type CalendarRepository interface {
	// FindByID は指定IDのカレンダーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Calendar, error)

	// ListByUserID はユーザーのカレンダー一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Calendar, error)

	// ListActiveByUserIDs は複数ユーザーの有効なカレンダー一覧を返す。
	// チーム空き時間の集約で使用する。
	ListActiveByUserIDs(ctx context.Context, userIDs []string) ([]*model.Calendar, error)

	// Create はカレンダーを作成する。
	Create(ctx context.Context, calendar *model.Calendar) error

	// Update はカレンダー情報を更新する。
	Update(ctx context.Context, calendar *model.Calendar) error

	// UpdateTokens はOAuthトークンを更新する。
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt *time.Time) error

	// SetPrimary は指定カレンダーをプライマリに設定し、同一ユーザーの他のカレンダーを解除する。
	SetPrimary(ctx context.Context, userID, calendarID string) error

	// Delete は指定IDのカレンダーを削除する。
	Delete(ctx context.Context, id string) error

	// ListDueForSync は同期対象のカレンダーを確保して返す。
	// next_sync_at <= now() かつ sync_status = 'active' かつ is_active のカレンダーが対象。
	// 確保した行は次回同期時刻が先送りされ、他のワーカーからは取得されない。
	ListDueForSync(ctx context.Context) ([]*model.Calendar, error)

	// UpdateSyncState はカレンダーの同期状態を更新する。
	// sync_status、consecutive_errors、error_message、next_sync_at、last_synced_atを更新する。
	UpdateSyncState(ctx context.Context, calendar *model.Calendar) error
}

// AvailabilityRepository は空き時間ルールの永続化インターフェース。
type AvailabilityRepository interface {
	// FindByID は指定IDのルールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Availability, error)

	// ListByUserID はユーザーのルール一覧を曜日・開始時刻昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Availability, error)

	// ListByUserIDs は複数ユーザーのルール一覧を返す。
	ListByUserIDs(ctx context.Context, userIDs []string) ([]*model.Availability, error)

	// Create はルールを作成する。
	Create(ctx context.Context, availability *model.Availability) error

	// Update はルールを更新する。
	Update(ctx context.Context, availability *model.Availability) error

	// Delete は指定IDのルールを削除する。
	Delete(ctx context.Context, id string) error
}

// TeamRepository はチームデータの永続化インターフェース。
type TeamRepository interface {
	// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Team, error)

	// FindWithMembers はチームとメンバーID一覧を取得する。見つからない場合はnilを返す。
	FindWithMembers(ctx context.Context, id string) (*model.TeamWithMembers, error)

	// ListByMember はユーザーが所属するチーム一覧を返す。
	ListByMember(ctx context.Context, userID string) ([]*model.Team, error)

	// Create はチームを作成し、オーナーをメンバーに追加する。同一トランザクションで行う。
	Create(ctx context.Context, team *model.Team) error

	// Update はチーム情報を更新する。
	Update(ctx context.Context, team *model.Team) error

	// Delete は指定IDのチームを削除する。メンバー関連はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// AddMember はチームにメンバーを追加する。既にメンバーの場合は何もしない。
	AddMember(ctx context.Context, teamID, userID string) error

	// RemoveMember はチームからメンバーを削除する。
	RemoveMember(ctx context.Context, teamID, userID string) error

	// IsMember はユーザーがチームのメンバーかを返す。
	IsMember(ctx context.Context, teamID, userID string) (bool, error)

	// ListMemberIDs はチームのメンバーID一覧を返す。
	ListMemberIDs(ctx context.Context, teamID string) ([]string, error)
}

// MeetingRepository はミーティングデータの永続化インターフェース。
type MeetingRepository interface {
	// FindByID は指定IDのミーティングを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Meeting, error)

	// ListByCreator は作成者のミーティング一覧を開始時刻昇順で返す。
	ListByCreator(ctx context.Context, creatorID string) ([]*model.Meeting, error)

	// ListByTeam はチームのミーティング一覧を開始時刻昇順で返す。
	ListByTeam(ctx context.Context, teamID string) ([]*model.Meeting, error)

	// ListByUsersInRange は指定ユーザー群が作成した、指定期間と重なるミーティングを返す。
	// 空き時間集約のビジー区間収集で使用する。
	ListByUsersInRange(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.Meeting, error)

	// Create はミーティングを作成する。
	Create(ctx context.Context, meeting *model.Meeting) error

	// Update はミーティングを更新する。
	Update(ctx context.Context, meeting *model.Meeting) error

	// Delete は指定IDのミーティングを削除する。移動時間イベントはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// RouteTimeEventRepository は移動時間イベントの永続化インターフェース。
type RouteTimeEventRepository interface {
	// Create は移動時間イベントを作成する。
	Create(ctx context.Context, event *model.RouteTimeEvent) error

	// ListByMeetingID はミーティングの移動時間イベント一覧を返す。
	ListByMeetingID(ctx context.Context, meetingID string) ([]*model.RouteTimeEvent, error)

	// ListByUsersInRange は指定ユーザー群の、指定期間と重なる移動時間イベントを返す。
	ListByUsersInRange(ctx context.Context, userIDs []string, from, to time.Time) ([]*model.RouteTimeEvent, error)

	// DeleteByMeetingID はミーティングの移動時間イベントを全て削除する。
	DeleteByMeetingID(ctx context.Context, meetingID string) error
}

// OAuthSettingsRepository はプロバイダーごとのOAuthクレデンシャルの永続化インターフェース。
type OAuthSettingsRepository interface {
	// FindByProvider は指定プロバイダーの有効な設定を取得する。見つからない場合はnilを返す。
	FindByProvider(ctx context.Context, provider string) (*model.OAuthSettings, error)

	// List は全設定を返す。
	List(ctx context.Context) ([]*model.OAuthSettings, error)

	// Upsert はプロバイダーの設定を作成または上書きする。
	Upsert(ctx context.Context, settings *model.OAuthSettings) error

	// Delete は指定プロバイダーの設定を削除する。
	Delete(ctx context.Context, provider string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
