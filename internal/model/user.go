// Package model はドメインモデルを定義する。
package model

import "time"

// UserRole はユーザーの権限ロールを表す。
type UserRole string

const (
	// RoleUser は一般ユーザー。
	RoleUser UserRole = "user"
	// RoleSuperAdmin はシステム管理者。
	RoleSuperAdmin UserRole = "super_admin"
)

// ValidRouteTimeDurations は移動時間バッファとして選択可能な分数。
var ValidRouteTimeDurations = []int{30, 45, 60}

// IsValidRouteTimeDuration は移動時間バッファの分数が選択可能な値かを判定する。
func IsValidRouteTimeDuration(minutes int) bool {
	for _, d := range ValidRouteTimeDurations {
		if minutes == d {
			return true
		}
	}
	return false
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID                  string
	Email               string
	Name                string
	HashedPassword      string
	Role                UserRole
	IsActive            bool
	IsVerified          bool
	RouteTimePreference int // 移動時間バッファのデフォルト（分）: 30/45/60
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsSuperAdmin はユーザーが管理者ロールを持つかを返す。
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
