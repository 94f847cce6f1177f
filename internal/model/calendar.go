// Package model はドメインモデルを定義する。
package model

import "time"

// カレンダープロバイダー識別子。
const (
	ProviderGoogle  = "google"
	ProviderOutlook = "outlook"
	ProviderApple   = "apple"
	ProviderMailcow = "mailcow"
)

// SyncStatus はカレンダーの同期状態を表す。
type SyncStatus string

const (
	// SyncStatusActive はアクティブな同期状態。
	SyncStatusActive SyncStatus = "active"
	// SyncStatusStopped は停止された同期状態。
	SyncStatusStopped SyncStatus = "stopped"
	// SyncStatusError はエラーによる同期停止状態。
	SyncStatusError SyncStatus = "error"
)

// Calendar はユーザーと外部プロバイダーアカウントの紐付けを表す。
// プロバイダー発行のトークンと同期状態を保持する。
type Calendar struct {
	ID                string
	UserID            string
	Name              string
	Provider          string // google, outlook, apple, mailcow
	ProviderID        string // プロバイダー側のカレンダー識別子
	AccessToken       string
	RefreshToken      string
	TokenExpiresAt    *time.Time
	// mailcow等のセルフホストCalDAVサーバーのベースURL。
	// googleでは空。
	EndpointURL       string
	IsPrimary         bool
	IsActive          bool
	SyncStatus        SyncStatus
	ConsecutiveErrors int
	ErrorMessage      string
	NextSyncAt        time.Time
	LastSyncedAt      *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OAuthSettings はプロバイダーごとのOAuthクライアント設定を表す。
// 管理者がDB上で管理し、環境変数設定より優先される。
type OAuthSettings struct {
	ID           string
	Provider     string
	ClientID     string
	ClientSecret string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
