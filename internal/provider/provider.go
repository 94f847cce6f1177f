// Package provider は外部カレンダープロバイダーへの接続を抽象化する。
// プロバイダーごとの差異はCalendarProviderインターフェースの背後に隠蔽し、
// 呼び出し側はエラー種別（transient/permanent/unsupported）だけを見て判断する。
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// newEventUID はプロバイダー側イベントの新しいUIDを生成する。
func newEventUID() string {
	return uuid.New().String()
}

// ErrorKind はプロバイダーエラーの分類。
type ErrorKind string

const (
	// KindTransient は一時的な障害。リトライで回復する可能性がある。
	KindTransient ErrorKind = "transient"
	// KindPermanent は恒久的な障害。認証失敗など、リトライしても回復しない。
	KindPermanent ErrorKind = "permanent"
	// KindUnsupported はプロバイダーが操作に対応していない。
	KindUnsupported ErrorKind = "unsupported"
)

// Error はプロバイダー操作のエラーを分類付きで表す。
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%s): %v", e.Provider, e.Op, e.Kind, e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient はエラーが一時的な障害かを返す。
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindTransient
}

// IsPermanent はエラーが恒久的な障害かを返す。
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindPermanent
}

// IsUnsupported はエラーが未対応操作によるものかを返す。
func IsUnsupported(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindUnsupported
}

// Event はプロバイダー間で共通のカレンダーイベント表現。
type Event struct {
	ID          string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
}

// Token はOAuthトークン交換の結果。
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

// CalendarProvider は外部カレンダープロバイダーの操作インターフェース。
// OAuthをサポートしないプロバイダーはAuthCodeURL/ExchangeCodeで
// KindUnsupportedのエラーを返す。
type CalendarProvider interface {
	// Name はプロバイダー名（google, apple, mailcow, outlook）を返す。
	Name() string

	// AuthCodeURL はOAuth認可フローの開始URLを返す。
	AuthCodeURL(ctx context.Context, state, redirectURL string) (string, error)

	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code, redirectURL string) (*Token, error)

	// VerifyConnection はカレンダーへの接続を検証する。
	VerifyConnection(ctx context.Context, cal *model.Calendar) error

	// ListEvents は期間内のイベント一覧を取得する。
	ListEvents(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]*Event, error)

	// CreateEvent はイベントを作成し、プロバイダー側イベントIDを返す。
	CreateEvent(ctx context.Context, cal *model.Calendar, event *Event) (string, error)

	// UpdateEvent はプロバイダー側イベントを更新する。
	UpdateEvent(ctx context.Context, cal *model.Calendar, providerEventID string, event *Event) error

	// DeleteEvent はプロバイダー側イベントを削除する。
	DeleteEvent(ctx context.Context, cal *model.Calendar, providerEventID string) error
}

// Registry は名前からプロバイダーを引くレジストリ。
type Registry struct {
	providers map[string]CalendarProvider
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]CalendarProvider)}
}

// Register はプロバイダーを登録する。
func (r *Registry) Register(p CalendarProvider) {
	r.providers[p.Name()] = p
}

// Get は名前でプロバイダーを取得する。
// 未登録のプロバイダーはKindUnsupportedのエラーを返す。
func (r *Registry) Get(name string) (CalendarProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &Error{
			Kind:     KindUnsupported,
			Provider: name,
			Op:       "get",
			Err:      fmt.Errorf("unknown provider"),
		}
	}
	return p, nil
}

// Names は登録済みプロバイダー名の一覧を返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
