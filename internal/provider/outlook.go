package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// OutlookProvider はOutlookカレンダーのプレースホルダー実装。
// Microsoft Graph連携は未対応のため、全操作でKindUnsupportedのエラーを返す。
// 呼び出し側はこのエラーを受けてカレンダーの同期を停止する。
type OutlookProvider struct{}

// NewOutlookProvider はOutlookProviderを生成する。
func NewOutlookProvider() *OutlookProvider {
	return &OutlookProvider{}
}

// Name はプロバイダー名を返す。
func (p *OutlookProvider) Name() string {
	return model.ProviderOutlook
}

func (p *OutlookProvider) unsupported(op string) *Error {
	return &Error{
		Kind:     KindUnsupported,
		Provider: model.ProviderOutlook,
		Op:       op,
		Err:      fmt.Errorf("outlook integration is not implemented"),
	}
}

// AuthCodeURL は未対応エラーを返す。
func (p *OutlookProvider) AuthCodeURL(ctx context.Context, state, redirectURL string) (string, error) {
	return "", p.unsupported("auth_code_url")
}

// ExchangeCode は未対応エラーを返す。
func (p *OutlookProvider) ExchangeCode(ctx context.Context, code, redirectURL string) (*Token, error) {
	return nil, p.unsupported("exchange_code")
}

// VerifyConnection は未対応エラーを返す。
func (p *OutlookProvider) VerifyConnection(ctx context.Context, cal *model.Calendar) error {
	return p.unsupported("verify_connection")
}

// ListEvents は未対応エラーを返す。
func (p *OutlookProvider) ListEvents(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]*Event, error) {
	return nil, p.unsupported("list_events")
}

// CreateEvent は未対応エラーを返す。
func (p *OutlookProvider) CreateEvent(ctx context.Context, cal *model.Calendar, event *Event) (string, error) {
	return "", p.unsupported("create_event")
}

// UpdateEvent は未対応エラーを返す。
func (p *OutlookProvider) UpdateEvent(ctx context.Context, cal *model.Calendar, providerEventID string, event *Event) error {
	return p.unsupported("update_event")
}

// DeleteEvent は未対応エラーを返す。
func (p *OutlookProvider) DeleteEvent(ctx context.Context, cal *model.Calendar, providerEventID string) error {
	return p.unsupported("delete_event")
}

// compile-time interface check
var _ CalendarProvider = (*OutlookProvider)(nil)
