package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// CredentialsSource はプロバイダーのOAuthクレデンシャルを解決する。
// DB上のOAuth設定を優先し、未登録なら環境変数のフォールバックを返す実装を想定。
type CredentialsSource interface {
	ClientCredentials(ctx context.Context, provider string) (clientID, clientSecret string, err error)
}

// GoogleProvider はGoogle Calendar APIを使用するプロバイダー実装。
type GoogleProvider struct {
	credentials CredentialsSource
}

// NewGoogleProvider はGoogleProviderを生成する。
func NewGoogleProvider(credentials CredentialsSource) *GoogleProvider {
	return &GoogleProvider{credentials: credentials}
}

// Name はプロバイダー名を返す。
func (p *GoogleProvider) Name() string {
	return model.ProviderGoogle
}

func (p *GoogleProvider) oauthConfig(ctx context.Context, redirectURL string) (*oauth2.Config, error) {
	clientID, clientSecret, err := p.credentials.ClientCredentials(ctx, model.ProviderGoogle)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Provider: model.ProviderGoogle, Op: "oauth_config", Err: err}
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// AuthCodeURL はOAuth認可フローの開始URLを返す。
func (p *GoogleProvider) AuthCodeURL(ctx context.Context, state, redirectURL string) (string, error) {
	config, err := p.oauthConfig(ctx, redirectURL)
	if err != nil {
		return "", err
	}
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// ExchangeCode は認可コードをトークンに交換する。
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, redirectURL string) (*Token, error) {
	config, err := p.oauthConfig(ctx, redirectURL)
	if err != nil {
		return nil, err
	}
	tok, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Provider: model.ProviderGoogle, Op: "exchange_code", Err: err}
	}
	token := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		token.Expiry = &expiry
	}
	return token, nil
}

// service は保存済みトークンからCalendar APIサービスを構築する。
// 期限切れトークンはTokenSourceが自動でリフレッシュする。
func (p *GoogleProvider) service(ctx context.Context, cal *model.Calendar) (*calendar.Service, error) {
	config, err := p.oauthConfig(ctx, "")
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  cal.AccessToken,
		RefreshToken: cal.RefreshToken,
	}
	if cal.TokenExpiresAt != nil {
		tok.Expiry = *cal.TokenExpiresAt
	}

	svc, err := calendar.NewService(ctx, option.WithTokenSource(config.TokenSource(ctx, tok)))
	if err != nil {
		return nil, &Error{Kind: KindTransient, Provider: model.ProviderGoogle, Op: "new_service", Err: err}
	}
	return svc, nil
}

// calendarID は接続時に保存したプロバイダー側カレンダーIDを返す。
// 未保存の場合はprimaryを使用する。
func calendarID(cal *model.Calendar) string {
	if cal.ProviderID != "" {
		return cal.ProviderID
	}
	return "primary"
}

// VerifyConnection はカレンダーへの接続を検証する。
func (p *GoogleProvider) VerifyConnection(ctx context.Context, cal *model.Calendar) error {
	svc, err := p.service(ctx, cal)
	if err != nil {
		return err
	}
	if _, err := svc.CalendarList.Get(calendarID(cal)).Context(ctx).Do(); err != nil {
		return p.classify("verify_connection", err)
	}
	return nil
}

// ListEvents は期間内のイベント一覧を取得する。
// 終日イベント（時刻なし）はスキップする。
func (p *GoogleProvider) ListEvents(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]*Event, error) {
	svc, err := p.service(ctx, cal)
	if err != nil {
		return nil, err
	}

	result, err := svc.Events.List(calendarID(cal)).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, p.classify("list_events", err)
	}

	var events []*Event
	for _, item := range result.Items {
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		startTime, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		endTime, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			continue
		}
		events = append(events, &Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			StartTime:   startTime,
			EndTime:     endTime,
			Location:    item.Location,
		})
	}
	return events, nil
}

func toGoogleEvent(event *Event) *calendar.Event {
	return &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.StartTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: event.EndTime.Format(time.RFC3339)},
	}
}

// CreateEvent はイベントを作成し、プロバイダー側イベントIDを返す。
func (p *GoogleProvider) CreateEvent(ctx context.Context, cal *model.Calendar, event *Event) (string, error) {
	svc, err := p.service(ctx, cal)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID(cal), toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", p.classify("create_event", err)
	}
	return created.Id, nil
}

// UpdateEvent はプロバイダー側イベントを更新する。
func (p *GoogleProvider) UpdateEvent(ctx context.Context, cal *model.Calendar, providerEventID string, event *Event) error {
	svc, err := p.service(ctx, cal)
	if err != nil {
		return err
	}
	_, err = svc.Events.Update(calendarID(cal), providerEventID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return p.classify("update_event", err)
	}
	return nil
}

// DeleteEvent はプロバイダー側イベントを削除する。
func (p *GoogleProvider) DeleteEvent(ctx context.Context, cal *model.Calendar, providerEventID string) error {
	svc, err := p.service(ctx, cal)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID(cal), providerEventID).Context(ctx).Do(); err != nil {
		return p.classify("delete_event", err)
	}
	return nil
}

// classify はGoogle APIエラーをステータスコードで分類する。
// 401/403は認証系の恒久エラー、404は恒久エラー、429/5xxは一時エラーとする。
func (p *GoogleProvider) classify(op string, err error) error {
	kind := KindTransient
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403 || apiErr.Code == 404:
			kind = KindPermanent
		case apiErr.Code == 429 || apiErr.Code >= 500:
			kind = KindTransient
		default:
			kind = KindPermanent
		}
	}
	return &Error{
		Kind:     kind,
		Provider: model.ProviderGoogle,
		Op:       op,
		Err:      fmt.Errorf("google calendar api: %w", err),
	}
}

// compile-time interface check
var _ CalendarProvider = (*GoogleProvider)(nil)
