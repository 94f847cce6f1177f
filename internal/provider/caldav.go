package provider

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// appleCalDAVEndpoint はiCloudのCalDAVエンドポイント。
const appleCalDAVEndpoint = "https://caldav.icloud.com/"

// URLValidator はユーザー入力のエンドポイントURLを接続前に検証する。
// SSRF対策としてプライベートアドレスへの接続を拒否する実装を想定。
type URLValidator interface {
	Validate(rawURL string) error
}

// basicAuthTransport はリクエストにBasic認証とUser-Agentを付与する。
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "async-calendar/1.0")
	return t.transport.RoundTrip(req)
}

// CalDAVProvider はCalDAVプロトコルで接続するプロバイダー実装。
// apple（iCloud、固定エンドポイント）とmailcow（セルフホスト、ユーザー指定エンドポイント）で共用する。
// CalDAV接続ではOAuthを使用せず、access_tokenにユーザー名、refresh_tokenに
// アプリパスワードを保持する。provider_idはカレンダーコレクションのパス。
type CalDAVProvider struct {
	name      string
	endpoint  string // 固定エンドポイント。空の場合はカレンダーのendpoint_urlを使用する。
	validator URLValidator
	transport http.RoundTripper // 認証を付与する前段のトランスポート。nilならhttp.DefaultTransport。
}

// NewAppleProvider はiCloud CalDAV用のプロバイダーを生成する。
// エンドポイントが固定のためSSRF検証は不要。
func NewAppleProvider() *CalDAVProvider {
	return &CalDAVProvider{name: model.ProviderApple, endpoint: appleCalDAVEndpoint}
}

// NewMailcowProvider はmailcow CalDAV用のプロバイダーを生成する。
// ユーザー指定のエンドポイントURLはvalidatorで検証してから接続する。
// transportにSSRF防止機能付きトランスポートを渡すことで、
// DNS解決後のプライベートIPへの接続もブロックできる。
func NewMailcowProvider(validator URLValidator, transport http.RoundTripper) *CalDAVProvider {
	return &CalDAVProvider{name: model.ProviderMailcow, validator: validator, transport: transport}
}

// Name はプロバイダー名を返す。
func (p *CalDAVProvider) Name() string {
	return p.name
}

// AuthCodeURL はCalDAVプロバイダーでは未対応。
func (p *CalDAVProvider) AuthCodeURL(ctx context.Context, state, redirectURL string) (string, error) {
	return "", &Error{Kind: KindUnsupported, Provider: p.name, Op: "auth_code_url",
		Err: fmt.Errorf("caldav providers use app passwords, not oauth")}
}

// ExchangeCode はCalDAVプロバイダーでは未対応。
func (p *CalDAVProvider) ExchangeCode(ctx context.Context, code, redirectURL string) (*Token, error) {
	return nil, &Error{Kind: KindUnsupported, Provider: p.name, Op: "exchange_code",
		Err: fmt.Errorf("caldav providers use app passwords, not oauth")}
}

// endpointFor は接続先エンドポイントを決定する。
func (p *CalDAVProvider) endpointFor(cal *model.Calendar) (string, error) {
	endpoint := p.endpoint
	if endpoint == "" {
		endpoint = cal.EndpointURL
	}
	if endpoint == "" {
		return "", &Error{Kind: KindPermanent, Provider: p.name, Op: "endpoint",
			Err: fmt.Errorf("endpoint URL is not set")}
	}
	if p.validator != nil {
		if err := p.validator.Validate(endpoint); err != nil {
			return "", &Error{Kind: KindPermanent, Provider: p.name, Op: "endpoint", Err: err}
		}
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint, nil
}

// clients はカレンダーの認証情報からCalDAV/WebDAVクライアントを構築する。
func (p *CalDAVProvider) clients(cal *model.Calendar) (*caldav.Client, *webdav.Client, string, error) {
	endpoint, err := p.endpointFor(cal)
	if err != nil {
		return nil, nil, "", err
	}

	base := p.transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username:  cal.AccessToken,
			password:  cal.RefreshToken,
			transport: base,
		},
		Timeout: 30 * time.Second,
	}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, nil, "", &Error{Kind: KindPermanent, Provider: p.name, Op: "new_client", Err: err}
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, nil, "", &Error{Kind: KindPermanent, Provider: p.name, Op: "new_client", Err: err}
	}
	return caldavClient, webdavClient, endpoint, nil
}

// calendarPath は操作対象のカレンダーコレクションのパスを解決する。
// provider_idが未設定の場合はプリンシパル検出でホームセットの先頭カレンダーを使用する。
func (p *CalDAVProvider) calendarPath(ctx context.Context, client *caldav.Client, cal *model.Calendar) (string, error) {
	if cal.ProviderID != "" {
		return cal.ProviderID, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", &Error{Kind: KindPermanent, Provider: p.name, Op: "find_principal", Err: err}
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", &Error{Kind: KindPermanent, Provider: p.name, Op: "find_home_set", Err: err}
	}
	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", &Error{Kind: KindTransient, Provider: p.name, Op: "find_calendars", Err: err}
	}
	if len(calendars) == 0 {
		return "", &Error{Kind: KindPermanent, Provider: p.name, Op: "find_calendars",
			Err: fmt.Errorf("no calendar collections found")}
	}
	return calendars[0].Path, nil
}

// VerifyConnection はプリンシパル検出で認証情報と接続先を検証する。
func (p *CalDAVProvider) VerifyConnection(ctx context.Context, cal *model.Calendar) error {
	client, _, _, err := p.clients(cal)
	if err != nil {
		return err
	}
	if _, err := client.FindCurrentUserPrincipal(ctx); err != nil {
		return &Error{Kind: KindPermanent, Provider: p.name, Op: "verify_connection", Err: err}
	}
	return nil
}

// ListEvents は期間内のイベント一覧をtime-rangeクエリで取得する。
func (p *CalDAVProvider) ListEvents(ctx context.Context, cal *model.Calendar, from, to time.Time) ([]*Event, error) {
	client, _, _, err := p.clients(cal)
	if err != nil {
		return nil, err
	}
	calPath, err := p.calendarPath(ctx, client, cal)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			Comps:    []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from,
				End:   to,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Provider: p.name, Op: "list_events", Err: err}
	}

	var events []*Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			event, err := fromICalComponent(comp)
			if err != nil {
				continue
			}
			events = append(events, event)
		}
	}
	return events, nil
}

// fromICalComponent はVEVENTコンポーネントを共通イベント表現に変換する。
func fromICalComponent(comp *ical.Component) (*Event, error) {
	uid, err := comp.Props.Text(ical.PropUID)
	if err != nil {
		return nil, err
	}
	start, err := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	if err != nil {
		return nil, err
	}
	end, err := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC)
	if err != nil {
		return nil, err
	}
	summary, _ := comp.Props.Text(ical.PropSummary)
	description, _ := comp.Props.Text(ical.PropDescription)
	location, _ := comp.Props.Text(ical.PropLocation)

	return &Event{
		ID:          uid,
		Title:       summary,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		Location:    location,
	}, nil
}

// toICalCalendar は共通イベント表現をVCALENDARに変換する。
func toICalCalendar(uid string, event *Event) *ical.Calendar {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime)
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//async-calendar//EN")
	cal.Children = append(cal.Children, ve)
	return cal
}

// eventPath はイベントの.icsリソースパスを返す。WebDAVクライアントの
// エンドポイント相対パスに変換する。
func eventPath(endpoint, calPath, uid string) string {
	rel := strings.TrimPrefix(calPath, strings.TrimSuffix(endpoint, "/"))
	return path.Join(rel, fmt.Sprintf("%s.ics", uid))
}

// putEvent はイベントをPUTで作成または上書きする。
func (p *CalDAVProvider) putEvent(ctx context.Context, cal *model.Calendar, uid string, event *Event) error {
	client, webdavClient, endpoint, err := p.clients(cal)
	if err != nil {
		return err
	}
	calPath, err := p.calendarPath(ctx, client, cal)
	if err != nil {
		return err
	}

	writer, err := webdavClient.Create(ctx, eventPath(endpoint, calPath, uid))
	if err != nil {
		return &Error{Kind: KindTransient, Provider: p.name, Op: "put_event", Err: err}
	}
	defer writer.Close()

	if err := ical.NewEncoder(writer).Encode(toICalCalendar(uid, event)); err != nil {
		return &Error{Kind: KindPermanent, Provider: p.name, Op: "encode_event", Err: err}
	}
	return nil
}

// CreateEvent はイベントを作成し、UIDをプロバイダー側イベントIDとして返す。
func (p *CalDAVProvider) CreateEvent(ctx context.Context, cal *model.Calendar, event *Event) (string, error) {
	uid := event.ID
	if uid == "" {
		uid = newEventUID()
	}
	if err := p.putEvent(ctx, cal, uid, event); err != nil {
		return "", err
	}
	return uid, nil
}

// UpdateEvent は同一UIDでPUTし直すことでイベントを更新する。
func (p *CalDAVProvider) UpdateEvent(ctx context.Context, cal *model.Calendar, providerEventID string, event *Event) error {
	return p.putEvent(ctx, cal, providerEventID, event)
}

// DeleteEvent はイベントの.icsリソースを削除する。
func (p *CalDAVProvider) DeleteEvent(ctx context.Context, cal *model.Calendar, providerEventID string) error {
	client, webdavClient, endpoint, err := p.clients(cal)
	if err != nil {
		return err
	}
	calPath, err := p.calendarPath(ctx, client, cal)
	if err != nil {
		return err
	}
	if err := webdavClient.RemoveAll(ctx, eventPath(endpoint, calPath, providerEventID)); err != nil {
		return &Error{Kind: KindTransient, Provider: p.name, Op: "delete_event", Err: err}
	}
	return nil
}

// compile-time interface check
var _ CalendarProvider = (*CalDAVProvider)(nil)
