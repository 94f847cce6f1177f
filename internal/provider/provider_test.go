package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

func TestError_Kinds(t *testing.T) {
	transient := &Error{Kind: KindTransient, Provider: "google", Op: "list_events", Err: errors.New("503")}
	permanent := &Error{Kind: KindPermanent, Provider: "google", Op: "list_events", Err: errors.New("401")}
	unsupported := &Error{Kind: KindUnsupported, Provider: "outlook", Op: "list_events"}

	if !IsTransient(transient) {
		t.Error("IsTransient(transient) = false")
	}
	if IsTransient(permanent) {
		t.Error("IsTransient(permanent) = true")
	}
	if !IsPermanent(permanent) {
		t.Error("IsPermanent(permanent) = false")
	}
	if !IsUnsupported(unsupported) {
		t.Error("IsUnsupported(unsupported) = false")
	}
	if IsUnsupported(transient) {
		t.Error("IsUnsupported(transient) = true")
	}
}

func TestError_WrappedKindDetection(t *testing.T) {
	inner := &Error{Kind: KindTransient, Provider: "apple", Op: "list_events", Err: errors.New("timeout")}
	wrapped := errors.Join(errors.New("sync failed"), inner)

	if !IsTransient(wrapped) {
		t.Error("wrapped transient error not detected")
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := &Error{Kind: KindPermanent, Provider: "google", Op: "exchange_code", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is did not find wrapped error")
	}
}

func TestRegistry_GetRegistered(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewOutlookProvider())

	p, err := registry.Get(model.ProviderOutlook)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if p.Name() != model.ProviderOutlook {
		t.Errorf("Name() = %q, want %q", p.Name(), model.ProviderOutlook)
	}
}

func TestRegistry_GetUnknown_ReturnsUnsupported(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("fancycal")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !IsUnsupported(err) {
		t.Errorf("expected unsupported error, got %v", err)
	}
}

func TestOutlookProvider_AllOperationsUnsupported(t *testing.T) {
	p := NewOutlookProvider()
	ctx := context.Background()
	cal := &model.Calendar{ID: "cal-1", Provider: model.ProviderOutlook}
	event := &Event{Title: "MTG", StartTime: time.Now(), EndTime: time.Now().Add(time.Hour)}

	if _, err := p.AuthCodeURL(ctx, "state", "http://localhost/cb"); !IsUnsupported(err) {
		t.Errorf("AuthCodeURL error = %v, want unsupported", err)
	}
	if _, err := p.ExchangeCode(ctx, "code", "http://localhost/cb"); !IsUnsupported(err) {
		t.Errorf("ExchangeCode error = %v, want unsupported", err)
	}
	if err := p.VerifyConnection(ctx, cal); !IsUnsupported(err) {
		t.Errorf("VerifyConnection error = %v, want unsupported", err)
	}
	if _, err := p.ListEvents(ctx, cal, time.Now(), time.Now().Add(time.Hour)); !IsUnsupported(err) {
		t.Errorf("ListEvents error = %v, want unsupported", err)
	}
	if _, err := p.CreateEvent(ctx, cal, event); !IsUnsupported(err) {
		t.Errorf("CreateEvent error = %v, want unsupported", err)
	}
	if err := p.UpdateEvent(ctx, cal, "ev-1", event); !IsUnsupported(err) {
		t.Errorf("UpdateEvent error = %v, want unsupported", err)
	}
	if err := p.DeleteEvent(ctx, cal, "ev-1"); !IsUnsupported(err) {
		t.Errorf("DeleteEvent error = %v, want unsupported", err)
	}
}

func TestCalDAVProvider_OAuthUnsupported(t *testing.T) {
	p := NewAppleProvider()
	ctx := context.Background()

	if _, err := p.AuthCodeURL(ctx, "state", "http://localhost/cb"); !IsUnsupported(err) {
		t.Errorf("AuthCodeURL error = %v, want unsupported", err)
	}
	if _, err := p.ExchangeCode(ctx, "code", "http://localhost/cb"); !IsUnsupported(err) {
		t.Errorf("ExchangeCode error = %v, want unsupported", err)
	}
}

func TestCalDAVProvider_MailcowRequiresEndpoint(t *testing.T) {
	p := NewMailcowProvider(nil, nil)
	cal := &model.Calendar{ID: "cal-1", Provider: model.ProviderMailcow}

	_, err := p.endpointFor(cal)
	if err == nil {
		t.Fatal("expected error for missing endpoint URL")
	}
	if !IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

type rejectAllValidator struct{}

func (rejectAllValidator) Validate(rawURL string) error {
	return errors.New("blocked")
}

func TestCalDAVProvider_MailcowValidatesEndpoint(t *testing.T) {
	p := NewMailcowProvider(rejectAllValidator{}, nil)
	cal := &model.Calendar{
		ID:          "cal-1",
		Provider:    model.ProviderMailcow,
		EndpointURL: "https://mail.example.com/SOGo/dav/",
	}

	_, err := p.endpointFor(cal)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestCalDAVProvider_AppleEndpointFixed(t *testing.T) {
	p := NewAppleProvider()
	cal := &model.Calendar{ID: "cal-1", Provider: model.ProviderApple}

	endpoint, err := p.endpointFor(cal)
	if err != nil {
		t.Fatalf("endpointFor returned error: %v", err)
	}
	if endpoint != appleCalDAVEndpoint {
		t.Errorf("endpoint = %q, want %q", endpoint, appleCalDAVEndpoint)
	}
}

func TestEventPath(t *testing.T) {
	got := eventPath("https://caldav.icloud.com/", "https://caldav.icloud.com/123/calendars/home", "uid-1")
	want := "/123/calendars/home/uid-1.ics"
	if got != want {
		t.Errorf("eventPath = %q, want %q", got, want)
	}
}

func TestEventPath_RelativeCalendarPath(t *testing.T) {
	got := eventPath("https://mail.example.com/SOGo/dav/", "/SOGo/dav/user/Calendar/personal", "uid-2")
	want := "/SOGo/dav/user/Calendar/personal/uid-2.ics"
	if got != want {
		t.Errorf("eventPath = %q, want %q", got, want)
	}
}

func TestToICalCalendar_SetsRequiredProps(t *testing.T) {
	event := &Event{
		Title:       "設計レビュー",
		Description: "議題あり",
		StartTime:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
		Location:    "会議室A",
	}

	cal := toICalCalendar("uid-123", event)
	if len(cal.Children) != 1 {
		t.Fatalf("expected 1 component, got %d", len(cal.Children))
	}

	ve := cal.Children[0]
	uid, err := ve.Props.Text("UID")
	if err != nil || uid != "uid-123" {
		t.Errorf("UID = %q (err=%v), want %q", uid, err, "uid-123")
	}
	summary, _ := ve.Props.Text("SUMMARY")
	if summary != "設計レビュー" {
		t.Errorf("SUMMARY = %q", summary)
	}
	location, _ := ve.Props.Text("LOCATION")
	if location != "会議室A" {
		t.Errorf("LOCATION = %q", location)
	}
}
