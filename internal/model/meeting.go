// Package model はドメインモデルを定義する。
package model

import "time"

// MeetingType はミーティングの形式を表す。
type MeetingType string

const (
	// MeetingTypeVirtual はオンラインミーティング。
	MeetingTypeVirtual MeetingType = "virtual"
	// MeetingTypeInPerson は対面ミーティング。
	MeetingTypeInPerson MeetingType = "in_person"
)

// Meeting はスケジュールされたミーティングを表す。
// 作成者のカレンダーに属し、外部プロバイダー側イベントとしてミラーされる。
// ProviderEventIDが空の場合はミラー未作成（unmirrored）状態。
type Meeting struct {
	ID                     string
	Title                  string
	Description            string
	StartTime              time.Time
	EndTime                time.Time
	CreatorID              string
	CalendarID             string
	TeamID                 string // 任意。空文字はチーム未関連。
	MeetingType            MeetingType
	Location               string
	VirtualMeetingProvider string
	VirtualMeetingURL      string
	ProviderEventID        string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Validate はミーティングの不変条件を検証する。
// 終了時刻は開始時刻より厳密に後であること。
// 対面ミーティングは場所が必須、オンラインミーティングはプロバイダーとURLが必須。
func (m *Meeting) Validate() error {
	if !m.EndTime.After(m.StartTime) {
		return NewInvalidTimeRangeError()
	}

	switch m.MeetingType {
	case MeetingTypeInPerson:
		if m.Location == "" {
			return NewLocationRequiredError()
		}
	case MeetingTypeVirtual:
		if m.VirtualMeetingProvider == "" || m.VirtualMeetingURL == "" {
			return NewVirtualMeetingInfoRequiredError()
		}
	default:
		return NewInvalidMeetingTypeError(string(m.MeetingType))
	}

	return nil
}

// RouteTimeEvent はミーティング前後の移動時間バッファを表す。
// ミーティング作成時に派生生成され、親ミーティングの時刻変更に追従して再計算される。
type RouteTimeEvent struct {
	ID              string
	MeetingID       string
	UserID          string
	IsBefore        bool // true=ミーティング前、false=ミーティング後
	DurationMinutes int
	StartTime       time.Time
	EndTime         time.Time
	ProviderEventID string
}
