// Package model はドメインモデルを定義する。
package model

// Availability はユーザーが空いている時間帯を表す週次の繰り返しルール。
// 時刻は深夜0時からの分数で保持する（例: 09:00 = 540）。
// 同一曜日に複数ルールを持つことができ、マージはしない。
type Availability struct {
	ID           string
	UserID       string
	DayOfWeek    int // 0-6（月曜-日曜）
	StartMinutes int
	EndMinutes   int
}

// Validate はルールの不変条件を検証する。
// 曜日は0-6、終了時刻は開始時刻より後でなければならない。
func (a *Availability) Validate() error {
	if a.DayOfWeek < 0 || a.DayOfWeek > 6 {
		return NewInvalidDayOfWeekError(a.DayOfWeek)
	}
	if a.StartMinutes < 0 || a.EndMinutes > 24*60 {
		return NewInvalidTimeRangeError()
	}
	if a.EndMinutes <= a.StartMinutes {
		return NewInvalidTimeRangeError()
	}
	return nil
}
