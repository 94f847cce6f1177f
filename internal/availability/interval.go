// Package availability は空き時間ルールの展開とビジー区間の集合演算を提供する。
package availability

import (
	"sort"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

// Interval は半開区間 [Start, End) の時間帯を表す。
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZeroLength は区間の長さがゼロ以下かを返す。
func (iv Interval) IsZeroLength() bool {
	return !iv.End.After(iv.Start)
}

// Overlaps は2つの区間が重なるかを返す。接しているだけの場合は重ならない。
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// MergeBusy はビジー区間をマージして開始時刻昇順の重複なし区間列を返す。
// 接している区間（next.Start == cur.End）もひとつにまとめる。
// 入力の順序には依存せず、冪等に動作する。
func MergeBusy(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.IsZeroLength() {
			continue
		}
		sorted = append(sorted, iv)
	}
	if len(sorted) == 0 {
		return nil
	}

	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Subtract は利用可能区間からビジー区間を差し引いた区間列を返す。
// busyはMergeBusy済み（ソート・重複なし）であることを前提とする。
// 長さゼロの区間は結果に含めない。
func Subtract(available, busy []Interval) []Interval {
	var result []Interval
	for _, avail := range available {
		if avail.IsZeroLength() {
			continue
		}
		cursor := avail.Start
		for _, b := range busy {
			if !b.End.After(cursor) {
				continue
			}
			if !b.Start.Before(avail.End) {
				break
			}
			if b.Start.After(cursor) {
				result = append(result, Interval{Start: cursor, End: b.Start})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
			if !cursor.Before(avail.End) {
				break
			}
		}
		if cursor.Before(avail.End) {
			result = append(result, Interval{Start: cursor, End: avail.End})
		}
	}
	return result
}

// Intersect は2つのソート済み区間列の共通部分を返す。
func Intersect(a, b []Interval) []Interval {
	var result []Interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := a[i].Start
		if b[j].Start.After(start) {
			start = b[j].Start
		}
		end := a[i].End
		if b[j].End.Before(end) {
			end = b[j].End
		}
		if end.After(start) {
			result = append(result, Interval{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return result
}

// ruleDayOfWeek はtime.Weekday（日曜=0）を月曜始まりの0-6に変換する。
func ruleDayOfWeek(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// ExpandRules は週次繰り返しの空き時間ルールを期間[from, to)内の具体的な区間に展開する。
// ルールの時刻はUTCで解釈する。期間境界をまたぐ区間は境界でクリップし、
// クリップの結果長さゼロになった区間は捨てる。
func ExpandRules(rules []*model.Availability, from, to time.Time) []Interval {
	if !to.After(from) || len(rules) == 0 {
		return nil
	}

	rulesByDay := make(map[int][]*model.Availability)
	for _, rule := range rules {
		rulesByDay[rule.DayOfWeek] = append(rulesByDay[rule.DayOfWeek], rule)
	}

	var intervals []Interval
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for day.Before(to) {
		for _, rule := range rulesByDay[ruleDayOfWeek(day.Weekday())] {
			start := day.Add(time.Duration(rule.StartMinutes) * time.Minute)
			end := day.Add(time.Duration(rule.EndMinutes) * time.Minute)
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			if end.After(start) {
				intervals = append(intervals, Interval{Start: start, End: end})
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})
	return intervals
}
