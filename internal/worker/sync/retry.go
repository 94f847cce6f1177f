package sync

import (
	"fmt"
	"time"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/model"
)

const (
	// initialBackoff は指数バックオフの初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
)

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplySuccess は同期成功時にカレンダーの状態をリセットする。
// 連続エラー回数を0に戻し、last_synced_atを記録し、
// intervalMinutesに基づいてnext_sync_atを設定する。
func ApplySuccess(cal *model.Calendar, intervalMinutes int) {
	now := time.Now()
	cal.SyncStatus = model.SyncStatusActive
	cal.ConsecutiveErrors = 0
	cal.ErrorMessage = ""
	cal.NextSyncAt = now.Add(time.Duration(intervalMinutes) * time.Minute)
	cal.LastSyncedAt = &now
	cal.UpdatedAt = now
}

// ApplyBackoff は一時的な障害に対してバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフでnext_sync_atを設定する。
// sync_statusはactiveのままで、次回以降も同期を試行する。
func ApplyBackoff(cal *model.Calendar, reason string) {
	cal.ConsecutiveErrors++
	cal.ErrorMessage = fmt.Sprintf("同期失敗 (%d回連続): %s", cal.ConsecutiveErrors, reason)
	delay := CalculateBackoff(cal.ConsecutiveErrors - 1)
	cal.NextSyncAt = time.Now().Add(delay)
	cal.UpdatedAt = time.Now()
}

// ApplyPermanentFailure は恒久的な障害でカレンダーの同期を停止する。
// 認証失敗など、リトライしても回復しない場合に使用する。
// ユーザーが再接続または手動同期するまで同期対象から外れる。
func ApplyPermanentFailure(cal *model.Calendar, reason string) {
	cal.SyncStatus = model.SyncStatusError
	cal.ErrorMessage = reason
	cal.UpdatedAt = time.Now()
}

// ApplyStopSync はプロバイダー非対応などの理由で同期を停止する。
func ApplyStopSync(cal *model.Calendar, reason string) {
	cal.SyncStatus = model.SyncStatusStopped
	cal.ErrorMessage = reason
	cal.UpdatedAt = time.Now()
}
