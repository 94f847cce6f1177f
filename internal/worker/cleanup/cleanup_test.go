package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// mockSessionDeleter はExpiredSessionDeleterのテスト用モック。
type mockSessionDeleter struct {
	deleteExpiredFn func(ctx context.Context) (int64, error)
}

func (m *mockSessionDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return 0, nil
}

var _ ExpiredSessionDeleter = (*mockSessionDeleter)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_DeletesExpiredSessions(t *testing.T) {
	called := false
	deleter := &mockSessionDeleter{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			called = true
			return 7, nil
		},
	}
	job := NewCleanupJob(deleter, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Error("DeleteExpiredが呼ばれるべき")
	}
}

func TestRun_NoExpiredSessions(t *testing.T) {
	deleter := &mockSessionDeleter{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 0, nil
		},
	}
	job := NewCleanupJob(deleter, testLogger())

	// 削除対象がなくてもエラーにならない（冪等）
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestRun_DeleteFailureReturnsError(t *testing.T) {
	deleter := &mockSessionDeleter{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	job := NewCleanupJob(deleter, testLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Error("削除失敗はエラーを返すべき")
	}
}

func TestStart_RunsPeriodicallyAndStopsOnCancel(t *testing.T) {
	var count int32
	deleter := &mockSessionDeleter{
		deleteExpiredFn: func(ctx context.Context) (int64, error) {
			atomic.AddInt32(&count, 1)
			return 0, nil
		},
	}
	job := NewCleanupJob(deleter, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ジョブがコンテキストキャンセルで停止すべき")
	}

	// 起動直後の1回 + ティック数回
	if got := atomic.LoadInt32(&count); got < 2 {
		t.Errorf("実行回数 = %d, want >= 2", got)
	}
}
