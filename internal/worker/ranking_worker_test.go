package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/persistence"
	"github.com/oasis-community/opsbot/internal/service"
)

type stubRefresher struct {
	calls atomic.Int32
	fn    func(call int32) (service.RefreshOutcome, error)
}

func (s *stubRefresher) Refresh(ctx context.Context) (service.RefreshOutcome, error) {
	n := s.calls.Add(1)
	if s.fn != nil {
		return s.fn(n)
	}
	return service.RefreshUpdated, nil
}

type stubLocker struct {
	mu       sync.Mutex
	err      error
	released int
}

func (l *stubLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.released++
		return nil
	}, nil
}

func TestTickRecoversFromPanicAndErrors(t *testing.T) {
	r := &stubRefresher{fn: func(call int32) (service.RefreshOutcome, error) {
		switch call {
		case 1:
			panic("render exploded")
		case 2:
			return service.RefreshFailed, errors.New("db down")
		}
		return service.RefreshUpdated, nil
	}}
	w := NewRankingWorker(r, nil, time.Minute, nil, zap.NewNop())

	assert.NotPanics(t, func() { w.Tick(context.Background()) })
	w.Tick(context.Background())
	w.Tick(context.Background())
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	r := &stubRefresher{}
	w := NewRankingWorker(r, &stubLocker{err: persistence.ErrLockHeld}, time.Minute, nil, zap.NewNop())
	w.Tick(context.Background())
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestTickReleasesLock(t *testing.T) {
	r := &stubRefresher{}
	l := &stubLocker{}
	w := NewRankingWorker(r, l, time.Minute, nil, zap.NewNop())
	w.Tick(context.Background())
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, 1, l.released)
}

func TestTickProceedsWhenLockBackendFails(t *testing.T) {
	r := &stubRefresher{}
	w := NewRankingWorker(r, &stubLocker{err: errors.New("connection refused")}, time.Minute, nil, zap.NewNop())
	w.Tick(context.Background())
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestTickSkipsOverlap(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	r := &stubRefresher{fn: func(call int32) (service.RefreshOutcome, error) {
		if call == 1 {
			close(entered)
			<-unblock
		}
		return service.RefreshUpdated, nil
	}}
	w := NewRankingWorker(r, nil, time.Minute, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Tick(context.Background())
		close(done)
	}()
	<-entered
	w.Tick(context.Background())
	close(unblock)
	<-done
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	r := &stubRefresher{}
	w := NewRankingWorker(r, nil, 5*time.Millisecond, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	require.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
