package countdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type recorder struct {
	mu    sync.Mutex
	calls map[uuid.UUID]int
	fired chan uuid.UUID
	fail  atomic.Int32
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[uuid.UUID]int), fired: make(chan uuid.UUID, 16)}
}

func (r *recorder) close(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	r.calls[id]++
	r.mu.Unlock()

	if r.fail.Add(-1) >= 0 {
		return errors.New("settlement failed")
	}

	r.fired <- id
	return nil
}

func (r *recorder) count(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func waitFired(t *testing.T, ch <-chan uuid.UUID, want uuid.UUID) {
	t.Helper()
	select {
	case got := <-ch:
		check.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not fire")
	}
}

func TestArmFiresOnce(t *testing.T) {
	rec := newRecorder()
	s := New(rec.close, Config{Window: 20 * time.Millisecond}, nil)
	defer s.Stop()

	id := uuid.New()
	check.Equal(t, 20*time.Millisecond, s.Arm(id))

	// Arming again does not restart or stack timers.
	s.Arm(id)
	s.Arm(id)

	waitFired(t, rec.fired, id)

	time.Sleep(50 * time.Millisecond)
	check.Equal(t, 1, rec.count(id))

	_, running := s.Remaining(id)
	check.False(t, running)
}

func TestResetPostponesClose(t *testing.T) {
	rec := newRecorder()
	s := New(rec.close, Config{Window: 80 * time.Millisecond}, nil)
	defer s.Stop()

	id := uuid.New()
	start := time.Now()
	s.Arm(id)

	time.Sleep(50 * time.Millisecond)
	s.Reset(id)

	remaining, running := s.Remaining(id)
	check.True(t, running)
	check.True(t, remaining > 50*time.Millisecond)

	waitFired(t, rec.fired, id)
	check.True(t, time.Since(start) >= 120*time.Millisecond)
	check.Equal(t, 1, rec.count(id))
}

func TestCancelPreventsClose(t *testing.T) {
	rec := newRecorder()
	s := New(rec.close, Config{Window: 20 * time.Millisecond}, nil)
	defer s.Stop()

	id := uuid.New()
	s.Arm(id)
	s.Cancel(id)

	time.Sleep(60 * time.Millisecond)
	check.Equal(t, 0, rec.count(id))
}

func TestFailedCloseIsRetried(t *testing.T) {
	rec := newRecorder()
	rec.fail.Store(2)

	s := New(rec.close, Config{
		Window:       10 * time.Millisecond,
		MaxAttempts:  5,
		RetryBackoff: 5 * time.Millisecond,
	}, nil)
	defer s.Stop()

	id := uuid.New()
	s.Arm(id)

	waitFired(t, rec.fired, id)
	check.Equal(t, 3, rec.count(id))
}

func TestRetriesStopAtMaxAttempts(t *testing.T) {
	rec := newRecorder()
	rec.fail.Store(100)

	s := New(rec.close, Config{
		Window:       10 * time.Millisecond,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	}, nil)

	id := uuid.New()
	s.Arm(id)

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	check.Equal(t, 3, rec.count(id))
}

func TestNonRetryableErrorIsNotRetried(t *testing.T) {
	rec := newRecorder()
	rec.fail.Store(100)

	s := New(rec.close, Config{
		Window:       10 * time.Millisecond,
		RetryBackoff: time.Millisecond,
		Retryable:    func(error) bool { return false },
	}, nil)

	id := uuid.New()
	s.Arm(id)

	time.Sleep(60 * time.Millisecond)
	s.Stop()

	check.Equal(t, 1, rec.count(id))
}

func TestDisabledScheduler(t *testing.T) {
	rec := newRecorder()
	s := New(rec.close, Config{}, nil)
	defer s.Stop()

	id := uuid.New()
	check.False(t, s.Enabled())
	check.Equal(t, time.Duration(0), s.Arm(id))
	check.Equal(t, time.Duration(0), s.Reset(id))

	_, running := s.Remaining(id)
	check.False(t, running)
}

func TestStopCancelsPending(t *testing.T) {
	rec := newRecorder()
	s := New(rec.close, Config{Window: 30 * time.Millisecond}, nil)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		s.Arm(id)
	}

	s.Stop()
	time.Sleep(60 * time.Millisecond)

	for _, id := range ids {
		check.Equal(t, 0, rec.count(id))
	}

	// Arming after Stop is ignored.
	s.Arm(ids[0])
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count(ids[0]))
}
