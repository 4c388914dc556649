// Package countdown runs the live per-auction countdown. When a countdown
// reaches zero the scheduler calls the close function for that auction and
// nothing else.
package countdown

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CloseFunc closes an auction. Errors for which Retryable reports true are
// retried with backoff.
type CloseFunc func(ctx context.Context, auctionID uuid.UUID) error

type Config struct {
	// Window is the full countdown. Zero disables the scheduler.
	Window       time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	CloseTimeout time.Duration
	// Retryable decides whether a failed close is tried again.
	Retryable func(err error) bool
}

type timer struct {
	gen      uint64
	t        *time.Timer
	deadline time.Time
}

type Scheduler struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*timer
	gen    uint64

	closeFn CloseFunc
	cfg     Config
	log     *slog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(closeFn CloseFunc, cfg Config, log *slog.Logger) *Scheduler {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}
	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return true }
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		timers:  make(map[uuid.UUID]*timer),
		closeFn: closeFn,
		cfg:     cfg,
		log:     log.With(slog.String("component", "countdown")),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Scheduler) Enabled() bool {
	return s != nil && s.cfg.Window > 0
}

func (s *Scheduler) Window() time.Duration {
	if !s.Enabled() {
		return 0
	}
	return s.cfg.Window
}

// Arm starts the countdown for auctionID unless one is already running.
func (s *Scheduler) Arm(auctionID uuid.UUID) time.Duration {
	if !s.Enabled() {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[auctionID]; ok {
		return max(t.deadline.Sub(s.now()), 0)
	}

	s.startLocked(auctionID)

	return s.cfg.Window
}

// Reset restarts the countdown at the full window, replacing any running one.
func (s *Scheduler) Reset(auctionID uuid.UUID) time.Duration {
	if !s.Enabled() {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(auctionID)
	s.startLocked(auctionID)

	return s.cfg.Window
}

func (s *Scheduler) Cancel(auctionID uuid.UUID) {
	if !s.Enabled() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(auctionID)
}

// Remaining reports the time left on a running countdown.
func (s *Scheduler) Remaining(auctionID uuid.UUID) (time.Duration, bool) {
	if !s.Enabled() {
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[auctionID]
	if !ok {
		return 0, false
	}

	return max(t.deadline.Sub(s.now()), 0), true
}

// Stop cancels all countdowns and in-flight closes and waits for them.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}

	s.mu.Lock()
	for id := range s.timers {
		s.stopLocked(id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) startLocked(auctionID uuid.UUID) {
	if s.ctx.Err() != nil {
		return
	}

	s.gen++
	gen := s.gen

	s.wg.Add(1)
	s.timers[auctionID] = &timer{
		gen:      gen,
		deadline: s.now().Add(s.cfg.Window),
		t: time.AfterFunc(s.cfg.Window, func() {
			defer s.wg.Done()
			s.fire(auctionID, gen)
		}),
	}
}

func (s *Scheduler) stopLocked(auctionID uuid.UUID) {
	t, ok := s.timers[auctionID]
	if !ok {
		return
	}

	delete(s.timers, auctionID)

	if t.t.Stop() {
		s.wg.Done()
	}
}

func (s *Scheduler) fire(auctionID uuid.UUID, gen uint64) {
	s.mu.Lock()
	t, ok := s.timers[auctionID]
	if !ok || t.gen != gen {
		// Replaced or cancelled after the timer went off.
		s.mu.Unlock()
		return
	}
	delete(s.timers, auctionID)
	s.mu.Unlock()

	log := s.log.With(slog.String("auction_id", auctionID.String()))

	backoff := s.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		err := s.closeOnce(auctionID)
		if err == nil {
			return
		}

		if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
			return
		}

		if attempt >= s.cfg.MaxAttempts || !s.cfg.Retryable(err) {
			log.Error("countdown close failed",
				slog.Int("attempts", attempt),
				slog.Any("err", err),
			)
			return
		}

		log.Warn("countdown close failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("err", err),
		)

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
	}
}

func (s *Scheduler) closeOnce(auctionID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CloseTimeout)
	defer cancel()

	return s.closeFn(ctx, auctionID)
}
