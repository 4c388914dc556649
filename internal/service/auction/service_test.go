package auction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
	"github.com/kirinyoku/tix-auction/internal/repository/memory"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu           sync.Mutex
	participants [][]uuid.UUID
	bids         []BidUpdate
	closed       []domain.SettlementResult
	failed       []error
}

func (n *recordingNotifier) ParticipantsChanged(_ context.Context, _ uuid.UUID, p []uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.participants = append(n.participants, p)
}

func (n *recordingNotifier) BidAccepted(_ context.Context, u BidUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bids = append(n.bids, u)
}

func (n *recordingNotifier) AuctionClosed(_ context.Context, res domain.SettlementResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, res)
}

func (n *recordingNotifier) AuctionCloseFailed(_ context.Context, _ uuid.UUID, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, err)
}

type recordingCountdown struct {
	mu     sync.Mutex
	armed  int
	resets int
	cancel int
}

func (c *recordingCountdown) Arm(uuid.UUID) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed++
	return 30 * time.Second
}

func (c *recordingCountdown) Reset(uuid.UUID) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	return 30 * time.Second
}

func (c *recordingCountdown) Cancel(uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel++
}

type recordingArchiver struct {
	mu       sync.Mutex
	receipts []domain.SettlementResult
}

func (a *recordingArchiver) Archive(_ context.Context, res domain.SettlementResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts = append(a.receipts, res)
	return nil
}

type harness struct {
	svc       *Service
	store     *memory.Store
	clock     *clock
	notifier  *recordingNotifier
	countdown *recordingCountdown
	archiver  *recordingArchiver

	organizer uuid.UUID
	bidders   []uuid.UUID
	event     uuid.UUID
	ticket    uuid.UUID
}

func newHarness(t *testing.T, bidders int) *harness {
	t.Helper()

	h := &harness{
		store:     memory.NewStore(),
		clock:     &clock{now: time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC)},
		notifier:  &recordingNotifier{},
		countdown: &recordingCountdown{},
		archiver:  &recordingArchiver{},
		organizer: uuid.New(),
		event:     uuid.New(),
		ticket:    uuid.New(),
	}

	h.store.PutUser(domain.User{ID: h.organizer, DisplayName: "organizer"})
	for i := 0; i < bidders; i++ {
		id := uuid.New()
		h.store.PutUser(domain.User{ID: id, DisplayName: string(rune('A' + i))})
		h.bidders = append(h.bidders, id)
	}
	h.store.PutEvent(domain.Event{ID: h.event, Title: "Concert"})
	h.store.PutTicket(domain.Ticket{
		ID: h.ticket, EventID: h.event, OwnerID: h.organizer,
		Seat: "C-12", PriceCents: 8000, IsResale: true,
	})

	h.svc = New(Deps{
		Store:     h.store,
		Notifier:  h.notifier,
		Countdown: h.countdown,
		Archiver:  h.archiver,
		Now:       h.clock.Now,
	}, Config{})

	return h
}

// use rebuilds the service on top of store, keeping the recorders.
func (h *harness) use(store repository.Transactor) {
	h.svc = New(Deps{
		Store:     store,
		Notifier:  h.notifier,
		Countdown: h.countdown,
		Archiver:  h.archiver,
		Now:       h.clock.Now,
	}, Config{})
}

// commitFailingStore fails the commit of the next transaction after its body
// succeeded. Nothing the body wrote is kept.
type commitFailingStore struct {
	*memory.Store
	failNext atomic.Bool
}

var errCommit = errors.New("commit: connection reset by peer")

func (s *commitFailingStore) RunTx(ctx context.Context, opts *repository.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.RunTx(ctx, opts, func(ctx context.Context, tx repository.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if s.failNext.CompareAndSwap(true, false) {
			return errCommit
		}
		return nil
	})
}

// gatedStore holds the next transaction until release is closed.
type gatedStore struct {
	*memory.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) RunTx(ctx context.Context, opts *repository.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.Store.RunTx(ctx, opts, fn)
}

func (h *harness) create(t *testing.T, startingBid int64) *domain.Auction {
	t.Helper()

	a, err := h.svc.Create(context.Background(), CreateInput{
		OrganizerID: h.organizer,
		TicketID:    h.ticket,
		StartingBid: startingBid,
		AuctionEnd:  h.clock.Now().Add(time.Hour),
	})
	assert.NoError(t, err)

	return a
}

func TestBiddingScenario(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	a := h.create(t, 1000)
	alice, bob, carol := h.bidders[0], h.bidders[1], h.bidders[2]

	got, err := h.svc.PlaceBid(ctx, a.ID, alice, 1200)
	assert.NoError(t, err)
	check.Equal(t, int64(1200), got.CurrentBid)
	check.Equal(t, alice, *got.HighestBidder)

	_, err = h.svc.PlaceBid(ctx, a.ID, bob, 1100)
	check.True(t, errors.Is(err, ErrBidTooLow))
	var tooLow BidTooLowError
	assert.True(t, errors.As(err, &tooLow))
	check.Equal(t, int64(1200), tooLow.Floor)

	got, err = h.svc.PlaceBid(ctx, a.ID, carol, 1500)
	assert.NoError(t, err)
	check.Equal(t, int64(1500), got.CurrentBid)
	check.Equal(t, carol, *got.HighestBidder)

	res, err := h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)
	check.False(t, res.AlreadyClosed)
	check.Equal(t, carol, *res.Winner)
	check.Equal(t, "C", res.WinnerName)
	check.Equal(t, int64(1500), res.FinalPrice)
	check.Equal(t, domain.TriggerForced, res.Trigger)

	ticket, err := h.store.Tickets().Get(ctx, h.ticket)
	assert.NoError(t, err)
	check.Equal(t, carol, ticket.OwnerID)
	check.False(t, ticket.IsResale)
	check.False(t, ticket.InAuction)

	won, err := h.store.WonAuctions().GetByAuction(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, carol, won.WinnerID)
	check.Equal(t, int64(1500), won.WinningBid)

	bids, err := h.svc.Bids(ctx, a.ID, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(bids))
	check.Equal(t, int64(1500), bids[0].Amount)
	check.Equal(t, int64(1200), bids[1].Amount)

	board, err := h.svc.Leaderboard(ctx, a.ID, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(board))
	check.Equal(t, carol, board[0].BidderID)
	check.Equal(t, alice, board[1].BidderID)

	check.Equal(t, 2, len(h.notifier.bids))
	check.Equal(t, "C", h.notifier.bids[1].HighestBidderName)
	check.Equal(t, 2, h.countdown.resets)
	check.Equal(t, 1, len(h.notifier.closed))
	check.Equal(t, 1, len(h.archiver.receipts))
}

func TestBidMustExceedStartingBid(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 1000)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 1000)
	var tooLow BidTooLowError
	assert.True(t, errors.As(err, &tooLow))
	check.Equal(t, int64(1000), tooLow.Floor)

	_, err = h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 1001)
	check.NoError(t, err)
}

func TestEqualBidIsRejected(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 500)
	assert.NoError(t, err)

	_, err = h.svc.PlaceBid(ctx, a.ID, h.bidders[1], 500)
	check.True(t, errors.Is(err, ErrBidTooLow))

	got, err := h.svc.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, h.bidders[0], *got.HighestBidder)
	check.Equal(t, 1, h.countdown.resets)
}

func TestPlaceBidValidation(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 0)
	check.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = h.svc.PlaceBid(ctx, a.ID, h.bidders[0], -5)
	check.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = h.svc.PlaceBid(ctx, uuid.New(), h.bidders[0], 500)
	check.True(t, errors.Is(err, ErrAuctionNotFound))

	_, err = h.svc.PlaceBid(ctx, a.ID, uuid.New(), 500)
	check.True(t, errors.Is(err, ErrUserNotFound))

	check.Equal(t, 0, len(h.notifier.bids))
}

func TestBidAfterDeadlineIsRejected(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	h.clock.Advance(time.Hour)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 500)
	check.True(t, errors.Is(err, ErrAlreadyEnded))

	_, err = h.svc.Join(ctx, a.ID, h.bidders[0])
	check.True(t, errors.Is(err, ErrAlreadyEnded))
}

func TestBidOnClosedAuctionIsRejected(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)

	_, err = h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 500)
	check.True(t, errors.Is(err, ErrAlreadyEnded))

	bids, err := h.svc.Bids(ctx, a.ID, 0)
	assert.NoError(t, err)
	check.Equal(t, 0, len(bids))
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	a := h.create(t, 100)

	added, err := h.svc.Join(ctx, a.ID, h.bidders[0])
	assert.NoError(t, err)
	check.True(t, added)

	added, err = h.svc.Join(ctx, a.ID, h.bidders[0])
	assert.NoError(t, err)
	check.False(t, added)

	added, err = h.svc.Join(ctx, a.ID, h.bidders[1])
	assert.NoError(t, err)
	check.True(t, added)

	got, err := h.svc.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, []uuid.UUID{h.bidders[0], h.bidders[1]}, got.Participants)

	assert.Equal(t, 2, len(h.notifier.participants))
	check.Equal(t, []uuid.UUID{h.bidders[0], h.bidders[1]}, h.notifier.participants[1])
	check.Equal(t, 3, h.countdown.armed)
}

func TestJoinErrors(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.Join(ctx, uuid.New(), h.bidders[0])
	check.True(t, errors.Is(err, ErrAuctionNotFound))

	_, err = h.svc.Join(ctx, a.ID, uuid.New())
	check.True(t, errors.Is(err, ErrUserNotFound))

	_, err = h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)

	_, err = h.svc.Join(ctx, a.ID, h.bidders[0])
	check.True(t, errors.Is(err, ErrAlreadyEnded))
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 900)
	assert.NoError(t, err)

	first, err := h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)
	check.False(t, first.AlreadyClosed)

	second, err := h.svc.Close(ctx, a.ID, domain.TriggerDeadlineExpired)
	assert.NoError(t, err)
	check.True(t, second.AlreadyClosed)
	check.Equal(t, h.bidders[0], *second.Winner)
	check.Equal(t, int64(900), second.FinalPrice)
	check.Equal(t, first.WinnerName, second.WinnerName)

	check.Equal(t, 1, len(h.notifier.closed))
	check.Equal(t, 1, len(h.archiver.receipts))
	check.Equal(t, []uuid.UUID{h.ticket}, h.store.OwnedTickets(h.bidders[0]))
}

func TestConcurrentClosesSettleOnce(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 900)
	assert.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trigger := domain.TriggerForced
			if i%2 == 0 {
				trigger = domain.TriggerDeadlineExpired
			}
			_, err := h.svc.Close(ctx, a.ID, trigger)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		check.NoError(t, err)
	}

	check.Equal(t, 1, len(h.notifier.closed))
	check.Equal(t, 1, len(h.archiver.receipts))

	won, err := h.store.WonAuctions().GetByAuction(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, h.bidders[0], won.WinnerID)
}

func TestCloseWithoutBids(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	res, err := h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)
	check.False(t, res.HasWinner())
	check.Equal(t, int64(0), res.FinalPrice)

	ticket, err := h.store.Tickets().Get(ctx, h.ticket)
	assert.NoError(t, err)
	check.Equal(t, h.organizer, ticket.OwnerID)
	check.False(t, ticket.InAuction)

	_, err = h.store.WonAuctions().GetByAuction(ctx, a.ID)
	check.True(t, errors.Is(err, repository.ErrNotFound))

	got, err := h.svc.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.True(t, got.IsEnded)
	check.Equal(t, domain.AuctionClosed, got.State())
}

func TestSettlementFailureKeepsAuctionOpen(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 900)
	assert.NoError(t, err)

	h.store.FailNext("Tickets.TransferOwnership", errors.New("ticket service down"))

	_, err = h.svc.Close(ctx, a.ID, domain.TriggerForced)
	check.True(t, errors.Is(err, ErrSettlementFailed))

	got, err := h.svc.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.False(t, got.IsEnded)
	check.Equal(t, int64(900), got.CurrentBid)

	_, err = h.store.WonAuctions().GetByAuction(ctx, a.ID)
	check.True(t, errors.Is(err, repository.ErrNotFound))

	check.Equal(t, 1, len(h.notifier.failed))
	check.Equal(t, 0, len(h.notifier.closed))
	check.Equal(t, 0, len(h.archiver.receipts))

	res, err := h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)
	check.False(t, res.AlreadyClosed)
	check.Equal(t, h.bidders[0], *res.Winner)

	ticket, err := h.store.Tickets().Get(ctx, h.ticket)
	assert.NoError(t, err)
	check.Equal(t, h.bidders[0], ticket.OwnerID)
}

func TestCommitFailureIsSettlementFailure(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	store := &commitFailingStore{Store: h.store}
	h.use(store)
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 900)
	assert.NoError(t, err)

	store.failNext.Store(true)
	_, err = h.svc.Close(ctx, a.ID, domain.TriggerDeadlineExpired)
	check.True(t, errors.Is(err, ErrSettlementFailed))
	check.True(t, errors.Is(err, errCommit))

	got, err := h.svc.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.False(t, got.IsEnded)

	ticket, err := h.store.Tickets().Get(ctx, h.ticket)
	assert.NoError(t, err)
	check.Equal(t, h.organizer, ticket.OwnerID)

	h.notifier.mu.Lock()
	check.Equal(t, 1, len(h.notifier.failed))
	check.Equal(t, 0, len(h.notifier.closed))
	h.notifier.mu.Unlock()
	check.Equal(t, 0, len(h.archiver.receipts))

	res, err := h.svc.Close(ctx, a.ID, domain.TriggerDeadlineExpired)
	assert.NoError(t, err)
	check.False(t, res.AlreadyClosed)
	check.Equal(t, h.bidders[0], *res.Winner)
}

func TestCloseOutlivesCancelledCaller(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	store := &gatedStore{
		Store:   h.store,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h.use(store)
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 900)
	assert.NoError(t, err)

	callerCtx, cancel := context.WithCancel(ctx)
	callerErr := make(chan error, 1)
	store.armed.Store(true)
	go func() {
		_, err := h.svc.Close(callerCtx, a.ID, domain.TriggerDeadlineExpired)
		callerErr <- err
	}()

	<-store.entered
	cancel()
	check.True(t, errors.Is(<-callerErr, context.Canceled))

	close(store.release)

	// The shared settlement run finishes on its own.
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := h.svc.Get(ctx, a.ID)
		assert.NoError(t, err)
		if got.IsEnded {
			break
		}
		assert.True(t, time.Now().Before(deadline))
		time.Sleep(5 * time.Millisecond)
	}

	res, err := h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)
	check.True(t, res.AlreadyClosed)
	check.Equal(t, h.bidders[0], *res.Winner)

	h.notifier.mu.Lock()
	check.Equal(t, 1, len(h.notifier.closed))
	check.Equal(t, 0, len(h.notifier.failed))
	h.notifier.mu.Unlock()
}

func TestCloseJoinerSurvivesCancelledLeader(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	store := &gatedStore{
		Store:   h.store,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h.use(store)
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 900)
	assert.NoError(t, err)

	leaderCtx, cancel := context.WithCancel(ctx)
	leaderErr := make(chan error, 1)
	store.armed.Store(true)
	go func() {
		_, err := h.svc.Close(leaderCtx, a.ID, domain.TriggerDeadlineExpired)
		leaderErr <- err
	}()
	<-store.entered

	type outcome struct {
		res *domain.SettlementResult
		err error
	}
	joined := make(chan outcome, 1)
	go func() {
		res, err := h.svc.Close(ctx, a.ID, domain.TriggerForced)
		joined <- outcome{res, err}
	}()

	cancel()
	check.True(t, errors.Is(<-leaderErr, context.Canceled))
	close(store.release)

	got := <-joined
	assert.NoError(t, got.err)
	check.Equal(t, h.bidders[0], *got.res.Winner)
	check.Equal(t, int64(900), got.res.FinalPrice)

	h.notifier.mu.Lock()
	check.Equal(t, 1, len(h.notifier.closed))
	check.Equal(t, 0, len(h.notifier.failed))
	h.notifier.mu.Unlock()
}

func TestFailedLedgerAppendLeavesNoTrace(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	h.store.FailNext("Bids.Append", errors.New("disk full"))

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 900)
	check.Error(t, err)

	got, err := h.svc.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(0), got.CurrentBid)
	check.Nil(t, got.HighestBidder)
	check.Equal(t, 0, h.countdown.resets)
	check.Equal(t, 0, len(h.notifier.bids))
}

func TestCloseRejectsUnknownTrigger(t *testing.T) {
	h := newHarness(t, 1)
	a := h.create(t, 100)

	_, err := h.svc.Close(context.Background(), a.ID, domain.CloseTrigger("bored"))
	check.True(t, errors.Is(err, ErrInvalidTrigger))

	_, err = h.svc.Close(context.Background(), uuid.New(), domain.TriggerForced)
	check.True(t, errors.Is(err, ErrAuctionNotFound))
}

func TestCloseExpired(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 300)
	assert.NoError(t, err)

	n, err := h.svc.CloseExpired(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, n)

	h.clock.Advance(time.Hour)

	n, err = h.svc.CloseExpired(ctx)
	assert.NoError(t, err)
	check.Equal(t, 1, n)

	assert.Equal(t, 1, len(h.notifier.closed))
	check.Equal(t, domain.TriggerDeadlineExpired, h.notifier.closed[0].Trigger)

	n, err = h.svc.CloseExpired(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, n)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	end := h.clock.Now().Add(time.Hour)

	_, err := h.svc.Create(ctx, CreateInput{OrganizerID: h.organizer, TicketID: h.ticket, StartingBid: 0, AuctionEnd: end})
	check.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = h.svc.Create(ctx, CreateInput{OrganizerID: h.organizer, TicketID: h.ticket, StartingBid: 100, AuctionEnd: h.clock.Now()})
	check.True(t, errors.Is(err, ErrInvalidDeadline))

	_, err = h.svc.Create(ctx, CreateInput{OrganizerID: h.organizer, TicketID: uuid.New(), StartingBid: 100, AuctionEnd: end})
	check.True(t, errors.Is(err, ErrTicketNotFound))

	_, err = h.svc.Create(ctx, CreateInput{OrganizerID: h.bidders[0], TicketID: h.ticket, StartingBid: 100, AuctionEnd: end})
	check.True(t, errors.Is(err, ErrTicketNotOwned))

	a, err := h.svc.Create(ctx, CreateInput{OrganizerID: h.organizer, TicketID: h.ticket, StartingBid: 100, AuctionEnd: end})
	assert.NoError(t, err)
	check.Equal(t, "C-12", a.Seat)
	check.Equal(t, h.event, a.EventID)

	_, err = h.svc.Create(ctx, CreateInput{OrganizerID: h.organizer, TicketID: h.ticket, StartingBid: 100, AuctionEnd: end})
	check.True(t, errors.Is(err, ErrTicketInAuction))

	ticket, err := h.store.Tickets().Get(ctx, h.ticket)
	assert.NoError(t, err)
	check.True(t, ticket.InAuction)
}

func TestListFiltersEnded(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	a := h.create(t, 100)

	_, err := h.svc.PlaceBid(ctx, a.ID, h.bidders[0], 250)
	assert.NoError(t, err)

	items, err := h.svc.List(ctx, false)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(items))
	check.Equal(t, "Concert", items[0].EventTitle)
	check.Equal(t, "organizer", items[0].OrganizerName)
	check.Equal(t, "A", items[0].HighestBidderName)

	_, err = h.svc.Close(ctx, a.ID, domain.TriggerForced)
	assert.NoError(t, err)

	items, err = h.svc.List(ctx, false)
	assert.NoError(t, err)
	check.Equal(t, 0, len(items))

	items, err = h.svc.List(ctx, true)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(items))
	check.True(t, items[0].IsEnded)
}
