package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/countdown"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository/memory"
	"github.com/kirinyoku/tix-auction/internal/service/auction"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type closedNotifier struct {
	mu     sync.Mutex
	closed chan domain.SettlementResult
	failed int
}

func (n *closedNotifier) ParticipantsChanged(context.Context, uuid.UUID, []uuid.UUID) {}
func (n *closedNotifier) BidAccepted(context.Context, auction.BidUpdate)               {}

func (n *closedNotifier) AuctionClosed(_ context.Context, res domain.SettlementResult) {
	n.closed <- res
}

func (n *closedNotifier) AuctionCloseFailed(context.Context, uuid.UUID, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed++
}

func (n *closedNotifier) failures() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failed
}

func setup(t *testing.T, window time.Duration) (*Services, *memory.Store, memory.Demo, *closedNotifier) {
	t.Helper()

	store := memory.NewStore()
	demo := memory.SeedDemo(store, time.Now())
	notifier := &closedNotifier{closed: make(chan domain.SettlementResult, 4)}

	svcs := NewServices(Deps{Store: store, Notifier: notifier}, Config{
		Countdown: countdown.Config{Window: window, RetryBackoff: 5 * time.Millisecond},
	})
	t.Cleanup(svcs.Countdown.Stop)

	return svcs, store, demo, notifier
}

func openAuction(t *testing.T, svcs *Services, demo memory.Demo) *domain.Auction {
	t.Helper()

	a, err := svcs.Auctions.Create(context.Background(), auction.CreateInput{
		OrganizerID: demo.OrganizerID,
		TicketID:    demo.TicketIDs[0],
		StartingBid: 1000,
		AuctionEnd:  time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)

	return a
}

func waitClosed(t *testing.T, n *closedNotifier) domain.SettlementResult {
	t.Helper()

	select {
	case res := <-n.closed:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("auction was not closed by its countdown")
		return domain.SettlementResult{}
	}
}

func TestCountdownExpiryClosesAuction(t *testing.T) {
	svcs, store, demo, notifier := setup(t, 40*time.Millisecond)
	ctx := context.Background()
	a := openAuction(t, svcs, demo)
	alice := demo.BidderIDs[0]

	_, err := svcs.Auctions.Join(ctx, a.ID, alice)
	assert.NoError(t, err)

	_, err = svcs.Auctions.PlaceBid(ctx, a.ID, alice, 1500)
	assert.NoError(t, err)

	res := waitClosed(t, notifier)
	check.Equal(t, domain.TriggerForced, res.Trigger)
	check.Equal(t, alice, *res.Winner)
	check.Equal(t, int64(1500), res.FinalPrice)

	got, err := svcs.Auctions.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.True(t, got.IsEnded)
	check.Equal(t, []uuid.UUID{a.TicketID}, store.OwnedTickets(alice))
}

func TestCountdownRetriesFailedSettlement(t *testing.T) {
	svcs, store, demo, notifier := setup(t, 20*time.Millisecond)
	ctx := context.Background()
	a := openAuction(t, svcs, demo)
	bob := demo.BidderIDs[1]

	_, err := svcs.Auctions.PlaceBid(ctx, a.ID, bob, 2000)
	assert.NoError(t, err)

	store.FailNext("Users.AddOwnedTicket", errors.New("ownership service down"))

	// The bid reset armed the countdown; the first close fails and is retried.
	res := waitClosed(t, notifier)
	check.Equal(t, bob, *res.Winner)
	check.Equal(t, 1, notifier.failures())
}

func TestDisabledCountdownLeavesAuctionOpen(t *testing.T) {
	svcs, _, demo, notifier := setup(t, 0)
	ctx := context.Background()
	a := openAuction(t, svcs, demo)

	_, err := svcs.Auctions.Join(ctx, a.ID, demo.BidderIDs[0])
	assert.NoError(t, err)

	select {
	case <-notifier.closed:
		t.Fatal("auction closed without a countdown")
	case <-time.After(60 * time.Millisecond):
	}

	got, err := svcs.Auctions.Get(ctx, a.ID)
	assert.NoError(t, err)
	check.False(t, got.IsEnded)
}
