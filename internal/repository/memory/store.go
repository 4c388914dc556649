// Package memory is an in-process implementation of the repository
// interfaces. Transactions are serialized under one lock and run against a
// private copy of the state that replaces the shared one only on commit.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

type state struct {
	users    map[uuid.UUID]domain.User
	events   map[uuid.UUID]domain.Event
	tickets  map[uuid.UUID]domain.Ticket
	owned    map[uuid.UUID]map[uuid.UUID]struct{}
	auctions map[uuid.UUID]domain.Auction
	bids     map[uuid.UUID][]domain.Bid
	won      map[uuid.UUID]domain.WonAuction
	seq      int64
}

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]domain.User),
		events:   make(map[uuid.UUID]domain.Event),
		tickets:  make(map[uuid.UUID]domain.Ticket),
		owned:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		auctions: make(map[uuid.UUID]domain.Auction),
		bids:     make(map[uuid.UUID][]domain.Bid),
		won:      make(map[uuid.UUID]domain.WonAuction),
	}
}

func (s *state) clone() *state {
	cp := &state{
		users:    maps.Clone(s.users),
		events:   maps.Clone(s.events),
		tickets:  maps.Clone(s.tickets),
		owned:    make(map[uuid.UUID]map[uuid.UUID]struct{}, len(s.owned)),
		auctions: make(map[uuid.UUID]domain.Auction, len(s.auctions)),
		bids:     make(map[uuid.UUID][]domain.Bid, len(s.bids)),
		won:      maps.Clone(s.won),
		seq:      s.seq,
	}

	for k, v := range s.owned {
		cp.owned[k] = maps.Clone(v)
	}
	for k, v := range s.auctions {
		cp.auctions[k] = copyAuction(v)
	}
	for k, v := range s.bids {
		cp.bids[k] = slices.Clone(v)
	}

	return cp
}

func copyAuction(a domain.Auction) domain.Auction {
	a.Participants = slices.Clone(a.Participants)
	if a.Participants == nil {
		a.Participants = []uuid.UUID{}
	}
	if a.HighestBidder != nil {
		hb := *a.HighestBidder
		a.HighestBidder = &hb
	}
	return a
}

type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

func NewStore() *Store {
	return &Store{
		st:     newState(),
		faults: make(map[string]error),
	}
}

// RunTx runs fn against a copy of the state. Isolation options are accepted
// and ignored: transactions never overlap.
func (s *Store) RunTx(
	ctx context.Context,
	_ *repository.TxOptions,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()

	if err := fn(ctx, &txRepos{store: s, st: work}); err != nil {
		return err
	}

	s.st = work

	return nil
}

// FailNext makes the next call of op fail with err. op is the repository
// method in "Repo.Method" form, e.g. "Tickets.TransferOwnership".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults[op] = err
}

// fault must be called with mu held.
func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.users[u.ID] = u
}

func (s *Store) PutEvent(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.events[e.ID] = e
}

// PutTicket stores the ticket and records it as owned by its owner.
func (s *Store) PutTicket(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.tickets[t.ID] = t
	addOwned(s.st, t.OwnerID, t.ID)
}

// OwnedTickets lists the ids of the tickets owned by userID in no particular
// order.
func (s *Store) OwnedTickets(userID uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Collect(maps.Keys(s.st.owned[userID]))
}

func addOwned(st *state, userID, ticketID uuid.UUID) {
	set, ok := st.owned[userID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		st.owned[userID] = set
	}
	set[ticketID] = struct{}{}
}

func (s *Store) Auctions() repository.Auctions       { return &AuctionRepo{view{store: s}} }
func (s *Store) Bids() repository.Bids               { return &BidRepo{view{store: s}} }
func (s *Store) Tickets() repository.Tickets         { return &TicketRepo{view{store: s}} }
func (s *Store) Users() repository.Users             { return &UserRepo{view{store: s}} }
func (s *Store) WonAuctions() repository.WonAuctions { return &WonAuctionRepo{view{store: s}} }

type txRepos struct {
	store *Store
	st    *state
}

func (t *txRepos) Auctions() repository.Auctions {
	return &AuctionRepo{view{store: t.store, tx: t.st}}
}

func (t *txRepos) Bids() repository.Bids {
	return &BidRepo{view{store: t.store, tx: t.st}}
}

func (t *txRepos) Tickets() repository.Tickets {
	return &TicketRepo{view{store: t.store, tx: t.st}}
}

func (t *txRepos) Users() repository.Users {
	return &UserRepo{view{store: t.store, tx: t.st}}
}

func (t *txRepos) WonAuctions() repository.WonAuctions {
	return &WonAuctionRepo{view{store: t.store, tx: t.st}}
}

// view runs repository calls either inside a transaction (tx set, lock
// already held by RunTx) or directly against the shared state.
type view struct {
	store *Store
	tx    *state
}

func (v view) do(op string, fn func(st *state) error) error {
	if v.tx != nil {
		if err := v.store.fault(op); err != nil {
			return err
		}
		return fn(v.tx)
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	if err := v.store.fault(op); err != nil {
		return err
	}

	return fn(v.store.st)
}

var _ repository.Transactor = (*Store)(nil)
