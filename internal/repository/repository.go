package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
)

// ErrTxConflict marks a transaction that lost a serialization race and can be
// retried from the start.
var ErrTxConflict = errors.New("transaction conflict")

// BidTooLowError is returned by Auctions.ApplyBid when the amount does not
// exceed the committed floor.
type BidTooLowError struct {
	Floor int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: must exceed %d", e.Floor)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

type Auctions interface {
	Create(ctx context.Context, a *domain.Auction) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	// GetForUpdate reads the auction and locks it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	List(ctx context.Context, includeEnded bool) ([]domain.AuctionItem, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// AddParticipant reports whether the participant was newly added.
	AddParticipant(ctx context.Context, auctionID, userID uuid.UUID) (bool, error)
	// ApplyBid raises current bid and highest bidder in a single conditional
	// write. It fails with ErrNotFound, ErrAuctionEnded or *BidTooLowError.
	ApplyBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount int64, now time.Time) (*domain.Auction, error)
	MarkEnded(ctx context.Context, id uuid.UUID, now time.Time) error
}

type Bids interface {
	// Append stores the bid and assigns its sequence number.
	Append(ctx context.Context, b *domain.Bid) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.Bid, error)
	Leaderboard(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error)
}

type Tickets interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	SetInAuction(ctx context.Context, id uuid.UUID, inAuction bool) error
	// TransferOwnership moves the ticket to newOwnerID and clears the resale
	// and auction flags.
	TransferOwnership(ctx context.Context, ticketID, newOwnerID uuid.UUID) error
}

type Users interface {
	DisplayName(ctx context.Context, id uuid.UUID) (string, error)
	// AddOwnedTicket is a set-add; adding twice is not an error.
	AddOwnedTicket(ctx context.Context, userID, ticketID uuid.UUID) error
}

type WonAuctions interface {
	// Upsert creates the record or updates the existing one for the same auction.
	Upsert(ctx context.Context, w *domain.WonAuction) error
	GetByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.WonAuction, error)
}

// Tx groups the repositories bound to one transaction.
type Tx interface {
	Auctions() Auctions
	Bids() Bids
	Tickets() Tickets
	Users() Users
	WonAuctions() WonAuctions
}

type Isolation int

const (
	Serializable Isolation = iota
	ReadCommitted
)

type TxOptions struct {
	Isolation Isolation
}

// Transactor exposes non-transactional repositories and runs functions in a
// transaction. fn's effects are committed only when it returns nil.
type Transactor interface {
	Tx
	RunTx(ctx context.Context, opts *TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
