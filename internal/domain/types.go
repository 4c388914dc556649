package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuctionState string

const (
	AuctionOpen    AuctionState = "open"
	AuctionClosing AuctionState = "closing"
	AuctionClosed  AuctionState = "closed"
)

// CloseTrigger tells why an auction is being closed.
type CloseTrigger string

const (
	TriggerDeadlineExpired CloseTrigger = "deadlineExpired"
	TriggerForced          CloseTrigger = "forced"
)

func (t CloseTrigger) Valid() bool {
	return t == TriggerDeadlineExpired || t == TriggerForced
}

// Auction is one auction room for exactly one ticket. Amounts are in cents.
type Auction struct {
	ID            uuid.UUID   `json:"id"`
	EventID       uuid.UUID   `json:"event_id"`
	TicketID      uuid.UUID   `json:"ticket_id"`
	Seat          string      `json:"seat"`
	OrganizerID   uuid.UUID   `json:"organizer_id"`
	StartingBid   int64       `json:"starting_bid"`
	CurrentBid    int64       `json:"current_bid"`
	HighestBidder *uuid.UUID  `json:"highest_bidder,omitempty"`
	AuctionEnd    time.Time   `json:"auction_end"`
	IsEnded       bool        `json:"is_ended"`
	Participants  []uuid.UUID `json:"participants"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// State reports the persisted state. CLOSING only exists while a close
// transaction holds the row and is never observed from storage.
func (a *Auction) State() AuctionState {
	if a.IsEnded {
		return AuctionClosed
	}
	return AuctionOpen
}

// Floor is the amount a new bid has to exceed.
func (a *Auction) Floor() int64 {
	if a.CurrentBid > a.StartingBid {
		return a.CurrentBid
	}
	return a.StartingBid
}

// AcceptingBids reports whether a bid may be placed at the given instant.
func (a *Auction) AcceptingBids(now time.Time) bool {
	return !a.IsEnded && now.Before(a.AuctionEnd)
}

func (a *Auction) HasParticipant(userID uuid.UUID) bool {
	for _, p := range a.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Bid is an immutable ledger entry. Seq orders bids within an auction.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry is a bidder's best bid in one auction.
type LeaderboardEntry struct {
	BidderID   uuid.UUID `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	BestBid    int64     `json:"best_bid"`
	Bids       int       `json:"bids"`
	LastBidAt  time.Time `json:"last_bid_at"`
}

// WonAuction records the outcome of a settled auction; one per auction.
type WonAuction struct {
	AuctionID  uuid.UUID `json:"auction_id"`
	WinnerID   uuid.UUID `json:"winner_id"`
	TicketID   uuid.UUID `json:"ticket_id"`
	WinningBid int64     `json:"winning_bid"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Ticket struct {
	ID         uuid.UUID `json:"id"`
	EventID    uuid.UUID `json:"event_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Seat       string    `json:"seat"`
	PriceCents int64     `json:"price_cents"`
	IsResale   bool      `json:"is_resale"`
	InAuction  bool      `json:"in_auction"`
}

type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
}

type Event struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Starts time.Time `json:"starts_at"`
}

// AuctionItem is an auction with its related records resolved for listing.
type AuctionItem struct {
	Auction
	EventTitle        string `json:"event_title"`
	TicketSeat        string `json:"ticket_seat"`
	OrganizerName     string `json:"organizer_name"`
	HighestBidderName string `json:"highest_bidder_name,omitempty"`
}

// SettlementResult describes how an auction was closed.
type SettlementResult struct {
	AuctionID     uuid.UUID    `json:"auction_id"`
	TicketID      uuid.UUID    `json:"ticket_id"`
	Winner        *uuid.UUID   `json:"winner,omitempty"`
	WinnerName    string       `json:"winner_name,omitempty"`
	FinalPrice    int64        `json:"final_price"`
	Trigger       CloseTrigger `json:"trigger"`
	SettledAt     time.Time    `json:"settled_at"`
	AlreadyClosed bool         `json:"already_closed"`
}

func (r *SettlementResult) HasWinner() bool {
	return r.Winner != nil
}
