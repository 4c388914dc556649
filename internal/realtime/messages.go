package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/money"
)

// Outbound message types.
const (
	TypeParticipantsUpdate = "participantsUpdate"
	TypeBidUpdate          = "bidUpdate"
	TypeAuctionEnded       = "auctionEnded"
	TypeAuctionEndError    = "auctionEndError"
	TypeError              = "error"
)

// Inbound message types.
const (
	TypeJoinAuction     = "joinAuction"
	TypePlaceBid        = "placeBid"
	TypeForceEndAuction = "forceEndAuction"
)

type ParticipantsUpdate struct {
	Type         string    `json:"type"`
	AuctionID    uuid.UUID `json:"auctionId"`
	Participants int       `json:"participants"`
}

// BidUpdate announces a new highest bid. Countdown is the number of seconds
// left on the room's live countdown, 0 when it is disabled.
type BidUpdate struct {
	Type              string    `json:"type"`
	AuctionID         uuid.UUID `json:"auctionId"`
	HighestBid        string    `json:"highestBid"`
	HighestBidderID   uuid.UUID `json:"highestBidderId"`
	HighestBidderName string    `json:"highestBidderName"`
	Countdown         int       `json:"countdown"`
}

// AuctionEnded carries the settlement outcome. Winner is null when the
// auction closed without bids.
type AuctionEnded struct {
	Type       string     `json:"type"`
	AuctionID  uuid.UUID  `json:"auctionId"`
	Message    string     `json:"message"`
	Winner     *string    `json:"winner"`
	WinnerID   *uuid.UUID `json:"winnerId,omitempty"`
	TicketID   uuid.UUID  `json:"ticketId"`
	FinalPrice string     `json:"finalPrice,omitempty"`
	Trigger    string     `json:"trigger"`
}

type AuctionEndError struct {
	Type      string    `json:"type"`
	AuctionID uuid.UUID `json:"auctionId"`
	Message   string    `json:"message"`
}

// ErrorMessage is sent only to the client whose request was rejected.
type ErrorMessage struct {
	Type      string `json:"type"`
	AuctionID string `json:"auctionId,omitempty"`
	Request   string `json:"request,omitempty"`
	Message   string `json:"message"`
}

// inbound is the union of all client requests. Amount accepts both a JSON
// string ("12.50") and a JSON number (12.5).
type inbound struct {
	Type      string          `json:"type"`
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId,omitempty"`
	Amount    json.RawMessage `json:"amount,omitempty"`
}

func (in inbound) amountCents() (int64, error) {
	raw := strings.TrimSpace(string(in.Amount))

	var s string
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(in.Amount, &s); err != nil {
			return 0, money.ErrInvalid
		}
	} else {
		s = raw
	}

	return money.ParseCents(s)
}

func countdownSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func messageType(payload []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return ""
	}
	return head.Type
}
