package httpgin

import (
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/money"
	"github.com/shopspring/decimal"
)

// Amounts travel as decimal strings such as "12.50"; plain JSON numbers are
// accepted on input too.

type CreateAuctionRequest struct {
	TicketID    string          `json:"ticketId" binding:"required,uuid"`
	StartingBid decimal.Decimal `json:"startingBid" swaggertype:"string" example:"50.00"`
	AuctionEnd  string          `json:"auctionEnd" binding:"required" example:"2026-11-01T20:00:00Z"`
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"12.50"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	// Floor is set for rejected bids: the amount a bid has to exceed.
	Floor string `json:"floor,omitempty"`
}

type JoinResponse struct {
	Joined        bool `json:"joined"`
	AlreadyJoined bool `json:"alreadyJoined"`
}

type AuctionResponse struct {
	ID            uuid.UUID   `json:"id"`
	EventID       uuid.UUID   `json:"eventId"`
	TicketID      uuid.UUID   `json:"ticketId"`
	Seat          string      `json:"seat"`
	OrganizerID   uuid.UUID   `json:"organizerId"`
	StartingBid   string      `json:"startingBid"`
	CurrentBid    string      `json:"currentBid"`
	HighestBidder *uuid.UUID  `json:"highestBidder"`
	AuctionEnd    time.Time   `json:"auctionEnd"`
	IsEnded       bool        `json:"isEnded"`
	State         string      `json:"state"`
	Participants  []uuid.UUID `json:"participants"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type AuctionItemResponse struct {
	AuctionResponse
	EventTitle        string `json:"eventTitle"`
	TicketSeat        string `json:"ticketSeat"`
	OrganizerName     string `json:"organizerName"`
	HighestBidderName string `json:"highestBidderName,omitempty"`
}

type BidResponse struct {
	ID        uuid.UUID `json:"id"`
	BidderID  uuid.UUID `json:"bidderId"`
	Amount    string    `json:"amount"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}

type LeaderboardEntryResponse struct {
	Rank       int       `json:"rank"`
	BidderID   uuid.UUID `json:"bidderId"`
	BidderName string    `json:"bidderName"`
	BestBid    string    `json:"bestBid"`
	Bids       int       `json:"bids"`
	LastBidAt  time.Time `json:"lastBidAt"`
}

type SettlementResponse struct {
	AuctionID     uuid.UUID  `json:"auctionId"`
	TicketID      uuid.UUID  `json:"ticketId"`
	Winner        *uuid.UUID `json:"winner"`
	WinnerName    string     `json:"winnerName,omitempty"`
	FinalPrice    string     `json:"finalPrice"`
	Trigger       string     `json:"trigger"`
	SettledAt     time.Time  `json:"settledAt"`
	AlreadyClosed bool       `json:"alreadyClosed"`
}

func toAuctionResponse(a *domain.Auction) AuctionResponse {
	participants := a.Participants
	if participants == nil {
		participants = []uuid.UUID{}
	}

	return AuctionResponse{
		ID:            a.ID,
		EventID:       a.EventID,
		TicketID:      a.TicketID,
		Seat:          a.Seat,
		OrganizerID:   a.OrganizerID,
		StartingBid:   money.Format(a.StartingBid),
		CurrentBid:    money.Format(a.CurrentBid),
		HighestBidder: a.HighestBidder,
		AuctionEnd:    a.AuctionEnd,
		IsEnded:       a.IsEnded,
		State:         string(a.State()),
		Participants:  participants,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toAuctionItems(items []domain.AuctionItem) []AuctionItemResponse {
	out := make([]AuctionItemResponse, 0, len(items))
	for i := range items {
		it := &items[i]
		out = append(out, AuctionItemResponse{
			AuctionResponse:   toAuctionResponse(&it.Auction),
			EventTitle:        it.EventTitle,
			TicketSeat:        it.TicketSeat,
			OrganizerName:     it.OrganizerName,
			HighestBidderName: it.HighestBidderName,
		})
	}
	return out
}

func toBids(bids []domain.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, BidResponse{
			ID:        b.ID,
			BidderID:  b.BidderID,
			Amount:    money.Format(b.Amount),
			Seq:       b.Seq,
			CreatedAt: b.CreatedAt,
		})
	}
	return out
}

func toLeaderboard(entries []domain.LeaderboardEntry) []LeaderboardEntryResponse {
	out := make([]LeaderboardEntryResponse, 0, len(entries))
	for i, e := range entries {
		out = append(out, LeaderboardEntryResponse{
			Rank:       i + 1,
			BidderID:   e.BidderID,
			BidderName: e.BidderName,
			BestBid:    money.Format(e.BestBid),
			Bids:       e.Bids,
			LastBidAt:  e.LastBidAt,
		})
	}
	return out
}

func toSettlement(res *domain.SettlementResult) SettlementResponse {
	return SettlementResponse{
		AuctionID:     res.AuctionID,
		TicketID:      res.TicketID,
		Winner:        res.Winner,
		WinnerName:    res.WinnerName,
		FinalPrice:    money.Format(res.FinalPrice),
		Trigger:       string(res.Trigger),
		SettledAt:     res.SettledAt,
		AlreadyClosed: res.AlreadyClosed,
	}
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
