// Package settlement applies the outcome of a closed auction: the winner
// record, the ticket transfer and the winner's owned tickets, all inside the
// caller's transaction.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

// ErrSettlementFailed wraps every failure of a collaborator during settlement.
var ErrSettlementFailed = errors.New("settlement failed")

type Coordinator struct {
	now func() time.Time
}

func New(now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{now: now}
}

// Settle runs the settlement steps for the auction snapshot taken under the
// row lock. It does not mark the auction ended; the caller does that in the
// same transaction.
//
// Returns:
//   - domain.SettlementResult: winner, final price and trigger.
//   - error: ErrSettlementFailed wrapping the collaborator error.
func (c *Coordinator) Settle(
	ctx context.Context,
	tx repository.Tx,
	snapshot domain.Auction,
	trigger domain.CloseTrigger,
) (domain.SettlementResult, error) {
	const op = "service.settlement.Settle"

	now := c.now()

	res := domain.SettlementResult{
		AuctionID: snapshot.ID,
		TicketID:  snapshot.TicketID,
		Trigger:   trigger,
		SettledAt: now,
	}

	if snapshot.HighestBidder == nil {
		if err := tx.Tickets().SetInAuction(ctx, snapshot.TicketID, false); err != nil {
			return res, fail(op, err)
		}
		return res, nil
	}

	winner := *snapshot.HighestBidder

	won := &domain.WonAuction{
		AuctionID:  snapshot.ID,
		WinnerID:   winner,
		TicketID:   snapshot.TicketID,
		WinningBid: snapshot.CurrentBid,
		UpdatedAt:  now,
	}
	if err := tx.WonAuctions().Upsert(ctx, won); err != nil {
		return res, fail(op, err)
	}

	if err := tx.Tickets().TransferOwnership(ctx, snapshot.TicketID, winner); err != nil {
		return res, fail(op, err)
	}

	if err := tx.Users().AddOwnedTicket(ctx, winner, snapshot.TicketID); err != nil {
		return res, fail(op, err)
	}

	name, err := tx.Users().DisplayName(ctx, winner)
	if err != nil {
		return res, fail(op, err)
	}

	res.Winner = &winner
	res.WinnerName = name
	res.FinalPrice = snapshot.CurrentBid

	return res, nil
}

func fail(op string, err error) error {
	return fmt.Errorf("%s:%w: %w", op, ErrSettlementFailed, err)
}
