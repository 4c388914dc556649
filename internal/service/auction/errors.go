package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tix-auction/internal/money"
	"github.com/kirinyoku/tix-auction/internal/service/settlement"
)

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrAlreadyEnded    = errors.New("auction already ended")
	ErrBidTooLow       = errors.New("bid too low")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidTrigger  = errors.New("invalid close trigger")
	ErrRateLimited     = errors.New("rate limited")
	ErrUserNotFound    = errors.New("user not found")

	ErrTicketNotFound  = errors.New("ticket not found")
	ErrTicketNotOwned  = errors.New("ticket not owned by organizer")
	ErrTicketInAuction = errors.New("ticket already in an auction")
	ErrInvalidDeadline = errors.New("auction end must be in the future")

	// ErrSettlementFailed leaves the auction open; closing again retries the
	// whole settlement.
	ErrSettlementFailed = settlement.ErrSettlementFailed
)

// BidTooLowError carries the amount the rejected bid had to exceed.
type BidTooLowError struct {
	Floor int64
}

func (e BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: must exceed %s", money.Format(e.Floor))
}

func (e BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

func (e RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
