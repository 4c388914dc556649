package repository

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAuctionEnded = errors.New("auction ended")
	ErrBidTooLow    = errors.New("bid too low")
)
