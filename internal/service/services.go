package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/countdown"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
	redisrepo "github.com/kirinyoku/tix-auction/internal/repository/redis"
	"github.com/kirinyoku/tix-auction/internal/service/auction"
)

type Services struct {
	Auctions  *auction.Service
	Countdown *countdown.Scheduler
}

type Config struct {
	Auction   auction.Config
	Countdown countdown.Config
}

type Deps struct {
	Store    repository.Transactor
	Cache    *redisrepo.Cache
	Limiter  *redisrepo.SlidingWindowLimiter
	Notifier auction.Notifier
	Archiver auction.ReceiptArchiver
	Logger   *slog.Logger
}

// NewServices wires the auction service to its live countdown. An expired
// countdown force-closes the auction; only settlement failures are retried.
func NewServices(d Deps, cfg Config) *Services {
	var svc *auction.Service

	cdCfg := cfg.Countdown
	cdCfg.Retryable = func(err error) bool {
		return errors.Is(err, auction.ErrSettlementFailed)
	}

	sched := countdown.New(func(ctx context.Context, auctionID uuid.UUID) error {
		_, err := svc.Close(ctx, auctionID, domain.TriggerForced)
		return err
	}, cdCfg, d.Logger)

	svc = auction.New(auction.Deps{
		Store:     d.Store,
		Cache:     d.Cache,
		Limiter:   d.Limiter,
		Notifier:  d.Notifier,
		Countdown: sched,
		Archiver:  d.Archiver,
		Logger:    d.Logger,
	}, cfg.Auction)

	return &Services{
		Auctions:  svc,
		Countdown: sched,
	}
}
