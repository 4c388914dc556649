package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	redisx "github.com/kirinyoku/tix-auction/internal/redis"
	"github.com/kirinyoku/tix-auction/internal/repository"
	redisrepo "github.com/kirinyoku/tix-auction/internal/repository/redis"
	"github.com/kirinyoku/tix-auction/internal/service/settlement"
	"github.com/kirinyoku/tix-auction/internal/uow"
	"golang.org/x/sync/singleflight"
)

// BidUpdate describes an accepted bid to the room.
type BidUpdate struct {
	AuctionID         uuid.UUID
	HighestBid        int64
	HighestBidder     uuid.UUID
	HighestBidderName string
	Countdown         time.Duration
}

// Notifier receives state changes after they are committed.
type Notifier interface {
	ParticipantsChanged(ctx context.Context, auctionID uuid.UUID, participants []uuid.UUID)
	BidAccepted(ctx context.Context, u BidUpdate)
	AuctionClosed(ctx context.Context, res domain.SettlementResult)
	AuctionCloseFailed(ctx context.Context, auctionID uuid.UUID, err error)
}

// Countdown is the live countdown of each auction room. Its expiry closes the
// auction with TriggerForced.
type Countdown interface {
	Arm(auctionID uuid.UUID) time.Duration
	Reset(auctionID uuid.UUID) time.Duration
	Cancel(auctionID uuid.UUID)
}

type ReceiptArchiver interface {
	Archive(ctx context.Context, res domain.SettlementResult) error
}

type Config struct {
	ListCacheTTL    time.Duration
	HistoryLimit    int
	MaxHistoryLimit int
	SweepBatch      int
	TxAttempts      int
	ArchiveTimeout  time.Duration
	CloseTimeout    time.Duration
}

type Deps struct {
	Store     repository.Transactor
	Cache     *redisrepo.Cache
	Limiter   *redisrepo.SlidingWindowLimiter
	Notifier  Notifier
	Countdown Countdown
	Archiver  ReceiptArchiver
	Logger    *slog.Logger
	Now       func() time.Time
}

type Service struct {
	store     repository.Transactor
	uow       *uow.UoW
	settler   *settlement.Coordinator
	cache     *redisrepo.Cache
	limiter   *redisrepo.SlidingWindowLimiter
	notifier  Notifier
	countdown Countdown
	archiver  ReceiptArchiver
	log       *slog.Logger
	now       func() time.Time
	closing   singleflight.Group
	cfg       Config
}

func New(d Deps, cfg Config) *Service {
	if cfg.ListCacheTTL <= 0 {
		cfg.ListCacheTTL = 5 * time.Second
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}

	if cfg.MaxHistoryLimit < cfg.HistoryLimit {
		cfg.MaxHistoryLimit = 500
	}

	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}

	if cfg.TxAttempts <= 0 {
		cfg.TxAttempts = 3
	}

	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 10 * time.Second
	}

	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 15 * time.Second
	}

	if d.Now == nil {
		d.Now = time.Now
	}

	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}

	if d.Countdown == nil {
		d.Countdown = nopCountdown{}
	}

	return &Service{
		store:     d.Store,
		uow:       uow.NewUoW(d.Store).WithMaxAttempts(cfg.TxAttempts),
		settler:   settlement.New(d.Now),
		cache:     d.Cache,
		limiter:   d.Limiter,
		notifier:  d.Notifier,
		countdown: d.Countdown,
		archiver:  d.Archiver,
		log:       d.Logger.With(slog.String("component", "auction")),
		now:       d.Now,
		cfg:       cfg,
	}
}

var readCommitted = &repository.TxOptions{Isolation: repository.ReadCommitted}

type CreateInput struct {
	OrganizerID uuid.UUID
	TicketID    uuid.UUID
	StartingBid int64
	AuctionEnd  time.Time
}

// Create opens an auction for a ticket owned by the organizer.
//
// Returns:
//   - error: auction.ErrInvalidAmount if the starting bid is not positive.
//   - error: auction.ErrInvalidDeadline if the auction end is not in the future.
//   - error: auction.ErrTicketNotFound, ErrTicketNotOwned or ErrTicketInAuction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Auction, error) {
	const op = "service.auction.Create"

	if in.StartingBid <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	now := s.now()
	if !in.AuctionEnd.After(now) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidDeadline)
	}

	var created *domain.Auction

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		ticket, err := tx.Tickets().Get(ctx, in.TicketID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketNotFound
			}
			return err
		}

		if ticket.OwnerID != in.OrganizerID {
			return ErrTicketNotOwned
		}

		if ticket.InAuction {
			return ErrTicketInAuction
		}

		a := &domain.Auction{
			ID:           uuid.New(),
			EventID:      ticket.EventID,
			TicketID:     ticket.ID,
			Seat:         ticket.Seat,
			OrganizerID:  in.OrganizerID,
			StartingBid:  in.StartingBid,
			AuctionEnd:   in.AuctionEnd,
			Participants: []uuid.UUID{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := tx.Auctions().Create(ctx, a); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrTicketInAuction
			}
			return err
		}

		if err := tx.Tickets().SetInAuction(ctx, ticket.ID, true); err != nil {
			return err
		}

		created = a

		after(func(ctx context.Context) {
			s.invalidateListings(ctx)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.Info("auction created",
		slog.String("auction_id", created.ID.String()),
		slog.String("ticket_id", created.TicketID.String()),
		slog.Int64("starting_bid", created.StartingBid),
		slog.Time("auction_end", created.AuctionEnd),
	)

	return created, nil
}

// Get returns the committed state of an auction.
func (s *Service) Get(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	const op = "service.auction.Get"

	a, err := s.store.Auctions().Get(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapNotFound(err, ErrAuctionNotFound))
	}

	return a, nil
}

// List returns open auctions, and ended ones too when includeEnded is set.
// Results are served from the cache when Redis is configured.
func (s *Service) List(ctx context.Context, includeEnded bool) ([]domain.AuctionItem, error) {
	const op = "service.auction.List"

	items, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeyAuctionList(includeEnded),
		s.cfg.ListCacheTTL,
		func(ctx context.Context) ([]domain.AuctionItem, error) {
			items, err := s.store.Auctions().List(ctx, includeEnded)
			if err != nil {
				return nil, err
			}
			if items == nil {
				items = []domain.AuctionItem{}
			}
			return items, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return items, nil
}

// Bids returns the ledger of an auction, newest first.
func (s *Service) Bids(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.Bid, error) {
	const op = "service.auction.Bids"

	if _, err := s.store.Auctions().Get(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapNotFound(err, ErrAuctionNotFound))
	}

	bids, err := s.store.Bids().ListByAuction(ctx, auctionID, s.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if bids == nil {
		bids = []domain.Bid{}
	}

	return bids, nil
}

// Leaderboard returns each bidder's best bid, highest first.
func (s *Service) Leaderboard(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error) {
	const op = "service.auction.Leaderboard"

	if _, err := s.store.Auctions().Get(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapNotFound(err, ErrAuctionNotFound))
	}

	entries, err := s.store.Bids().Leaderboard(ctx, auctionID, s.clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	return entries, nil
}

// Join adds participantID to the auction. Joining twice is not an error;
// the returned flag tells whether this call added the participant. Joining
// arms the room's live countdown if it is not running yet.
//
// Returns:
//   - error: auction.ErrAuctionNotFound if the auction does not exist.
//   - error: auction.ErrAlreadyEnded if the auction is ended or past its deadline.
func (s *Service) Join(ctx context.Context, auctionID, participantID uuid.UUID) (bool, error) {
	const op = "service.auction.Join"

	now := s.now()

	var (
		added        bool
		participants []uuid.UUID
	)

	err := s.uow.DoWithOpts(ctx, readCommitted, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		// The row lock orders the join after any close in progress.
		a, err := tx.Auctions().GetForUpdate(ctx, auctionID)
		if err != nil {
			return mapNotFound(err, ErrAuctionNotFound)
		}

		if !a.AcceptingBids(now) {
			return ErrAlreadyEnded
		}

		added, err = tx.Auctions().AddParticipant(ctx, auctionID, participantID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}

		participants = a.Participants
		if added {
			participants = append(participants, participantID)
			after(func(ctx context.Context) {
				s.invalidateListings(ctx)
			})
		}

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	s.countdown.Arm(auctionID)

	if added {
		s.notifier.ParticipantsChanged(ctx, auctionID, participants)
	}

	return added, nil
}

// PlaceBid records a bid if amount exceeds both the current bid and the
// starting bid. The comparison runs against the committed auction row in the
// same statement that raises it, so of two concurrent bids at most one with a
// given floor wins and the other is rejected as too low.
//
// Returns:
//   - *domain.Auction: the auction after the bid.
//   - error: auction.ErrInvalidAmount if the amount is not positive.
//   - error: auction.ErrAuctionNotFound if the auction does not exist.
//   - error: auction.ErrAlreadyEnded if the auction is ended or past its deadline.
//   - error: auction.BidTooLowError if the amount does not exceed the floor.
//   - error: auction.RateLimitedError if the bidder sends bids too fast.
func (s *Service) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount int64) (*domain.Auction, error) {
	const op = "service.auction.PlaceBid"

	if amount <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	if err := s.allowBid(ctx, bidderID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	bidderName, err := s.store.Users().DisplayName(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapNotFound(err, ErrUserNotFound))
	}

	now := s.now()

	var updated *domain.Auction

	err = s.uow.DoWithOpts(ctx, readCommitted, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		a, err := tx.Auctions().ApplyBid(ctx, auctionID, bidderID, amount, now)
		if err != nil {
			return mapBidErr(err)
		}

		bid := &domain.Bid{
			ID:        uuid.New(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := tx.Bids().Append(ctx, bid); err != nil {
			return err
		}

		updated = a

		after(func(ctx context.Context) {
			s.invalidateListings(ctx)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	remaining := s.countdown.Reset(auctionID)

	s.notifier.BidAccepted(ctx, BidUpdate{
		AuctionID:         auctionID,
		HighestBid:        updated.CurrentBid,
		HighestBidder:     bidderID,
		HighestBidderName: bidderName,
		Countdown:         remaining,
	})

	return updated, nil
}

// Close ends the auction and settles it in one transaction. Closing an ended
// auction returns its outcome with AlreadyClosed set. Concurrent closes of
// the same auction in this process share one settlement run, which is not
// bound to any single caller's context: a caller that gives up returns its
// context error while the others still get the outcome.
//
// Returns:
//   - *domain.SettlementResult: the outcome.
//   - error: auction.ErrAuctionNotFound if the auction does not exist.
//   - error: auction.ErrSettlementFailed if settlement failed; the auction is
//     left open and Close can be called again.
func (s *Service) Close(ctx context.Context, auctionID uuid.UUID, trigger domain.CloseTrigger) (*domain.SettlementResult, error) {
	const op = "service.auction.Close"

	if !trigger.Valid() {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidTrigger)
	}

	ch := s.closing.DoChan(auctionID.String(), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CloseTimeout)
		defer cancel()

		return s.close(ctx, auctionID, trigger)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s:%w", op, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("%s:%w", op, r.Err)
		}

		res := *r.Val.(*domain.SettlementResult)

		return &res, nil
	}
}

func (s *Service) close(ctx context.Context, auctionID uuid.UUID, trigger domain.CloseTrigger) (*domain.SettlementResult, error) {
	var (
		res          domain.SettlementResult
		alreadyEnded bool
	)

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		alreadyEnded = false

		a, err := tx.Auctions().GetForUpdate(ctx, auctionID)
		if err != nil {
			return mapNotFound(err, ErrAuctionNotFound)
		}

		if a.IsEnded {
			alreadyEnded = true
			res, err = s.closedOutcome(ctx, tx, a)
			return err
		}

		res, err = s.settler.Settle(ctx, tx, *a, trigger)
		if err != nil {
			return err
		}

		if err := tx.Auctions().MarkEnded(ctx, auctionID, res.SettledAt); err != nil {
			return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}

		after(func(ctx context.Context) {
			s.invalidateListings(ctx)
			s.archive(ctx, res)
		})

		return nil
	})
	if err != nil {
		// Anything short of a missing or already ended auction leaves it open,
		// commit failures included, so the close has to be retried.
		if !alreadyEnded && !errors.Is(err, ErrAuctionNotFound) && !errors.Is(err, ErrSettlementFailed) {
			err = fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}

		if errors.Is(err, ErrSettlementFailed) {
			s.log.Error("settlement failed",
				slog.String("auction_id", auctionID.String()),
				slog.String("trigger", string(trigger)),
				slog.Any("err", err),
			)
			s.notifier.AuctionCloseFailed(ctx, auctionID, err)
		}

		return nil, err
	}

	s.countdown.Cancel(auctionID)

	if res.AlreadyClosed {
		return &res, nil
	}

	attrs := []any{
		slog.String("auction_id", auctionID.String()),
		slog.String("trigger", string(trigger)),
		slog.Int64("final_price", res.FinalPrice),
	}
	if res.Winner != nil {
		attrs = append(attrs, slog.String("winner_id", res.Winner.String()))
	}
	s.log.Info("auction closed", attrs...)

	s.notifier.AuctionClosed(ctx, res)

	return &res, nil
}

// closedOutcome rebuilds the result of an auction that was settled earlier.
func (s *Service) closedOutcome(ctx context.Context, tx repository.Tx, a *domain.Auction) (domain.SettlementResult, error) {
	res := domain.SettlementResult{
		AuctionID:     a.ID,
		TicketID:      a.TicketID,
		SettledAt:     a.UpdatedAt,
		AlreadyClosed: true,
	}

	won, err := tx.WonAuctions().GetByAuction(ctx, a.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, err
	}

	name, err := tx.Users().DisplayName(ctx, won.WinnerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return res, err
	}

	winner := won.WinnerID
	res.Winner = &winner
	res.WinnerName = name
	res.FinalPrice = won.WinningBid

	return res, nil
}

// CloseExpired closes open auctions whose deadline has passed. It returns how
// many auctions this call closed; failures are logged and reported joined.
func (s *Service) CloseExpired(ctx context.Context) (int, error) {
	const op = "service.auction.CloseExpired"

	ids, err := s.store.Auctions().ListExpired(ctx, s.now(), s.cfg.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	var (
		closed int
		errs   []error
	)

	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		res, err := s.Close(ctx, id, domain.TriggerDeadlineExpired)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if !res.AlreadyClosed {
			closed++
		}
	}

	if err := errors.Join(errs...); err != nil {
		return closed, fmt.Errorf("%s:%w", op, err)
	}

	return closed, nil
}

func (s *Service) allowBid(ctx context.Context, bidderID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}

	ok, retry, err := s.limiter.Allow(ctx, bidderID.String())
	if err != nil {
		// Losing the limiter must not stop bidding.
		s.log.Warn("bid rate limiter unavailable", slog.Any("err", err))
		return nil
	}

	if !ok {
		return RateLimitedError{RetryAfter: retry}
	}

	return nil
}

func (s *Service) invalidateListings(ctx context.Context) {
	if err := s.cache.InvalidateAuctions(ctx); err != nil {
		s.log.Warn("invalidate auction listings", slog.Any("err", err))
	}
}

func (s *Service) archive(ctx context.Context, res domain.SettlementResult) {
	if s.archiver == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ArchiveTimeout)
	defer cancel()

	if err := s.archiver.Archive(ctx, res); err != nil {
		s.log.Error("archive settlement receipt",
			slog.String("auction_id", res.AuctionID.String()),
			slog.Any("err", err),
		)
	}
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.HistoryLimit
	}
	return min(limit, s.cfg.MaxHistoryLimit)
}

func mapNotFound(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", target, err)
	}
	return err
}

func mapBidErr(err error) error {
	var tooLow *repository.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return BidTooLowError{Floor: tooLow.Floor}
	case errors.Is(err, repository.ErrAuctionEnded):
		return ErrAlreadyEnded
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrAuctionNotFound, err)
	}
	return err
}

type nopNotifier struct{}

func (nopNotifier) ParticipantsChanged(context.Context, uuid.UUID, []uuid.UUID) {}
func (nopNotifier) BidAccepted(context.Context, BidUpdate)                      {}
func (nopNotifier) AuctionClosed(context.Context, domain.SettlementResult)      {}
func (nopNotifier) AuctionCloseFailed(context.Context, uuid.UUID, error)        {}

type nopCountdown struct{}

func (nopCountdown) Arm(uuid.UUID) time.Duration   { return 0 }
func (nopCountdown) Reset(uuid.UUID) time.Duration { return 0 }
func (nopCountdown) Cancel(uuid.UUID)              {}
