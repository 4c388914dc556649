package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

const auctionColumns = `id, event_id, ticket_id, seat, organizer_id,
	starting_bid, current_bid, highest_bidder, auction_end, is_ended,
	created_at, updated_at`

type AuctionRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AuctionRepo) With(db DB) *AuctionRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AuctionRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a new auction. Participants are ignored.
//
// Returns:
//   - error: repository.ErrConflict if the ticket is already in an open auction.
//   - error: repository.ErrNotFound if the event, ticket or organizer do not exist.
func (r *AuctionRepo) Create(ctx context.Context, a *domain.Auction) error {
	const op = "postgresrepo.AuctionRepo.Create"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO auctions(id, event_id, ticket_id, seat, organizer_id,
		                      starting_bid, current_bid, auction_end, is_ended,
		                      created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, false, $8, $8)`,
		a.ID, a.EventID, a.TicketID, a.Seat, a.OrganizerID,
		a.StartingBid, a.AuctionEnd, a.CreatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get retrieves an auction with its participants.
//
// Returns:
//   - error: repository.ErrNotFound if the auction does not exist.
func (r *AuctionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	const op = "postgresrepo.AuctionRepo.Get"

	return r.get(ctx, op, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
}

// GetForUpdate is Get with a row lock held until the transaction ends. It
// must be called with a transaction handle.
func (r *AuctionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	const op = "postgresrepo.AuctionRepo.GetForUpdate"

	if r.db == nil {
		return nil, fmt.Errorf("%s: row lock requires a transaction", op)
	}

	return r.get(ctx, op, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id)
}

func (r *AuctionRepo) get(ctx context.Context, op, query string, id uuid.UUID) (*domain.Auction, error) {
	db := r.handle()

	a, err := scanAuction(db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	if a.Participants, err = r.participants(ctx, db, id); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return a, nil
}

// List lists auctions with their event, ticket, organizer and highest bidder
// details, soonest deadline first.
func (r *AuctionRepo) List(ctx context.Context, includeEnded bool) ([]domain.AuctionItem, error) {
	const op = "postgresrepo.AuctionRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT a.id, a.event_id, a.ticket_id, a.seat, a.organizer_id,
		        a.starting_bid, a.current_bid, a.highest_bidder, a.auction_end, a.is_ended,
		        a.created_at, a.updated_at,
		        e.title, t.seat, o.display_name, COALESCE(hb.display_name, ''),
		        (SELECT COUNT(*) FROM auction_participants p WHERE p.auction_id = a.id)
		 FROM auctions a
		 JOIN events e ON e.id = a.event_id
		 JOIN tickets t ON t.id = a.ticket_id
		 JOIN users o ON o.id = a.organizer_id
		 LEFT JOIN users hb ON hb.id = a.highest_bidder
		 WHERE $1 OR NOT a.is_ended
		 ORDER BY a.is_ended, a.auction_end`,
		includeEnded,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.AuctionItem
	for rows.Next() {
		var it domain.AuctionItem
		var participants int64

		if err := rows.Scan(
			&it.ID, &it.EventID, &it.TicketID, &it.Seat, &it.OrganizerID,
			&it.StartingBid, &it.CurrentBid, &it.HighestBidder, &it.AuctionEnd, &it.IsEnded,
			&it.CreatedAt, &it.UpdatedAt,
			&it.EventTitle, &it.TicketSeat, &it.OrganizerName, &it.HighestBidderName,
			&participants,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}

		it.Participants = make([]uuid.UUID, 0, participants)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	// Listing carries only the participant count; load ids in one pass.
	if len(out) > 0 {
		if err := r.fillParticipants(ctx, db, out); err != nil {
			return nil, wrapDBErr(op, err)
		}
	}

	return out, nil
}

// ListExpired returns ids of open auctions whose deadline is at or before now.
func (r *AuctionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const op = "postgresrepo.AuctionRepo.ListExpired"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id FROM auctions
		 WHERE NOT is_ended AND auction_end <= $1
		 ORDER BY auction_end
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}

func (r *AuctionRepo) AddParticipant(ctx context.Context, auctionID, userID uuid.UUID) (bool, error) {
	const op = "postgresrepo.AuctionRepo.AddParticipant"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`INSERT INTO auction_participants(auction_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (auction_id, user_id) DO NOTHING`,
		auctionID, userID,
	)
	if err != nil {
		return false, wrapDBErr(op, err)
	}

	return tag.RowsAffected() == 1, nil
}

// ApplyBid compares and updates in one statement, so the amount is checked
// against the committed row rather than a snapshot read earlier.
//
// Returns:
//   - error: repository.ErrNotFound if the auction does not exist.
//   - error: repository.ErrAuctionEnded if the auction is ended or past its deadline.
//   - error: *repository.BidTooLowError if amount does not exceed the floor.
func (r *AuctionRepo) ApplyBid(
	ctx context.Context,
	auctionID, bidderID uuid.UUID,
	amount int64,
	now time.Time,
) (*domain.Auction, error) {
	const op = "postgresrepo.AuctionRepo.ApplyBid"

	db := r.handle()

	a, err := scanAuction(db.QueryRow(ctx,
		`UPDATE auctions
		 SET current_bid = $3, highest_bidder = $2, updated_at = $4
		 WHERE id = $1
		   AND NOT is_ended
		   AND auction_end > $4
		   AND $3 > GREATEST(current_bid, starting_bid)
		 RETURNING `+auctionColumns,
		auctionID, bidderID, amount, now,
	))
	if err == nil {
		if a.Participants, err = r.participants(ctx, db, auctionID); err != nil {
			return nil, wrapDBErr(op, err)
		}
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	// Nothing matched: work out which precondition failed.
	var (
		isEnded     bool
		auctionEnd  time.Time
		currentBid  int64
		startingBid int64
	)
	if err := db.QueryRow(ctx,
		`SELECT is_ended, auction_end, current_bid, starting_bid
		 FROM auctions WHERE id = $1`,
		auctionID,
	).Scan(&isEnded, &auctionEnd, &currentBid, &startingBid); err != nil {
		return nil, wrapDBErr(op, err)
	}

	if isEnded || !now.Before(auctionEnd) {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrAuctionEnded)
	}

	return nil, fmt.Errorf("%s:%w", op, &repository.BidTooLowError{Floor: max(currentBid, startingBid)})
}

// MarkEnded flips is_ended. Ending an ended auction is an error, callers are
// expected to hold the row lock and check first.
func (r *AuctionRepo) MarkEnded(ctx context.Context, id uuid.UUID, now time.Time) error {
	const op = "postgresrepo.AuctionRepo.MarkEnded"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE auctions SET is_ended = true, updated_at = $2
		 WHERE id = $1 AND NOT is_ended`,
		id, now,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrAuctionEnded)
	}

	return nil
}

func (r *AuctionRepo) participants(ctx context.Context, db DB, auctionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx,
		`SELECT user_id FROM auction_participants
		 WHERE auction_id = $1
		 ORDER BY joined_at`,
		auctionID,
	)
	if err != nil {
		return nil, err
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}

	return ids, nil
}

func (r *AuctionRepo) fillParticipants(ctx context.Context, db DB, items []domain.AuctionItem) error {
	idx := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for i := range items {
		idx[items[i].ID] = i
		ids = append(ids, items[i].ID)
	}

	rows, err := db.Query(ctx,
		`SELECT auction_id, user_id FROM auction_participants
		 WHERE auction_id = ANY($1)
		 ORDER BY joined_at`,
		ids,
	)
	if err != nil {
		return err
	}

	defer rows.Close()

	for rows.Next() {
		var auctionID, userID uuid.UUID
		if err := rows.Scan(&auctionID, &userID); err != nil {
			return err
		}
		if i, ok := idx[auctionID]; ok {
			items[i].Participants = append(items[i].Participants, userID)
		}
	}

	return rows.Err()
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	var a domain.Auction

	if err := row.Scan(
		&a.ID,
		&a.EventID,
		&a.TicketID,
		&a.Seat,
		&a.OrganizerID,
		&a.StartingBid,
		&a.CurrentBid,
		&a.HighestBidder,
		&a.AuctionEnd,
		&a.IsEnded,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &a, nil
}
