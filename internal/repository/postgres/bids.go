package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-auction/internal/domain"
)

type BidRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BidRepo) With(db DB) *BidRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BidRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Append stores an accepted bid and fills b.Seq from the sequence.
func (r *BidRepo) Append(ctx context.Context, b *domain.Bid) error {
	const op = "postgresrepo.BidRepo.Append"

	db := r.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO bids(id, auction_id, bidder_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq`,
		b.ID, b.AuctionID, b.BidderID, b.Amount, b.CreatedAt,
	).Scan(&b.Seq)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// ListByAuction returns the most recent bids first.
func (r *BidRepo) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.Bid, error) {
	const op = "postgresrepo.BidRepo.ListByAuction"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, auction_id, bidder_id, amount, seq, created_at
		 FROM bids
		 WHERE auction_id = $1
		 ORDER BY seq DESC
		 LIMIT $2`,
		auctionID, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	bids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Bid, error) {
		var b domain.Bid
		err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.Seq, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return bids, nil
}

// Leaderboard ranks bidders by their best bid. Accepted amounts strictly
// increase within an auction, so best bids never tie.
func (r *BidRepo) Leaderboard(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error) {
	const op = "postgresrepo.BidRepo.Leaderboard"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT b.bidder_id, u.display_name, MAX(b.amount), COUNT(*), MAX(b.created_at)
		 FROM bids b
		 JOIN users u ON u.id = b.bidder_id
		 WHERE b.auction_id = $1
		 GROUP BY b.bidder_id, u.display_name
		 ORDER BY MAX(b.amount) DESC, MAX(b.seq)
		 LIMIT $2`,
		auctionID, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LeaderboardEntry, error) {
		var e domain.LeaderboardEntry
		err := row.Scan(&e.BidderID, &e.BidderName, &e.BestBid, &e.Bids, &e.LastBidAt)
		return e, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return entries, nil
}
