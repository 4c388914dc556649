package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-auction/internal/domain"
)

type WonAuctionRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *WonAuctionRepo) With(db DB) *WonAuctionRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *WonAuctionRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Upsert writes the outcome for an auction. A second settlement of the same
// auction overwrites winner and price and keeps created_at.
func (r *WonAuctionRepo) Upsert(ctx context.Context, w *domain.WonAuction) error {
	const op = "postgresrepo.WonAuctionRepo.Upsert"

	db := r.handle()

	err := db.QueryRow(ctx,
		`INSERT INTO won_auctions(auction_id, winner_id, ticket_id, winning_bid, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (auction_id) DO UPDATE
		 SET winner_id = EXCLUDED.winner_id,
		     winning_bid = EXCLUDED.winning_bid,
		     updated_at = EXCLUDED.updated_at
		 RETURNING created_at, updated_at`,
		w.AuctionID, w.WinnerID, w.TicketID, w.WinningBid, w.UpdatedAt,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *WonAuctionRepo) GetByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.WonAuction, error) {
	const op = "postgresrepo.WonAuctionRepo.GetByAuction"

	db := r.handle()

	var w domain.WonAuction
	err := db.QueryRow(ctx,
		`SELECT auction_id, winner_id, ticket_id, winning_bid, created_at, updated_at
		 FROM won_auctions WHERE auction_id = $1`,
		auctionID,
	).Scan(&w.AuctionID, &w.WinnerID, &w.TicketID, &w.WinningBid, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &w, nil
}
