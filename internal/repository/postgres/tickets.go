package postgresrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgresrepo.TicketRepo.Get"

	db := r.handle()

	var t domain.Ticket
	err := db.QueryRow(ctx,
		`SELECT id, event_id, owner_id, seat, price_cents, is_resale, in_auction
		 FROM tickets WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.EventID, &t.OwnerID, &t.Seat, &t.PriceCents, &t.IsResale, &t.InAuction)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &t, nil
}

func (r *TicketRepo) SetInAuction(ctx context.Context, id uuid.UUID, inAuction bool) error {
	const op = "postgresrepo.TicketRepo.SetInAuction"

	db := r.handle()

	tag, err := db.Exec(ctx, `UPDATE tickets SET in_auction = $2 WHERE id = $1`, id, inAuction)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// TransferOwnership assigns the ticket to newOwnerID and takes it off resale.
//
// Returns:
//   - error: repository.ErrNotFound if the ticket or the new owner do not exist.
func (r *TicketRepo) TransferOwnership(ctx context.Context, ticketID, newOwnerID uuid.UUID) error {
	const op = "postgresrepo.TicketRepo.TransferOwnership"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE tickets
		 SET owner_id = $2, is_resale = false, in_auction = false
		 WHERE id = $1`,
		ticketID, newOwnerID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
