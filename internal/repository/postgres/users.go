package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *UserRepo) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	const op = "postgresrepo.UserRepo.DisplayName"

	db := r.handle()

	var name string
	if err := db.QueryRow(ctx, `SELECT display_name FROM users WHERE id = $1`, id).Scan(&name); err != nil {
		return "", wrapDBErr(op, err)
	}

	return name, nil
}

func (r *UserRepo) AddOwnedTicket(ctx context.Context, userID, ticketID uuid.UUID) error {
	const op = "postgresrepo.UserRepo.AddOwnedTicket"

	db := r.handle()

	_, err := db.Exec(ctx,
		`INSERT INTO user_tickets(user_id, ticket_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, ticket_id) DO NOTHING`,
		userID, ticketID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}
