package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn in a transaction. Serialization failures and deadlocks are
// reported wrapped in repository.ErrTxConflict so callers can retry.
func (s *Store) RunTx(
	ctx context.Context,
	opts *repository.TxOptions,
	fn func(ctx context.Context, tx repository.Tx) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil && opts.Isolation == repository.ReadCommitted {
		txOpts.IsoLevel = pgx.ReadCommitted
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, s.bind(tx)); err != nil {
		if IsRetryable(err) {
			return fmt.Errorf("%w: %w", repository.ErrTxConflict, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsRetryable(err) {
			return fmt.Errorf("%w: commit: %w", repository.ErrTxConflict, err)
		}
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Auctions() repository.Auctions       { return &AuctionRepo{pool: s.pool} }
func (s *Store) Bids() repository.Bids               { return &BidRepo{pool: s.pool} }
func (s *Store) Tickets() repository.Tickets         { return &TicketRepo{pool: s.pool} }
func (s *Store) Users() repository.Users             { return &UserRepo{pool: s.pool} }
func (s *Store) WonAuctions() repository.WonAuctions { return &WonAuctionRepo{pool: s.pool} }

func (s *Store) bind(db DB) repository.Tx {
	return &txRepos{store: s, db: db}
}

type txRepos struct {
	store *Store
	db    DB
}

func (t *txRepos) Auctions() repository.Auctions {
	return (&AuctionRepo{pool: t.store.pool}).With(t.db)
}

func (t *txRepos) Bids() repository.Bids {
	return (&BidRepo{pool: t.store.pool}).With(t.db)
}

func (t *txRepos) Tickets() repository.Tickets {
	return (&TicketRepo{pool: t.store.pool}).With(t.db)
}

func (t *txRepos) Users() repository.Users {
	return (&UserRepo{pool: t.store.pool}).With(t.db)
}

func (t *txRepos) WonAuctions() repository.WonAuctions {
	return (&WonAuctionRepo{pool: t.store.pool}).With(t.db)
}

var _ repository.Transactor = (*Store)(nil)
