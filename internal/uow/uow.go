package uow

import (
	"context"
	"errors"

	"github.com/kirinyoku/tix-auction/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

const defaultMaxAttempts = 3

// UoW represents a unit of work.
type UoW struct {
	store       repository.Transactor
	maxAttempts int
}

func NewUoW(store repository.Transactor) *UoW {
	return &UoW{store: store, maxAttempts: defaultMaxAttempts}
}

// WithMaxAttempts sets how many times a transaction that lost a
// serialization race is run before the conflict is returned.
func (u *UoW) WithMaxAttempts(n int) *UoW {
	cp := *u
	if n < 1 {
		n = 1
	}
	cp.maxAttempts = n
	return &cp
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error,
) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options. After a successful commit,
// it executes all after-commit hooks. Hooks registered by an attempt that
// was rolled back are discarded.
func (u *UoW) DoWithOpts(
	ctx context.Context,
	opts *repository.TxOptions,
	fn func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error,
) error {
	var (
		hooks []AfterCommit
		err   error
	)

	for attempt := 0; attempt < u.maxAttempts; attempt++ {
		hooks = hooks[:0]

		err = u.store.RunTx(ctx, opts, func(ctx context.Context, tx repository.Tx) error {
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil || !errors.Is(err, repository.ErrTxConflict) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
