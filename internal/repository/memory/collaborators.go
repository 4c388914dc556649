package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

type TicketRepo struct {
	view
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.Get"

	var out domain.Ticket
	err := r.do("Tickets.Get", func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

func (r *TicketRepo) SetInAuction(ctx context.Context, id uuid.UUID, inAuction bool) error {
	const op = "memory.TicketRepo.SetInAuction"

	err := r.do("Tickets.SetInAuction", func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		t.InAuction = inAuction
		st.tickets[id] = t
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *TicketRepo) TransferOwnership(ctx context.Context, ticketID, newOwnerID uuid.UUID) error {
	const op = "memory.TicketRepo.TransferOwnership"

	err := r.do("Tickets.TransferOwnership", func(st *state) error {
		t, ok := st.tickets[ticketID]
		if !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[newOwnerID]; !ok {
			return repository.ErrNotFound
		}

		t.OwnerID = newOwnerID
		t.IsResale = false
		t.InAuction = false
		st.tickets[ticketID] = t

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

type UserRepo struct {
	view
}

func (r *UserRepo) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	const op = "memory.UserRepo.DisplayName"

	var name string
	err := r.do("Users.DisplayName", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		name = u.DisplayName
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return name, nil
}

func (r *UserRepo) AddOwnedTicket(ctx context.Context, userID, ticketID uuid.UUID) error {
	const op = "memory.UserRepo.AddOwnedTicket"

	err := r.do("Users.AddOwnedTicket", func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.tickets[ticketID]; !ok {
			return repository.ErrNotFound
		}
		addOwned(st, userID, ticketID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

type WonAuctionRepo struct {
	view
}

func (r *WonAuctionRepo) Upsert(ctx context.Context, w *domain.WonAuction) error {
	const op = "memory.WonAuctionRepo.Upsert"

	err := r.do("WonAuctions.Upsert", func(st *state) error {
		if _, ok := st.auctions[w.AuctionID]; !ok {
			return repository.ErrNotFound
		}

		if prev, ok := st.won[w.AuctionID]; ok {
			w.CreatedAt = prev.CreatedAt
		} else {
			w.CreatedAt = w.UpdatedAt
		}
		st.won[w.AuctionID] = *w

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *WonAuctionRepo) GetByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.WonAuction, error) {
	const op = "memory.WonAuctionRepo.GetByAuction"

	var out domain.WonAuction
	err := r.do("WonAuctions.GetByAuction", func(st *state) error {
		w, ok := st.won[auctionID]
		if !ok {
			return repository.ErrNotFound
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}
