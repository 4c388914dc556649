package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

type AuctionRepo struct {
	view
}

func (r *AuctionRepo) Create(ctx context.Context, a *domain.Auction) error {
	const op = "memory.AuctionRepo.Create"

	err := r.do("Auctions.Create", func(st *state) error {
		if _, ok := st.auctions[a.ID]; ok {
			return repository.ErrConflict
		}
		if _, ok := st.events[a.EventID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.tickets[a.TicketID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[a.OrganizerID]; !ok {
			return repository.ErrNotFound
		}
		for _, other := range st.auctions {
			if other.TicketID == a.TicketID && !other.IsEnded {
				return repository.ErrConflict
			}
		}

		stored := copyAuction(*a)
		stored.CurrentBid = 0
		stored.HighestBidder = nil
		stored.IsEnded = false
		stored.Participants = []uuid.UUID{}
		stored.UpdatedAt = stored.CreatedAt
		st.auctions[a.ID] = stored

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *AuctionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	const op = "memory.AuctionRepo.Get"

	var out domain.Auction
	err := r.do("Auctions.Get", func(st *state) error {
		a, ok := st.auctions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyAuction(a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

func (r *AuctionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	const op = "memory.AuctionRepo.GetForUpdate"

	if r.tx == nil {
		return nil, fmt.Errorf("%s: row lock requires a transaction", op)
	}

	var out domain.Auction
	err := r.do("Auctions.GetForUpdate", func(st *state) error {
		a, ok := st.auctions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyAuction(a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

func (r *AuctionRepo) List(ctx context.Context, includeEnded bool) ([]domain.AuctionItem, error) {
	const op = "memory.AuctionRepo.List"

	var out []domain.AuctionItem
	err := r.do("Auctions.List", func(st *state) error {
		for _, a := range st.auctions {
			if a.IsEnded && !includeEnded {
				continue
			}

			it := domain.AuctionItem{
				Auction:       copyAuction(a),
				EventTitle:    st.events[a.EventID].Title,
				TicketSeat:    st.tickets[a.TicketID].Seat,
				OrganizerName: st.users[a.OrganizerID].DisplayName,
			}
			if a.HighestBidder != nil {
				it.HighestBidderName = st.users[*a.HighestBidder].DisplayName
			}

			out = append(out, it)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	slices.SortFunc(out, func(a, b domain.AuctionItem) int {
		if a.IsEnded != b.IsEnded {
			if a.IsEnded {
				return 1
			}
			return -1
		}
		return a.AuctionEnd.Compare(b.AuctionEnd)
	})

	return out, nil
}

func (r *AuctionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	const op = "memory.AuctionRepo.ListExpired"

	var expired []domain.Auction
	err := r.do("Auctions.ListExpired", func(st *state) error {
		for _, a := range st.auctions {
			if !a.IsEnded && !a.AuctionEnd.After(now) {
				expired = append(expired, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	slices.SortFunc(expired, func(a, b domain.Auction) int {
		return a.AuctionEnd.Compare(b.AuctionEnd)
	})

	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, a := range expired {
		ids = append(ids, a.ID)
	}

	return ids, nil
}

func (r *AuctionRepo) AddParticipant(ctx context.Context, auctionID, userID uuid.UUID) (bool, error) {
	const op = "memory.AuctionRepo.AddParticipant"

	var added bool
	err := r.do("Auctions.AddParticipant", func(st *state) error {
		a, ok := st.auctions[auctionID]
		if !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[userID]; !ok {
			return repository.ErrNotFound
		}
		if a.HasParticipant(userID) {
			return nil
		}

		a.Participants = append(slices.Clone(a.Participants), userID)
		st.auctions[auctionID] = a
		added = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s:%w", op, err)
	}

	return added, nil
}

func (r *AuctionRepo) ApplyBid(
	ctx context.Context,
	auctionID, bidderID uuid.UUID,
	amount int64,
	now time.Time,
) (*domain.Auction, error) {
	const op = "memory.AuctionRepo.ApplyBid"

	var out domain.Auction
	err := r.do("Auctions.ApplyBid", func(st *state) error {
		a, ok := st.auctions[auctionID]
		if !ok {
			return repository.ErrNotFound
		}
		if !a.AcceptingBids(now) {
			return repository.ErrAuctionEnded
		}
		if amount <= a.Floor() {
			return &repository.BidTooLowError{Floor: a.Floor()}
		}
		if _, ok := st.users[bidderID]; !ok {
			return repository.ErrNotFound
		}

		bidder := bidderID
		a.CurrentBid = amount
		a.HighestBidder = &bidder
		a.UpdatedAt = now
		st.auctions[auctionID] = a
		out = copyAuction(a)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

func (r *AuctionRepo) MarkEnded(ctx context.Context, id uuid.UUID, now time.Time) error {
	const op = "memory.AuctionRepo.MarkEnded"

	err := r.do("Auctions.MarkEnded", func(st *state) error {
		a, ok := st.auctions[id]
		if !ok {
			return repository.ErrNotFound
		}
		if a.IsEnded {
			return repository.ErrAuctionEnded
		}

		a.IsEnded = true
		a.UpdatedAt = now
		st.auctions[id] = a

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
