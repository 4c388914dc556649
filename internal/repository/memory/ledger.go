package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/repository"
)

type BidRepo struct {
	view
}

func (r *BidRepo) Append(ctx context.Context, b *domain.Bid) error {
	const op = "memory.BidRepo.Append"

	err := r.do("Bids.Append", func(st *state) error {
		if _, ok := st.auctions[b.AuctionID]; !ok {
			return repository.ErrNotFound
		}

		st.seq++
		b.Seq = st.seq
		st.bids[b.AuctionID] = append(st.bids[b.AuctionID], *b)

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (r *BidRepo) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.Bid, error) {
	const op = "memory.BidRepo.ListByAuction"

	var out []domain.Bid
	err := r.do("Bids.ListByAuction", func(st *state) error {
		out = slices.Clone(st.bids[auctionID])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *BidRepo) Leaderboard(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error) {
	const op = "memory.BidRepo.Leaderboard"

	var out []domain.LeaderboardEntry
	err := r.do("Bids.Leaderboard", func(st *state) error {
		idx := make(map[uuid.UUID]int)
		for _, b := range st.bids[auctionID] {
			i, ok := idx[b.BidderID]
			if !ok {
				i = len(out)
				idx[b.BidderID] = i
				out = append(out, domain.LeaderboardEntry{
					BidderID:   b.BidderID,
					BidderName: st.users[b.BidderID].DisplayName,
				})
			}

			e := &out[i]
			e.Bids++
			e.BestBid = max(e.BestBid, b.Amount)
			if b.CreatedAt.After(e.LastBidAt) {
				e.LastBidAt = b.CreatedAt
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	slices.SortStableFunc(out, func(a, b domain.LeaderboardEntry) int {
		switch {
		case a.BestBid > b.BestBid:
			return -1
		case a.BestBid < b.BestBid:
			return 1
		}
		return 0
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
