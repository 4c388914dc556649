package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
)

// Demo holds the ids created by SeedDemo.
type Demo struct {
	OrganizerID uuid.UUID
	BidderIDs   []uuid.UUID
	EventID     uuid.UUID
	TicketIDs   []uuid.UUID
}

// SeedDemo fills the store with an organizer holding a few resale tickets for
// one event and some bidders, for running the service without a database.
func SeedDemo(s *Store, now time.Time) Demo {
	d := Demo{
		OrganizerID: uuid.New(),
		EventID:     uuid.New(),
	}

	s.PutUser(domain.User{ID: d.OrganizerID, DisplayName: "Box Office"})
	for _, name := range []string{"alice", "bob", "carol"} {
		id := uuid.New()
		s.PutUser(domain.User{ID: id, DisplayName: name})
		d.BidderIDs = append(d.BidderIDs, id)
	}

	s.PutEvent(domain.Event{ID: d.EventID, Title: "Demo Night", Starts: now.Add(7 * 24 * time.Hour)})
	for _, seat := range []string{"A-1", "A-2", "B-7"} {
		id := uuid.New()
		s.PutTicket(domain.Ticket{
			ID:         id,
			EventID:    d.EventID,
			OwnerID:    d.OrganizerID,
			Seat:       seat,
			PriceCents: 5000,
			IsResale:   true,
		})
		d.TicketIDs = append(d.TicketIDs, id)
	}

	return d
}
