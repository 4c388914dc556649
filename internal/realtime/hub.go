// Package realtime fans auction state changes out to websocket clients
// grouped in per-auction rooms.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/money"
	"github.com/kirinyoku/tix-auction/internal/service/auction"
)

// Relay carries encoded room events between service instances. Publish must
// eventually hand the payload to every instance's Subscribe handler,
// including the publishing one.
type Relay interface {
	Publish(ctx context.Context, auctionID uuid.UUID, payload []byte) error
	Subscribe(ctx context.Context, handler func(ctx context.Context, auctionID uuid.UUID, payload []byte)) error
}

// room is the live membership of one auction. It exists while at least one
// client is attached and is dropped when the auction ends.
type room struct {
	id      uuid.UUID
	clients map[*client]struct{}
}

// Hub owns all rooms of this instance and implements auction.Notifier.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	rooms   map[uuid.UUID]*room
	relay   Relay
	log     *slog.Logger
	stopped bool
}

var _ auction.Notifier = (*Hub)(nil)

// NewHub returns a hub delivering events to local rooms. With a non-nil
// relay, events travel through it and Run must be running to deliver them.
func NewHub(relay Relay, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}

	return &Hub{
		clients: make(map[*client]struct{}),
		rooms:   make(map[uuid.UUID]*room),
		relay:   relay,
		log:     log.With(slog.String("component", "realtime")),
	}
}

// Run delivers relayed events until ctx is done, then disconnects all
// clients.
func (h *Hub) Run(ctx context.Context) error {
	const op = "realtime.Hub.Run"

	defer h.closeAll()

	if h.relay == nil {
		<-ctx.Done()
		return nil
	}

	err := h.relay.Subscribe(ctx, func(_ context.Context, auctionID uuid.UUID, payload []byte) {
		h.deliver(auctionID, payload)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (h *Hub) ParticipantsChanged(ctx context.Context, auctionID uuid.UUID, participants []uuid.UUID) {
	h.emit(ctx, auctionID, ParticipantsUpdate{
		Type:         TypeParticipantsUpdate,
		AuctionID:    auctionID,
		Participants: len(participants),
	})
}

func (h *Hub) BidAccepted(ctx context.Context, u auction.BidUpdate) {
	h.emit(ctx, u.AuctionID, BidUpdate{
		Type:              TypeBidUpdate,
		AuctionID:         u.AuctionID,
		HighestBid:        money.Format(u.HighestBid),
		HighestBidderID:   u.HighestBidder,
		HighestBidderName: u.HighestBidderName,
		Countdown:         countdownSeconds(u.Countdown),
	})
}

// AuctionClosed announces the outcome; delivering it tears the room down.
func (h *Hub) AuctionClosed(ctx context.Context, res domain.SettlementResult) {
	msg := AuctionEnded{
		Type:      TypeAuctionEnded,
		AuctionID: res.AuctionID,
		Message:   "Auction ended without bids",
		TicketID:  res.TicketID,
		Trigger:   string(res.Trigger),
	}

	if res.HasWinner() {
		name := res.WinnerName
		msg.Winner = &name
		msg.WinnerID = res.Winner
		msg.FinalPrice = money.Format(res.FinalPrice)
		msg.Message = fmt.Sprintf("Auction ended. %s won with %s", name, msg.FinalPrice)
	}

	h.emit(ctx, res.AuctionID, msg)
}

func (h *Hub) AuctionCloseFailed(ctx context.Context, auctionID uuid.UUID, err error) {
	h.emit(ctx, auctionID, AuctionEndError{
		Type:      TypeAuctionEndError,
		AuctionID: auctionID,
		Message:   "Settlement failed, the auction is still open",
	})
}

func (h *Hub) emit(ctx context.Context, auctionID uuid.UUID, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode room event", slog.String("auction_id", auctionID.String()), slog.Any("err", err))
		return
	}

	if h.relay != nil {
		err := h.relay.Publish(ctx, auctionID, payload)
		if err == nil {
			return
		}
		h.log.Warn("relay publish failed, delivering locally",
			slog.String("auction_id", auctionID.String()),
			slog.Any("err", err),
		)
	}

	h.deliver(auctionID, payload)
}

// deliver never blocks: a client whose send buffer is full is disconnected.
func (h *Hub) deliver(auctionID uuid.UUID, payload []byte) {
	closing := messageType(payload) == TypeAuctionEnded

	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[auctionID]
	if !ok {
		return
	}

	for c := range r.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("dropping slow client",
				slog.String("auction_id", auctionID.String()),
				slog.String("user_id", c.user.String()),
			)
			h.dropLocked(c)
		}
	}

	if closing {
		for c := range r.clients {
			c.room = uuid.Nil
		}
		delete(h.rooms, auctionID)
		h.log.Debug("room closed", slog.String("auction_id", auctionID.String()))
	}
}

// register reports false once the hub has shut down.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}

	h.clients[c] = struct{}{}
	return true
}

// attach moves c into the room of auctionID, creating the room if needed,
// and returns the room c was in before.
func (h *Hub) attach(c *client, auctionID uuid.UUID) uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := c.room
	if c.closed || c.room == auctionID {
		return prev
	}

	h.leaveLocked(c)

	r, ok := h.rooms[auctionID]
	if !ok {
		r = &room{id: auctionID, clients: make(map[*client]struct{})}
		h.rooms[auctionID] = r
		h.log.Debug("room opened", slog.String("auction_id", auctionID.String()))
	}

	r.clients[c] = struct{}{}
	c.room = auctionID

	return prev
}

// detach removes c from the room of auctionID if it is still there.
func (h *Hub) detach(c *client, auctionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.room == auctionID {
		h.leaveLocked(c)
	}
}

// unregister drops c for good. It is safe to call more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(c)
}

// sendTo queues payload for a single client and reports whether it was
// queued.
func (h *Hub) sendTo(c *client, payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		h.dropLocked(c)
		return false
	}
}

func (h *Hub) leaveLocked(c *client) {
	if c.room == uuid.Nil {
		return
	}

	if r, ok := h.rooms[c.room]; ok {
		delete(r.clients, c)
		if len(r.clients) == 0 {
			delete(h.rooms, c.room)
			h.log.Debug("room closed", slog.String("auction_id", c.room.String()))
		}
	}

	c.room = uuid.Nil
}

func (h *Hub) dropLocked(c *client) {
	h.leaveLocked(c)
	delete(h.clients, c)

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) roomSize(auctionID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[auctionID]; ok {
		return len(r.clients)
	}
	return 0
}

func (h *Hub) roomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.rooms)
}
