package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/money"
	"github.com/kirinyoku/tix-auction/internal/service/auction"
)

// AuctionService is the part of the auction service driven by websocket
// requests.
type AuctionService interface {
	Join(ctx context.Context, auctionID, participantID uuid.UUID) (bool, error)
	PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount int64) (*domain.Auction, error)
	Close(ctx context.Context, auctionID uuid.UUID, trigger domain.CloseTrigger) (*domain.SettlementResult, error)
}

// Handler upgrades authenticated requests and translates client messages
// into auction service calls. Validation is left to the service.
type Handler struct {
	hub      *Hub
	svc      AuctionService
	log      *slog.Logger
	upgrader websocket.Upgrader
	timeout  time.Duration
}

func NewHandler(hub *Hub, svc AuctionService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		hub: hub,
		svc: svc,
		log: log.With(slog.String("component", "realtime")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Callers are authenticated by the gateway in front of the service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		timeout: 15 * time.Second,
	}
}

// Serve runs the connection of userID until it closes.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}

	c := newClient(h.hub, conn, userID)
	if !h.hub.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	go c.writePump()

	ctx := context.WithoutCancel(r.Context())
	c.readPump(func(data []byte) {
		h.dispatch(ctx, c, data)
	})
}

func (h *Handler) dispatch(ctx context.Context, c *client, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		h.reject(c, in, "malformed message")
		return
	}

	auctionID, err := uuid.Parse(in.AuctionID)
	if err != nil {
		h.reject(c, in, "invalid auctionId")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	switch in.Type {
	case TypeJoinAuction:
		h.join(ctx, c, in, auctionID)
	case TypePlaceBid:
		h.placeBid(ctx, c, in, auctionID)
	case TypeForceEndAuction:
		h.forceEnd(ctx, c, in, auctionID)
	default:
		h.reject(c, in, "unknown message type")
	}
}

// join attaches before calling the service so the client sees its own
// participantsUpdate. A rejected join puts the client back where it was.
func (h *Handler) join(ctx context.Context, c *client, in inbound, auctionID uuid.UUID) {
	prev := h.hub.attach(c, auctionID)

	if _, err := h.svc.Join(ctx, auctionID, c.user); err != nil {
		if prev != auctionID {
			h.hub.detach(c, auctionID)
			if prev != uuid.Nil {
				h.hub.attach(c, prev)
			}
		}
		h.fail(c, in, err)
	}
}

func (h *Handler) placeBid(ctx context.Context, c *client, in inbound, auctionID uuid.UUID) {
	if in.BidderID != "" {
		bidder, err := uuid.Parse(in.BidderID)
		if err != nil || bidder != c.user {
			h.reject(c, in, "bidderId does not match the connected user")
			return
		}
	}

	amount, err := in.amountCents()
	if err != nil {
		h.reject(c, in, "invalid amount")
		return
	}

	if _, err := h.svc.PlaceBid(ctx, auctionID, c.user, amount); err != nil {
		h.fail(c, in, err)
	}
}

// forceEnd closes the auction. A settlement failure has already been
// announced to the room as auctionEndError.
func (h *Handler) forceEnd(ctx context.Context, c *client, in inbound, auctionID uuid.UUID) {
	_, err := h.svc.Close(ctx, auctionID, domain.TriggerForced)
	if err != nil && !errors.Is(err, auction.ErrSettlementFailed) {
		h.fail(c, in, err)
	}
}

func (h *Handler) fail(c *client, in inbound, err error) {
	msg, known := publicMessage(err)
	if !known {
		c.log.Error("websocket request failed",
			slog.String("request", in.Type),
			slog.String("auction_id", in.AuctionID),
			slog.Any("err", err),
		)
	}

	h.reject(c, in, msg)
}

func (h *Handler) reject(c *client, in inbound, message string) {
	payload, err := json.Marshal(ErrorMessage{
		Type:      TypeError,
		AuctionID: in.AuctionID,
		Request:   in.Type,
		Message:   message,
	})
	if err != nil {
		return
	}

	h.hub.sendTo(c, payload)
}

var publicErrors = []error{
	auction.ErrAuctionNotFound,
	auction.ErrAlreadyEnded,
	auction.ErrInvalidAmount,
	auction.ErrUserNotFound,
	auction.ErrSettlementFailed,
	money.ErrInvalid,
	money.ErrNotPositive,
	money.ErrPrecision,
	money.ErrTooLarge,
}

// publicMessage returns the text shown to clients for err and whether err is
// an expected rejection.
func publicMessage(err error) (string, bool) {
	var (
		tooLow  auction.BidTooLowError
		limited auction.RateLimitedError
	)

	switch {
	case errors.As(err, &tooLow):
		return tooLow.Error(), true
	case errors.As(err, &limited):
		return limited.Error(), true
	}

	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error(), true
		}
	}

	return "internal error", false
}
