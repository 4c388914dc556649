package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/money"
	redisx "github.com/kirinyoku/tix-auction/internal/redis"
	redisrepo "github.com/kirinyoku/tix-auction/internal/repository/redis"
	"github.com/kirinyoku/tix-auction/internal/service"
	"github.com/kirinyoku/tix-auction/internal/service/auction"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// IdempotencyStore remembers bid responses by Idempotency-Key.
type IdempotencyStore interface {
	Begin(ctx context.Context, key string, lockTTL time.Duration) (redisrepo.IdemState, string, error)
	Save(ctx context.Context, key string, jsonPayload string) error
	Release(ctx context.Context, key string) error
}

// WSHandler serves an authenticated websocket connection.
type WSHandler interface {
	Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Services *service.Services
	WS       WSHandler
	Idem     IdempotencyStore
	Health   map[string]HealthCheck
}

const idemLockTTL = 30 * time.Second

func NewRouter(d Deps, logger *slog.Logger, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", handleHealth(d.Health))

	svc := d.Services.Auctions

	api := r.Group("/", UserAuth())
	{
		api.POST("/auction", handleCreateAuction(svc))
		api.GET("/auction/:id", handleGetAuction(svc))
		api.GET("/auction/:id/bids", handleListBids(svc))
		api.GET("/auction/:id/leaderboard", handleLeaderboard(svc))
		api.POST("/auction/:id/join", handleJoin(svc))
		api.POST("/auction/:id/bid", handlePlaceBid(svc, d.Idem, logger))
		api.POST("/auction/:id/end", handleEndAuction(svc))
		api.GET("/auctionitems", handleListAuctionItems(svc))

		if d.WS != nil {
			api.GET("/ws/auction", func(c *gin.Context) {
				d.WS.Serve(c.Writer, c.Request, userID(c))
			})
		}
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Health check
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  map[string]string
// @Router   /healthz [get]
func handleHealth(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}

		c.JSON(status, body)
	}
}

// @Summary  Create auction for a ticket owned by the caller
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    req  body  CreateAuctionRequest  true  "payload"
// @Success  201  {object}  AuctionResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  403  {object}  ErrorResponse "ticket not owned"
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "ticket already in auction"
// @Router   /auction [post]
func handleCreateAuction(svc *auction.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAuctionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ticketID, err := uuid.Parse(req.TicketID)
		if err != nil {
			badRequest(c, "invalid ticketId")
			return
		}

		end, err := parseRFC3339(req.AuctionEnd)
		if err != nil {
			badRequest(c, "invalid auctionEnd (RFC3339)")
			return
		}

		starting, err := money.FromDecimal(req.StartingBid)
		if err != nil {
			respondErr(c, err)
			return
		}

		a, err := svc.Create(c.Request.Context(), auction.CreateInput{
			OrganizerID: userID(c),
			TicketID:    ticketID,
			StartingBid: starting,
			AuctionEnd:  end,
		})
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, toAuctionResponse(a))
	}
}

// @Summary  Get auction
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    id  path  string  true  "Auction ID (uuid)"
// @Success  200  {object}  AuctionResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /auction/{id} [get]
func handleGetAuction(svc *auction.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		a, err := svc.Get(c.Request.Context(), auctionID)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, toAuctionResponse(a), "no-cache")
	}
}

// @Summary  List bids, newest first
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    id     path   string  true   "Auction ID (uuid)"
// @Param    limit  query  int     false  "page size"
// @Success  200  {array}   BidResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /auction/{id}/bids [get]
func handleListBids(svc *auction.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		bids, err := svc.Bids(c.Request.Context(), auctionID, parseIntDefault(c.Query("limit"), 0))
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, toBids(bids), "no-cache")
	}
}

// @Summary  Best bid of each bidder
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    id     path   string  true   "Auction ID (uuid)"
// @Param    limit  query  int     false  "page size"
// @Success  200  {array}   LeaderboardEntryResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /auction/{id}/leaderboard [get]
func handleLeaderboard(svc *auction.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		entries, err := svc.Leaderboard(c.Request.Context(), auctionID, parseIntDefault(c.Query("limit"), 0))
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, toLeaderboard(entries), "no-cache")
	}
}

// @Summary  Join auction (idempotent)
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    id  path  string  true  "Auction ID (uuid)"
// @Success  200  {object}  JoinResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "auction ended"
// @Router   /auction/{id}/join [post]
func handleJoin(svc *auction.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		added, err := svc.Join(c.Request.Context(), auctionID, userID(c))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, JoinResponse{Joined: true, AlreadyJoined: !added})
	}
}

// @Summary  Place bid (idempotent with Idempotency-Key)
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    Idempotency-Key  header  string  false  "retry key"
// @Param    id   path  string  true  "Auction ID (uuid)"
// @Param    req  body  PlaceBidRequest  true  "payload"
// @Header   200 {string} Idempotency-Key "echo"
// @Success  200  {object}  AuctionResponse
// @Failure  400  {object}  ErrorResponse "bid too low / invalid amount"
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse "auction ended / idem in progress"
// @Failure  429  {object}  ErrorResponse "rate limited"
// @Router   /auction/{id}/bid [post]
func handlePlaceBid(svc *auction.Service, idem IdempotencyStore, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req PlaceBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		amount, err := money.FromDecimal(req.Amount)
		if err != nil {
			respondErr(c, err)
			return
		}

		bidder := userID(c)
		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = idemKeyFor(auctionID, bidder, idemKey)

			state, payload, err := idem.Begin(ctx, idemStorageKey, idemLockTTL)
			switch {
			case err != nil:
				// Without the store the bid is still safe to place once.
				logger.Warn("idempotency store unavailable", slog.Any("err", err))
				idemStorageKey = ""
			case state == redisrepo.IdemDone:
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
				return
			case state == redisrepo.IdemInFlight:
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		a, err := svc.PlaceBid(ctx, auctionID, bidder, amount)
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := toAuctionResponse(a)

		if idemStorageKey != "" {
			b, _ := json.Marshal(resp)
			_ = idem.Save(ctx, idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Force-end auction and settle it
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    id  path  string  true  "Auction ID (uuid)"
// @Success  200  {object}  SettlementResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  500  {object}  ErrorResponse "settlement failed"
// @Router   /auction/{id}/end [post]
func handleEndAuction(svc *auction.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		res, err := svc.Close(c.Request.Context(), auctionID, domain.TriggerForced)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toSettlement(res))
	}
}

// @Summary  List auctions with event, ticket and bidder details
// @Param    X-User-ID  header  string  true  "Caller (uuid)"
// @Param    include  query  string  false  "completed"
// @Success  200  {array}  AuctionItemResponse
// @Router   /auctionitems [get]
func handleListAuctionItems(svc *auction.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeEnded := c.Query("include") == "completed"

		items, err := svc.List(c.Request.Context(), includeEnded)
		if err != nil {
			respondErr(c, err)
			return
		}

		writeJSONWithCache(c, http.StatusOK, toAuctionItems(items), "public, max-age=5")
	}
}

// --- Helpers ---

// idemKeyFor scopes a client key to the bidder so two users cannot collide.
func idemKeyFor(auctionID, bidder uuid.UUID, key string) string {
	return redisx.KeyIdemBid(auctionID, bidder.String()+":"+key)
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var (
		tooLow  auction.BidTooLowError
		limited auction.RateLimitedError
	)

	switch {
	case errors.As(err, &tooLow):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bid too low", Floor: money.Format(tooLow.Floor)})
	case errors.As(err, &limited):
		secs := max(int((limited.RetryAfter+time.Second-1)/time.Second), 1)
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})

	case errors.Is(err, auction.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalid),
		errors.Is(err, money.ErrNotPositive),
		errors.Is(err, money.ErrPrecision),
		errors.Is(err, money.ErrTooLarge):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid amount"})
	case errors.Is(err, auction.ErrInvalidDeadline):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "auction end must be in the future"})

	case errors.Is(err, auction.ErrAuctionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "auction not found"})
	case errors.Is(err, auction.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "ticket not found"})
	case errors.Is(err, auction.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})

	case errors.Is(err, auction.ErrTicketNotOwned):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "ticket not owned by caller"})
	case errors.Is(err, auction.ErrAlreadyEnded):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "auction already ended"})
	case errors.Is(err, auction.ErrTicketInAuction):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "ticket already in an auction"})

	case errors.Is(err, auction.ErrSettlementFailed):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "settlement failed"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
