package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	s3blob "github.com/kirinyoku/tix-auction/internal/blob/s3"
	"github.com/kirinyoku/tix-auction/internal/config"
	"github.com/kirinyoku/tix-auction/internal/countdown"
	"github.com/kirinyoku/tix-auction/internal/postgres"
	"github.com/kirinyoku/tix-auction/internal/realtime"
	redisx "github.com/kirinyoku/tix-auction/internal/redis"
	"github.com/kirinyoku/tix-auction/internal/repository"
	"github.com/kirinyoku/tix-auction/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tix-auction/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tix-auction/internal/repository/redis"
	"github.com/kirinyoku/tix-auction/internal/service"
	"github.com/kirinyoku/tix-auction/internal/service/auction"
	httpgin "github.com/kirinyoku/tix-auction/internal/transport/http/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	hub        *realtime.Hub

	pool *pgxpool.Pool
	rdb  *redis.Client
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx := context.Background()
	a := &App{cfg: cfg, logger: logger}
	health := map[string]httpgin.HealthCheck{}

	// Storage
	var store repository.Transactor
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		dsn := postgres.DSN("",
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.Name,
			cfg.Postgres.SSLMode,
		)

		pool, err := postgres.New(ctx, postgres.Config{DSN: dsn, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		a.pool = pool

		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to migrate postgres: %w", err)
			}
		}

		store = postgresrepo.NewStore(pool)
		health["postgres"] = pool.Ping
	default:
		mem := memory.NewStore()
		if cfg.Storage.SeedDemo {
			demo := memory.SeedDemo(mem, time.Now())
			logger.Info("seeded demo data",
				slog.String("organizer_id", demo.OrganizerID.String()),
				slog.Any("bidder_ids", demo.BidderIDs),
				slog.Any("ticket_ids", demo.TicketIDs),
			)
		}
		store = mem
	}

	// Redis: listings cache, bid rate limiting, idempotency and the room relay
	var (
		cache   *redisrepo.Cache
		limiter *redisrepo.SlidingWindowLimiter
		idem    httpgin.IdempotencyStore
		relay   realtime.Relay
	)
	if cfg.Redis.Enabled {
		rdb, err := redisx.New(ctx, redisx.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.rdb = rdb

		cache = redisrepo.NewCache(rdb)
		limiter = redisrepo.NewSlidingWindowLimiter(rdb, "rl:bid", cfg.Auction.BidRateLimit, cfg.Auction.BidRateWindow.Duration)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.Auction.IdempotencyTTL.Duration)
		relay = redisx.NewRoomEventsPubSub(rdb)
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Receipts
	var archiver auction.ReceiptArchiver
	if cfg.S3.Enabled() {
		client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("failed to initialize s3: %w", err)
		}

		archiver = s3blob.NewReceiptArchiver(client.S3(), client.Bucket(), cfg.S3.Prefix)
		health["s3"] = client.Health
	}

	// Realtime rooms
	a.hub = realtime.NewHub(relay, logger)

	// Services
	a.services = service.NewServices(service.Deps{
		Store:    store,
		Cache:    cache,
		Limiter:  limiter,
		Notifier: a.hub,
		Archiver: archiver,
		Logger:   logger,
	}, service.Config{
		Auction: auction.Config{
			ListCacheTTL: cfg.Auction.ListCacheTTL.Duration,
			TxAttempts:   cfg.Auction.TxAttempts,
		},
		Countdown: countdown.Config{
			Window:       cfg.Auction.CountdownWindow.Duration,
			MaxAttempts:  cfg.Auction.SettleAttempts,
			RetryBackoff: cfg.Auction.SettleBackoff.Duration,
		},
	})

	ws := realtime.NewHandler(a.hub, a.services.Auctions, logger)

	// Initialize Gin router
	router := httpgin.NewRouter(httpgin.Deps{
		Services: a.services,
		WS:       ws,
		Idem:     idem,
		Health:   health,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.closeStores()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Room fan-out
	g.Go(func() error {
		if err := a.hub.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("realtime hub stopped: %w", err)
		}
		return nil
	})

	// Deadline sweeper
	g.Go(func() error {
		a.sweep(gCtx)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()

		err := a.httpServer.Shutdown(ctx)
		a.services.Countdown.Stop()
		return err
	})

	return g.Wait()
}

// sweep closes auctions whose deadline passed, on every tick until ctx ends.
func (a *App) sweep(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Auction.SweepInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.services.Auctions.CloseExpired(ctx)
			if err != nil && ctx.Err() == nil {
				a.logger.Warn("closing expired auctions", slog.Any("err", err))
			}
			if n > 0 {
				a.logger.Info("closed expired auctions", slog.Int("count", n))
			}
		}
	}
}

func (a *App) closeStores() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
