package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Auction  AuctionConfig  `toml:"auction"`
	S3       S3Config       `toml:"s3"`
	LogLevel string         `toml:"log_level"`
}

type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// StorageConfig selects the auction store. The memory driver keeps state in
// process and can seed demo users and tickets.
type StorageConfig struct {
	Driver   string `toml:"driver"`
	SeedDemo bool   `toml:"seed_demo"`
}

type PostgresConfig struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	SSLMode  string `toml:"sslmode"`
	MaxConns int32  `toml:"max_conns"`
	Migrate  bool   `toml:"migrate"`
}

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type AuctionConfig struct {
	// CountdownWindow is the live countdown of a room. Zero disables it and
	// auctions close only at their deadline or when forced.
	CountdownWindow Duration `toml:"countdown_window"`
	SweepInterval   Duration `toml:"sweep_interval"`
	SettleAttempts  int      `toml:"settle_attempts"`
	SettleBackoff   Duration `toml:"settle_backoff"`
	TxAttempts      int      `toml:"tx_attempts"`
	ListCacheTTL    Duration `toml:"list_cache_ttl"`
	BidRateLimit    int      `toml:"bid_rate_limit"`
	BidRateWindow   Duration `toml:"bid_rate_window"`
	IdempotencyTTL  Duration `toml:"idempotency_ttl"`
}

// S3Config configures settlement receipt archiving. An empty bucket turns
// archiving off.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Duration reads "30s" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Storage: StorageConfig{
			Driver: DriverPostgres,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
			MaxConns: 10,
			Migrate:  true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6380",
		},
		Auction: AuctionConfig{
			CountdownWindow: Duration{30 * time.Second},
			SweepInterval:   Duration{5 * time.Second},
			SettleAttempts:  5,
			SettleBackoff:   Duration{500 * time.Millisecond},
			TxAttempts:      3,
			ListCacheTTL:    Duration{5 * time.Second},
			BidRateLimit:    10,
			BidRateWindow:   Duration{time.Second},
			IdempotencyTTL:  Duration{2 * time.Hour},
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "settlements",
		},
		LogLevel: "info",
	}
}

// New builds the configuration from defaults, the TOML file named by
// CONFIG_FILE if set, and environment variables, in increasing precedence.
// A .env file in the working directory is loaded first.
func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var e envReader

	e.setStr(&cfg.Server.Host, "SERVER_HOST")
	e.setInt(&cfg.Server.Port, "SERVER_PORT")
	e.setDuration(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")

	e.setStr(&cfg.Storage.Driver, "STORAGE_DRIVER")
	e.setBool(&cfg.Storage.SeedDemo, "STORAGE_SEED_DEMO")

	e.setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	e.setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	e.setStr(&cfg.Postgres.User, "POSTGRES_USER")
	e.setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	e.setStr(&cfg.Postgres.Name, "POSTGRES_DB")
	e.setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSLMODE")
	e.setInt32(&cfg.Postgres.MaxConns, "POSTGRES_MAX_CONNS")
	e.setBool(&cfg.Postgres.Migrate, "POSTGRES_MIGRATE")

	e.setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	e.setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	e.setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	e.setInt(&cfg.Redis.DB, "REDIS_DB")

	e.setDuration(&cfg.Auction.CountdownWindow, "AUCTION_COUNTDOWN_WINDOW")
	e.setDuration(&cfg.Auction.SweepInterval, "AUCTION_SWEEP_INTERVAL")
	e.setInt(&cfg.Auction.SettleAttempts, "AUCTION_SETTLE_ATTEMPTS")
	e.setDuration(&cfg.Auction.SettleBackoff, "AUCTION_SETTLE_BACKOFF")
	e.setInt(&cfg.Auction.TxAttempts, "AUCTION_TX_ATTEMPTS")
	e.setDuration(&cfg.Auction.ListCacheTTL, "AUCTION_LIST_CACHE_TTL")
	e.setInt(&cfg.Auction.BidRateLimit, "AUCTION_BID_RATE_LIMIT")
	e.setDuration(&cfg.Auction.BidRateWindow, "AUCTION_BID_RATE_WINDOW")
	e.setDuration(&cfg.Auction.IdempotencyTTL, "AUCTION_IDEMPOTENCY_TTL")

	e.setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	e.setStr(&cfg.S3.Region, "S3_REGION")
	e.setStr(&cfg.S3.Bucket, "S3_BUCKET")
	e.setStr(&cfg.S3.Prefix, "S3_PREFIX")
	e.setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	e.setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	e.setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")

	e.setStr(&cfg.LogLevel, "LOG_LEVEL")

	return errors.Join(e.errs...)
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Postgres.User == "" {
			errs = append(errs, errors.New("missing POSTGRES_USER"))
		}
		if c.Postgres.Password == "" {
			errs = append(errs, errors.New("missing POSTGRES_PASSWORD"))
		}
		if c.Postgres.Name == "" {
			errs = append(errs, errors.New("missing POSTGRES_DB"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if c.Auction.CountdownWindow.Duration < 0 {
		errs = append(errs, errors.New("countdown window must not be negative"))
	}
	if c.Auction.SweepInterval.Duration <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// envReader applies set variables and collects parse errors.
type envReader struct {
	errs []error
}

func (e *envReader) setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) setInt32(dst *int32, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = int32(n)
}

func (e *envReader) setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	*dst = b
}

func (e *envReader) setDuration(dst *Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return
	}
	dst.Duration = d
}
