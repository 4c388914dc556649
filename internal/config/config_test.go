package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestMemoryDriverNeedsNoDatabase(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", DriverMemory)
	t.Setenv("POSTGRES_USER", "")

	cfg, err := New()
	assert.NoError(t, err)

	check.Equal(t, DriverMemory, cfg.Storage.Driver)
	check.Equal(t, 8080, cfg.Server.Port)
	check.Equal(t, 30*time.Second, cfg.Auction.CountdownWindow.Duration)
	check.False(t, cfg.S3.Enabled())
}

func TestPostgresDriverRequiresCredentials(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", DriverPostgres)
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("POSTGRES_DB", "")

	_, err := New()
	assert.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "missing POSTGRES_USER"))
}

func TestFileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tixauction.toml")
	err := os.WriteFile(path, []byte(`
log_level = "debug"

[storage]
driver = "memory"
seed_demo = true

[auction]
countdown_window = "45s"
bid_rate_limit = 3

[s3]
bucket = "receipts"
`), 0o600)
	assert.NoError(t, err)

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("AUCTION_COUNTDOWN_WINDOW", "0s")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := New()
	assert.NoError(t, err)

	check.Equal(t, DriverMemory, cfg.Storage.Driver)
	check.True(t, cfg.Storage.SeedDemo)
	check.Equal(t, "debug", cfg.LogLevel)
	check.Equal(t, 3, cfg.Auction.BidRateLimit)
	check.Equal(t, time.Duration(0), cfg.Auction.CountdownWindow.Duration)
	check.Equal(t, 9090, cfg.Server.Port)
	check.True(t, cfg.S3.Enabled())
	check.Equal(t, "settlements", cfg.S3.Prefix)
}

func TestInvalidEnvValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", DriverMemory)
	t.Setenv("SERVER_PORT", "http")
	t.Setenv("AUCTION_SWEEP_INTERVAL", "soon")

	_, err := New()
	assert.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "invalid SERVER_PORT"))
	check.True(t, strings.Contains(err.Error(), "invalid AUCTION_SWEEP_INTERVAL"))
}

func TestUnknownDriver(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Driver = "sqlite"

	err := cfg.Validate()
	assert.Error(t, err)
	check.True(t, strings.Contains(err.Error(), `unknown storage driver "sqlite"`))
}
