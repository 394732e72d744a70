package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BANK_TRANSFER_LIMIT", "")
	t.Setenv("BANK_HTTP_ADDR", "")
	t.Setenv("BANK_NATS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.Transfer.Limit.Equal(decimal.NewFromInt(10000)))
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	assert.GreaterOrEqual(t, cfg.DB.MaxConns, 4)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BANK_TRANSFER_LIMIT", "2500.50")
	t.Setenv("BANK_HTTP_MAX_INFLIGHT", "8")
	t.Setenv("BANK_DB_MIGRATE", "1")
	t.Setenv("BANK_HTTP_REQUEST_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Transfer.Limit.Equal(decimal.RequireFromString("2500.50")))
	assert.Equal(t, 8, cfg.HTTP.MaxInflight)
	assert.True(t, cfg.DB.Migrate)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTP.RequestTimeout)
}

func TestLoadRejectsBadLimit(t *testing.T) {
	t.Setenv("BANK_TRANSFER_LIMIT", "ten thousand")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("BANK_TRANSFER_LIMIT", "-1")
	_, err = Load()
	assert.Error(t, err)
}

func TestInvalidIntFallsBack(t *testing.T) {
	t.Setenv("BANK_HTTP_MAX_INFLIGHT", "lots")
	assert.Equal(t, 64, getEnvInt("BANK_HTTP_MAX_INFLIGHT", 64))
	assert.Equal(t, 4, clamp(1, 4, 50))
	assert.Equal(t, 50, clamp(99, 4, 50))
}
