package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "/dashboard/invoices", cfg.Invoices.ListingPath)
	assert.Equal(t, 50, cfg.Invoices.ListingLimit)
	assert.Equal(t, time.Minute, cfg.Invoices.ListingTTL)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, "invoices.events", cfg.Messaging.Kafka.Topic)
}

func TestNewNormalizesListingPath(t *testing.T) {
	t.Setenv("INVOICES_LISTING_PATH", "billing/invoices/")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/billing/invoices", cfg.Invoices.ListingPath)
}

func TestNewRejectsRootListingPath(t *testing.T) {
	t.Setenv("INVOICES_LISTING_PATH", "/")

	_, err := New()
	assert.Error(t, err)
}

func TestNewDisabledCacheFallsBackToNoop(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
}

func TestNewRejectsUnknownCacheDriver(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "memcached")

	_, err := New()
	assert.ErrorContains(t, err, "unsupported cache driver")
}

func TestNewListingTTLFallsBackToCacheTTL(t *testing.T) {
	t.Setenv("INVOICES_LISTING_TTL", "0s")
	t.Setenv("CACHE_DEFAULT_TTL", "30s")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Invoices.ListingTTL)
}

func TestNewLowercasesObservability(t *testing.T) {
	t.Setenv("OBS_LOG_LEVEL", " DEBUG ")
	t.Setenv("OBS_PROMETHEUS_PATH", "metrics")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
}
