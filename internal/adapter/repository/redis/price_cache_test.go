package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
	"github.com/iho/goportfolio/internal/usecase/mocks"
)

var cacheNow = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func TestPriceCacheReadThrough(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	inner := mocks.NewInMemoryPriceRepository()
	require.NoError(t, inner.SavePrice(ctx, "AAPL", domain.MustMoney("190", "USD"), cacheNow))

	m := metrics.New(prometheus.NewRegistry())
	cache := NewPriceCache(inner, client, time.Minute, m, zerolog.Nop())

	price, err := cache.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(domain.MustMoney("190", "USD")))
	assert.True(t, mr.Exists("price:AAPL"))

	// Writes that bypass the cache stay invisible until the entry expires.
	require.NoError(t, inner.SavePrice(ctx, "AAPL", domain.MustMoney("200", "USD"), cacheNow))

	price, err = cache.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(domain.MustMoney("190", "USD")))

	mr.FastForward(2 * time.Minute)

	price, err = cache.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(domain.MustMoney("200", "USD")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PriceCache.WithLabelValues("miss")))
}

func TestPriceCacheSavePriceEvicts(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	inner := mocks.NewInMemoryPriceRepository()
	cache := NewPriceCache(inner, client, time.Minute, nil, zerolog.Nop())

	require.NoError(t, cache.SavePrice(ctx, "AAPL", domain.MustMoney("190", "USD"), cacheNow))
	_, err := cache.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, mr.Exists("price:AAPL"))

	require.NoError(t, cache.SavePrice(ctx, "AAPL", domain.MustMoney("210.5", "USD"), cacheNow.Add(time.Hour)))
	assert.False(t, mr.Exists("price:AAPL"))

	price, err := cache.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(domain.MustMoney("210.5", "USD")))
}

func TestPriceCacheDoesNotCacheUnavailablePrices(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	cache := NewPriceCache(mocks.NewInMemoryPriceRepository(), client, time.Minute, nil, zerolog.Nop())

	_, err := cache.LatestPrice(context.Background(), "AAPL")
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
	assert.False(t, mr.Exists("price:AAPL"))
}

func TestPriceCacheFallsThroughWhenRedisIsDown(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	inner := mocks.NewInMemoryPriceRepository()
	require.NoError(t, inner.SavePrice(ctx, "AAPL", domain.MustMoney("190", "USD"), cacheNow))

	m := metrics.New(prometheus.NewRegistry())
	cache := NewPriceCache(inner, client, time.Minute, m, zerolog.Nop())

	mr.Close()

	price, err := cache.LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(domain.MustMoney("190", "USD")))

	require.NoError(t, cache.SavePrice(ctx, "AAPL", domain.MustMoney("191", "USD"), cacheNow))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.PriceCache.WithLabelValues("error")), 3.0)
}

func TestPriceCacheDiscardsCorruptEntries(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	inner := mocks.NewInMemoryPriceRepository()
	require.NoError(t, inner.SavePrice(ctx, "AAPL", domain.MustMoney("190", "USD"), cacheNow))
	require.NoError(t, mr.Set("price:AAPL", "{not json"))

	price, err := NewPriceCache(inner, client, time.Minute, nil, zerolog.Nop()).LatestPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, price.Equal(domain.MustMoney("190", "USD")))
}
