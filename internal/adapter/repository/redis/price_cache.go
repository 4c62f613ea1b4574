package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/goportfolio/internal/domain"
	"github.com/iho/goportfolio/internal/infrastructure/metrics"
	"github.com/iho/goportfolio/internal/usecase"
)

// PriceCache is a read-through cache in front of a PriceRepository.
// Redis failures are logged and fall through to the wrapped repository.
type PriceCache struct {
	next    usecase.PriceRepository
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewPriceCache creates a new PriceCache.
func NewPriceCache(
	next usecase.PriceRepository,
	client *redis.Client,
	ttl time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *PriceCache {
	return &PriceCache{
		next:    next,
		client:  client,
		ttl:     ttl,
		prefix:  "price:",
		metrics: m,
		logger:  logger,
	}
}

// LatestPrice returns the cached price, loading it from the wrapped repository on a miss.
func (c *PriceCache) LatestPrice(ctx context.Context, symbol string) (domain.Money, error) {
	key := c.prefix + symbol

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var price domain.Money
		if err := json.Unmarshal(raw, &price); err == nil {
			c.record("hit")
			return price, nil
		}
		c.record("error")
		c.logger.Warn().Str("symbol", symbol).Msg("discarding undecodable cached price")
	case errors.Is(err, redis.Nil):
		c.record("miss")
	default:
		c.record("error")
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("price cache read failed")
	}

	price, err := c.next.LatestPrice(ctx, symbol)
	if err != nil {
		return domain.Money{}, err
	}

	encoded, err := json.Marshal(price)
	if err != nil {
		return price, nil
	}

	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.record("error")
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("price cache write failed")
	}

	return price, nil
}

// SavePrice stores the price and evicts the cached entry.
func (c *PriceCache) SavePrice(ctx context.Context, symbol string, price domain.Money, at time.Time) error {
	if err := c.next.SavePrice(ctx, symbol, price, at); err != nil {
		return err
	}

	if err := c.client.Del(ctx, c.prefix+symbol).Err(); err != nil {
		c.record("error")
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("price cache eviction failed")
	}

	return nil
}

func (c *PriceCache) record(result string) {
	if c.metrics != nil {
		c.metrics.PriceCache.WithLabelValues(result).Inc()
	}
}
