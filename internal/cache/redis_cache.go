package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schoolhub/booking-backend/internal/config"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const summaryKeyPrefix = "booking:summary:"

// NewRedisClient creates a Redis client from configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

// Ping checks the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// SummaryCache stores per-resource availability summaries for display.
// Allocation never reads from it. A Redis failure degrades to a miss.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewSummaryCache creates a SummaryCache
func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl, logger: logger}
}

func summaryKey(resourceID string) string {
	return summaryKeyPrefix + resourceID
}

// GetSummary returns a cached summary, if present
func (c *SummaryCache) GetSummary(ctx context.Context, resourceID string) (*models.SlotSummary, bool) {
	raw, err := c.client.Get(ctx, summaryKey(resourceID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("resource_id", resourceID).Warn("Summary cache read failed")
		}
		return nil, false
	}

	var summary models.SlotSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.logger.WithError(err).WithField("resource_id", resourceID).Warn("Discarding corrupt summary cache entry")
		return nil, false
	}
	return &summary, true
}

// SetSummary caches a summary for the configured TTL
func (c *SummaryCache) SetSummary(ctx context.Context, summary *models.SlotSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, summaryKey(summary.ResourceID), raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("resource_id", summary.ResourceID).Warn("Summary cache write failed")
	}
}

// Invalidate drops a resource's cached summary
func (c *SummaryCache) Invalidate(ctx context.Context, resourceID string) {
	if err := c.client.Del(ctx, summaryKey(resourceID)).Err(); err != nil {
		c.logger.WithError(err).WithField("resource_id", resourceID).Warn("Summary cache invalidation failed")
	}
}
