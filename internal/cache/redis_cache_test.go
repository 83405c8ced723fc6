package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSummaryKey(t *testing.T) {
	assert.Equal(t, "booking:summary:res-1", summaryKey("res-1"))
}

func TestSummaryCache_UnreachableRedisIsAMiss(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewSummaryCache(client, time.Second, logger)
	ctx := context.Background()

	c.SetSummary(ctx, &models.SlotSummary{ResourceID: "res-1", Capacity: 10})
	c.Invalidate(ctx, "res-1")

	summary, ok := c.GetSummary(ctx, "res-1")
	assert.False(t, ok)
	assert.Nil(t, summary)
}
