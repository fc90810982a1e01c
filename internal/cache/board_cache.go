package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rai1001/CulinaryOs/internal/log"
	"github.com/rai1001/CulinaryOs/pkg/models"
)

const keyPrefix = "culinaryos:board:"

// BoardCache keeps each event's task set in Redis for board reads.
// Redis failures degrade to a miss; the store stays the source of truth.
type BoardCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewBoardCache creates a board cache using the provided Redis client and TTL.
// A zero TTL disables writes so that every read falls through to the store.
func NewBoardCache(client *redis.Client, ttl time.Duration) *BoardCache {
	if ttl < 0 {
		ttl = 0
	}
	return &BoardCache{redis: client, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *BoardCache) Get(ctx context.Context, eventID string) ([]models.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardKey(eventID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.GetLogger().Warnf("Board cache read for event %s failed: %v", eventID, err)
			_ = c.redis.Del(ctx, boardKey(eventID)).Err()
		}
		return nil, false
	}
	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, boardKey(eventID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *BoardCache) Set(ctx context.Context, eventID string, tasks []models.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, boardKey(eventID), data, c.ttl).Err(); err != nil {
		log.GetLogger().Warnf("Board cache write for event %s failed: %v", eventID, err)
	}
}

func (c *BoardCache) Evict(ctx context.Context, eventID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, boardKey(eventID)).Err(); err != nil {
		log.GetLogger().Warnf("Board cache evict for event %s failed: %v", eventID, err)
	}
}

func boardKey(eventID string) string {
	return keyPrefix + eventID
}
