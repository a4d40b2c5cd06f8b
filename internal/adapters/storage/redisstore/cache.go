package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// BoardCache wraps a BoardStateStore with a Redis read-through cache.
// Saves go to the base store first and then evict the cached collection, so a
// failed save never leaves a cached state the database does not hold.
type BoardCache struct {
	base   app.BoardStateStore
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger app.Logger
}

// NewBoardCache creates a caching store. A nil client disables caching.
func NewBoardCache(base app.BoardStateStore, client redis.UniversalClient, prefix string, ttl time.Duration, logger app.Logger) *BoardCache {
	if base == nil {
		panic("redisstore.NewBoardCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	if prefix == "" {
		prefix = "kanboard"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &BoardCache{base: base, client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *BoardCache) key(boardID string) string {
	return fmt.Sprintf("%s:board:%s:tasks", c.prefix, boardID)
}

// LoadBoardState returns the cached collection or falls through to the base store.
func (c *BoardCache) LoadBoardState(ctx context.Context, boardID string) ([]domain.Task, error) {
	if tasks, ok := c.load(ctx, boardID); ok {
		return tasks, nil
	}
	tasks, err := c.base.LoadBoardState(ctx, boardID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, boardID, tasks)
	return tasks, nil
}

// SaveBoardState persists through the base store and drops the cached copy.
func (c *BoardCache) SaveBoardState(ctx context.Context, boardID string, tasks []domain.Task) error {
	if err := c.base.SaveBoardState(ctx, boardID, tasks); err != nil {
		return err
	}
	c.Evict(ctx, boardID)
	return nil
}

// Evict removes the cached collection for boardID.
func (c *BoardCache) Evict(ctx context.Context, boardID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.key(boardID)).Err(); err != nil {
		c.logger.Warn("board cache evict failed", "board_id", boardID, "err", err)
	}
}

func (c *BoardCache) load(ctx context.Context, boardID string) ([]domain.Task, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(boardID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("board cache read failed", "board_id", boardID, "err", err)
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		c.logger.Warn("board cache decode failed", "board_id", boardID, "err", err)
		c.Evict(ctx, boardID)
		return nil, false
	}
	return tasks, true
}

func (c *BoardCache) store(ctx context.Context, boardID string, tasks []domain.Task) {
	if c.client == nil {
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		c.logger.Warn("board cache encode failed", "board_id", boardID, "err", err)
		return
	}
	if err := c.client.Set(ctx, c.key(boardID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("board cache write failed", "board_id", boardID, "err", err)
	}
}

// Connect parses a redis URL and verifies the server answers PING.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
