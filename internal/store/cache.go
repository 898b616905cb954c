package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/injops/dashboard/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	memoryEntries = 1024
	memoryMaxTTL  = 24 * time.Hour
)

// Key prefixes
const (
	KeyPage      = "dash:page"
	KeyReference = "dash:reference"

	ChannelPageRefreshed = "dash:events:page"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Cache stores JSON encoded values in Redis, or in a bounded in-process LRU
// when Redis is not configured or unreachable at startup.
type Cache struct {
	client *redis.Client

	memory    *expirable.LRU[string, memoryEntry]
	pubsubHub *PubSubHub

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCache(addr string, logger *zap.SugaredLogger, m *metrics.Metrics) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if addr == "" {
		logger.Infow("No Redis address configured; using in-memory cache")
		return newMemoryCache(logger, m), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("Redis unavailable; using in-memory cache", "addr", addr, "error", err)
		_ = client.Close()
		return newMemoryCache(logger, m), nil
	}

	return &Cache{
		client:  client,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}, nil
}

func newMemoryCache(logger *zap.SugaredLogger, m *metrics.Metrics) *Cache {
	return &Cache{
		memory:    expirable.NewLRU[string, memoryEntry](memoryEntries, nil, memoryMaxTTL),
		pubsubHub: NewPubSubHub(),
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

func PageKey(slug string, variant string) string {
	if variant == "" {
		return fmt.Sprintf("%s:%s", KeyPage, slug)
	}
	return fmt.Sprintf("%s:%s:%s", KeyPage, slug, variant)
}

func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.getRaw(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			c.metrics.RecordCacheMiss(ctx, key)
		}
		return err
	}
	c.metrics.RecordCacheHit(ctx, key)
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) getRaw(ctx context.Context, key string) ([]byte, error) {
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrCacheMiss
			}
			c.logger.Errorw("Cache get error", "key", key, "error", err)
			return nil, fmt.Errorf("cache get error: %w", err)
		}
		return val, nil
	}

	entry, ok := c.memory.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		c.memory.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry.data, nil
}

// Set stores value under key. A ttl of zero keeps the entry until it is
// evicted or deleted.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
			c.logger.Errorw("Cache set error", "key", key, "error", err)
			return fmt.Errorf("cache set error: %w", err)
		}
		return nil
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}
	c.memory.Add(key, entry)
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if c.client != nil {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			c.logger.Errorw("Cache delete error", "keys", keys, "error", err)
			return fmt.Errorf("cache delete error: %w", err)
		}
		return nil
	}
	for _, k := range keys {
		c.memory.Remove(k)
	}
	return nil
}

// Publish sends message as JSON on channel.
func (c *Cache) Publish(ctx context.Context, channel string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}
	if c.client != nil {
		if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
			c.logger.Errorw("Publish error", "channel", channel, "error", err)
			return fmt.Errorf("pubsub publish error: %w", err)
		}
		return nil
	}
	c.pubsubHub.Publish(channel, string(data))
	return nil
}

// Subscribe listens on channels until ctx is done or the subscription is
// closed. Both cache modes deliver through the same Subscription type.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *Subscription {
	if c.client == nil {
		return c.pubsubHub.Subscribe(ctx, channels...)
	}

	ps := c.client.Subscribe(ctx, channels...)
	sub := newSubscription(channels)
	go func() {
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-sub.closeCh:
				return
			case msg, ok := <-in:
				if !ok {
					sub.Close()
					return
				}
				sub.send(&Message{Channel: msg.Channel, Payload: msg.Payload})
			}
		}
	}()
	return sub
}

func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if c.client != nil {
		return c.client.Ping(ctx).Err()
	}
	return nil
}

func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	c.memory.Purge()
	return nil
}
