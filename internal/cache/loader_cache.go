package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/glaucoma-screening-server/internal/domain"
)

const (
	catalogKey = "glaucoma:catalog:questions"
	adviceKey  = "glaucoma:catalog:advice"
)

// CachedLoader is a read-through decorator over a CatalogLoader with two
// tiers: an in-process expirable LRU for hot reads and Redis for sharing
// across instances. It owns the invalidation contract: admin mutations call
// InvalidateCatalog/InvalidateAdvice before returning, so no stale advice
// ever survives a write.
//
// Either tier failing degrades to the inner loader; caching never turns a
// healthy source into an error.
type CachedLoader struct {
	inner  domain.CatalogLoader
	redis  *redis.Client
	logger *logrus.Logger

	catalogMemo *expirable.LRU[string, []domain.Question]
	adviceMemo  *expirable.LRU[string, []domain.AdviceEntry]

	redisTTL time.Duration
}

// NewCachedLoader creates a new cached loader. The Redis client may be nil,
// leaving only the memory tier active.
func NewCachedLoader(inner domain.CatalogLoader, redisClient *redis.Client, config domain.CacheConfig, logger *logrus.Logger) *CachedLoader {
	size := config.MemorySize
	if size <= 0 {
		size = 256
	}
	memoryTTL := config.MemoryTTL
	if memoryTTL <= 0 {
		memoryTTL = time.Minute
	}

	return &CachedLoader{
		inner:       inner,
		redis:       redisClient,
		logger:      logger,
		catalogMemo: expirable.NewLRU[string, []domain.Question](size, nil, memoryTTL),
		adviceMemo:  expirable.NewLRU[string, []domain.AdviceEntry](size, nil, memoryTTL),
		redisTTL:    config.DefaultTTL,
	}
}

// NewRedisClient builds a Redis client from cache configuration and verifies
// connectivity
func NewRedisClient(config domain.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// LoadCatalog returns the cached catalog, falling through memory, Redis and
// finally the inner loader
func (c *CachedLoader) LoadCatalog(ctx context.Context) ([]domain.Question, error) {
	if cached, ok := c.catalogMemo.Get(catalogKey); ok {
		return cached, nil
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, catalogKey).Result()
		if err == nil {
			var questions []domain.Question
			if jsonErr := json.Unmarshal([]byte(val), &questions); jsonErr == nil {
				c.catalogMemo.Add(catalogKey, questions)
				return questions, nil
			}
			// Corrupted entry; drop it and refetch.
			c.redis.Del(ctx, catalogKey)
		} else if err != redis.Nil {
			c.logger.WithError(err).Warn("Redis catalog read failed, falling back to source")
		}
	}

	questions, err := c.inner.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	c.catalogMemo.Add(catalogKey, questions)
	c.storeRedis(ctx, catalogKey, questions)

	return questions, nil
}

// LoadAdvice returns the cached advice table, falling through the same tiers
func (c *CachedLoader) LoadAdvice(ctx context.Context) ([]domain.AdviceEntry, error) {
	if cached, ok := c.adviceMemo.Get(adviceKey); ok {
		return cached, nil
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, adviceKey).Result()
		if err == nil {
			var entries []domain.AdviceEntry
			if jsonErr := json.Unmarshal([]byte(val), &entries); jsonErr == nil {
				c.adviceMemo.Add(adviceKey, entries)
				return entries, nil
			}
			c.redis.Del(ctx, adviceKey)
		} else if err != redis.Nil {
			c.logger.WithError(err).Warn("Redis advice read failed, falling back to source")
		}
	}

	entries, err := c.inner.LoadAdvice(ctx)
	if err != nil {
		return nil, err
	}

	c.adviceMemo.Add(adviceKey, entries)
	c.storeRedis(ctx, adviceKey, entries)

	return entries, nil
}

// InvalidateCatalog drops both catalog tiers. Called by every question or
// option mutation before it returns.
func (c *CachedLoader) InvalidateCatalog(ctx context.Context) error {
	c.catalogMemo.Remove(catalogKey)
	if c.redis != nil {
		if err := c.redis.Del(ctx, catalogKey).Err(); err != nil {
			c.logger.WithError(err).Error("Failed to invalidate catalog in Redis")
			return err
		}
	}
	c.logger.Debug("Catalog cache invalidated")
	return nil
}

// InvalidateAdvice drops both advice tiers. Called by every advice table
// mutation before it returns.
func (c *CachedLoader) InvalidateAdvice(ctx context.Context) error {
	c.adviceMemo.Remove(adviceKey)
	if c.redis != nil {
		if err := c.redis.Del(ctx, adviceKey).Err(); err != nil {
			c.logger.WithError(err).Error("Failed to invalidate advice table in Redis")
			return err
		}
	}
	c.logger.Debug("Advice cache invalidated")
	return nil
}

// storeRedis writes a value to the Redis tier, logging instead of failing on
// error
func (c *CachedLoader) storeRedis(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal cache value")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.redisTTL).Err(); err != nil {
		c.logger.WithError(err).Warn("Redis cache write failed")
	}
}
