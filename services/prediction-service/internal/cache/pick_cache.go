package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/metrics"
	"github.com/stitts-dev/pick-engine/shared/types"
)

// PickCache keeps the day's published picks and the latest Elo table in Redis
type PickCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
	logger     *logrus.Entry
	metrics    *metrics.Recorder
}

// CacheConfig contains configuration for the pick cache
type CacheConfig struct {
	RedisURL     string        `json:"redis_url"`
	Database     int           `json:"database"`
	DefaultTTL   time.Duration `json:"default_ttl"`
	KeyPrefix    string        `json:"key_prefix"`
	PoolSize     int           `json:"pool_size"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// NewPickCache connects to Redis and pings it before returning
func NewPickCache(config CacheConfig, recorder *metrics.Recorder) (*PickCache, error) {
	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.DB = config.Database
	if config.PoolSize > 0 {
		opt.PoolSize = config.PoolSize
	}
	if config.ReadTimeout > 0 {
		opt.ReadTimeout = config.ReadTimeout
	}
	if config.WriteTimeout > 0 {
		opt.WriteTimeout = config.WriteTimeout
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := NewPickCacheWithClient(client, config.DefaultTTL, config.KeyPrefix, recorder)
	cache.logger.WithFields(logrus.Fields{
		"database":    config.Database,
		"default_ttl": config.DefaultTTL,
		"key_prefix":  config.KeyPrefix,
	}).Info("Pick cache initialized")

	return cache, nil
}

// NewPickCacheWithClient wraps an existing client
func NewPickCacheWithClient(client *redis.Client, ttl time.Duration, keyPrefix string, recorder *metrics.Recorder) *PickCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &PickCache{
		client:     client,
		defaultTTL: ttl,
		keyPrefix:  keyPrefix,
		logger:     logrus.WithField("component", "pick_cache"),
		metrics:    recorder,
	}
}

// GetPicks returns the cached picks for sport on date. found is false on a miss.
func (c *PickCache) GetPicks(ctx context.Context, sport types.Sport, date time.Time) ([]types.Pick, bool, error) {
	var picks []types.Pick
	found, err := c.get(ctx, "picks", c.picksKey(sport, date), &picks)
	if !found {
		return nil, found, err
	}
	return picks, true, nil
}

func (c *PickCache) SetPicks(ctx context.Context, sport types.Sport, date time.Time, picks []types.Pick) error {
	if picks == nil {
		picks = []types.Pick{}
	}
	return c.set(ctx, c.picksKey(sport, date), picks)
}

// InvalidatePicks drops the cached slate, used after grading changes pick statuses
func (c *PickCache) InvalidatePicks(ctx context.Context, sport types.Sport, date time.Time) error {
	key := c.picksKey(sport, date)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to invalidate picks")
		return err
	}
	return nil
}

// GetElo returns the cached current ratings for sport
func (c *PickCache) GetElo(ctx context.Context, sport types.Sport) ([]types.EloRating, bool, error) {
	var ratings []types.EloRating
	found, err := c.get(ctx, "elo", c.eloKey(sport), &ratings)
	if !found {
		return nil, found, err
	}
	return ratings, true, nil
}

func (c *PickCache) SetElo(ctx context.Context, sport types.Sport, ratings []types.EloRating) error {
	if ratings == nil {
		ratings = []types.EloRating{}
	}
	return c.set(ctx, c.eloKey(sport), ratings)
}

// Ping is used by the readiness probe
func (c *PickCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *PickCache) Close() error {
	return c.client.Close()
}

func (c *PickCache) get(ctx context.Context, kind, key string, dest interface{}) (bool, error) {
	start := time.Now()

	result, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.CacheLookup(kind, false)
			c.logger.WithField("key", key).Debug("Cache miss")
			return false, nil
		}
		c.logger.WithError(err).WithField("key", key).Error("Failed to read from cache")
		return false, err
	}

	if err := json.Unmarshal(result, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to unmarshal cached value")
		return false, err
	}

	c.metrics.CacheLookup(kind, true)
	c.logger.WithFields(logrus.Fields{
		"key":           key,
		"response_time": time.Since(start),
	}).Debug("Cache hit")

	return true, nil
}

func (c *PickCache) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, c.defaultTTL).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Failed to write to cache")
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"key":  key,
		"ttl":  c.defaultTTL,
		"size": len(data),
	}).Debug("Cached value")

	return nil
}

func (c *PickCache) picksKey(sport types.Sport, date time.Time) string {
	return fmt.Sprintf("%spicks:%s:%s", c.keyPrefix, sport, types.DateKey(date))
}

func (c *PickCache) eloKey(sport types.Sport) string {
	return fmt.Sprintf("%selo:%s", c.keyPrefix, sport)
}
