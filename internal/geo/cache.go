package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// resultCache is the slice of a key/value store the cached provider needs.
type resultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedProvider serves repeated lookups from a cache and only stores successful answers.
type CachedProvider struct {
	inner  Provider
	cache  resultCache
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisCachedProvider wraps inner with a Redis read-through cache.
func NewRedisCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	return newCachedProvider(inner, redisCache{rdb: rdb}, ttl, logger)
}

func newCachedProvider(inner Provider, cache resultCache, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		prefix: "geo",
		logger: logger.With("module", "geo.cache"),
	}
}

// Lookup returns a cached result for ip when present, otherwise asks the inner provider.
func (p *CachedProvider) Lookup(ctx context.Context, ip string) (Result, error) {
	key := p.prefix + ":" + ip

	raw, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		p.logger.WarnContext(ctx, "geo cache read failed", "key", key, "error", err.Error())
	case ok:
		var cached Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		p.logger.WarnContext(ctx, "geo cache entry unreadable", "key", key)
	}

	res, err := p.inner.Lookup(ctx, ip)
	if err != nil {
		return Result{}, err
	}

	if encoded, err := json.Marshal(res); err == nil {
		if err := p.cache.Set(ctx, key, encoded, p.ttl); err != nil {
			p.logger.WarnContext(ctx, "geo cache write failed", "key", key, "error", err.Error())
		}
	}
	return res, nil
}

type redisCache struct {
	rdb *redis.Client
}

func (c redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// ConnectRedis initializes a Redis client from a redis:// URL or a bare host:port and pings it.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
