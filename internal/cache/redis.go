package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/match"
)

// MatchCache caches closest-match results in Redis, keyed by reference
// table fingerprint, k and the exact input vector.
type MatchCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMatchCache connects to Redis and verifies the connection
func NewMatchCache(config *Config, logger *zap.Logger) (*MatchCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	cache := newMatchCache(redis.NewClient(opts), config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Match cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

func newMatchCache(client *redis.Client, config *Config, logger *zap.Logger) *MatchCache {
	return &MatchCache{client: client, config: config, logger: logger}
}

// Get returns cached matches. Redis failures and corrupt entries count as misses.
func (mc *MatchCache) Get(ctx context.Context, fingerprint string, k int, input match.Vector) ([]match.Match, bool) {
	key := mc.Key(fingerprint, k, input)

	data, err := mc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		mc.misses.Add(1)
		mc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		mc.misses.Add(1)
		mc.logger.Warn("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		mc.misses.Add(1)
		mc.logger.Warn("Failed to unmarshal cached matches", zap.Error(err))
		mc.client.Del(ctx, key)
		return nil, false
	}

	mc.hits.Add(1)
	mc.logger.Debug("Cache hit", zap.String("key", key), zap.Int("matches", len(entry.Matches)))
	return entry.Matches, true
}

// Set caches matches with the configured TTL
func (mc *MatchCache) Set(ctx context.Context, fingerprint string, k int, input match.Vector, matches []match.Match) error {
	key := mc.Key(fingerprint, k, input)

	data, err := json.Marshal(Entry{
		Matches:  matches,
		CachedAt: time.Now(),
		TTL:      int64(mc.config.DefaultTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal matches for caching: %w", err)
	}

	if err := mc.client.Set(ctx, key, data, mc.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache matches: %w", err)
	}

	mc.logger.Debug("Matches cached", zap.String("key", key))
	return nil
}

// GetStats returns cache performance statistics
func (mc *MatchCache) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   mc.hits.Load(),
		Misses: mc.misses.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	info, err := mc.client.Info(ctx, "memory").Result()
	if err != nil {
		return stats, fmt.Errorf("failed to get Redis info: %w", err)
	}
	for _, line := range strings.Split(info, "\r\n") {
		if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != line {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	return stats, nil
}

// Clear removes every cached entry under the key prefix
func (mc *MatchCache) Clear(ctx context.Context) error {
	iter := mc.client.Scan(ctx, 0, mc.config.KeyPrefix+":match:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := mc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	mc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (mc *MatchCache) Close() error {
	if mc.client != nil {
		return mc.client.Close()
	}
	return nil
}

// Key returns the cache key for a query. Only bit-identical inputs share a
// key; -0 and +0 are treated as the same value.
func (mc *MatchCache) Key(fingerprint string, k int, input match.Vector) string {
	hasher := sha256.New()
	var buf [8]byte
	for _, v := range input {
		if v == 0 {
			v = 0
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		hasher.Write(buf[:])
	}
	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:match:%s:%d:%s", mc.config.KeyPrefix, fingerprint, k, hash[:16])
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
