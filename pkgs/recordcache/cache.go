// Package recordcache keeps attested records close to the verifier. Records are
// immutable once attested, so a hit never needs revalidation; only successful
// reads are stored.
package recordcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"github.com/codatta/codattaOnchainDataVerify/pkgs/metrics"
	"github.com/codatta/codattaOnchainDataVerify/pkgs/onchain"
	rediskeys "github.com/codatta/codattaOnchainDataVerify/pkgs/redis"
)

// CachedReader provides two-layer caching in front of a FingerprintReader
type CachedReader struct {
	next       onchain.FingerprintReader
	localCache *expirable.LRU[string, onchain.Record]
	redis      *redis.Client
	keys       *rediskeys.KeyBuilder
	ttl        time.Duration
}

// Config holds record cache configuration
type Config struct {
	Size int
	TTL  time.Duration
	// Redis is optional; nil keeps the cache process-local
	Redis *redis.Client
	// RecordContract namespaces the Redis keys
	RecordContract string
}

// New wraps next with a local LRU and, when configured, a Redis tier.
func New(next onchain.FingerprintReader, cfg Config) (*CachedReader, error) {
	if next == nil {
		return nil, errors.New("record cache needs a reader")
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("invalid record cache size %d", cfg.Size)
	}

	return &CachedReader{
		next:       next,
		localCache: expirable.NewLRU[string, onchain.Record](cfg.Size, nil, cfg.TTL),
		redis:      cfg.Redis,
		keys:       rediskeys.NewKeyBuilder(cfg.RecordContract),
		ttl:        cfg.TTL,
	}, nil
}

// ReadFingerprint implements onchain.FingerprintReader.
func (c *CachedReader) ReadFingerprint(ctx context.Context, address, submissionID string) (onchain.Record, error) {
	key := c.keys.Record(address, submissionID)

	// Fast path: local LRU
	if record, ok := c.localCache.Get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("local", "hit").Inc()
		log.Debugf("Record cache hit (local): %s", key)
		return record, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("local", "miss").Inc()

	if c.redis != nil {
		record, ok := c.getRedis(ctx, key)
		if ok {
			c.localCache.Add(key, record)
			return record, nil
		}
	}

	record, err := c.next.ReadFingerprint(ctx, address, submissionID)
	if err != nil {
		return onchain.Record{}, err
	}

	c.localCache.Add(key, record)
	if c.redis != nil {
		c.setRedis(ctx, key, record)
	}
	return record, nil
}

func (c *CachedReader) getRedis(ctx context.Context, key string) (onchain.Record, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookupsTotal.WithLabelValues("redis", "miss").Inc()
		return onchain.Record{}, false
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("redis", "error").Inc()
		log.WithError(err).Warn("Redis record lookup failed, reading from chain")
		return onchain.Record{}, false
	}

	var record onchain.Record
	if err := json.Unmarshal(data, &record); err != nil || record.Fingerprint == "" {
		metrics.CacheLookupsTotal.WithLabelValues("redis", "error").Inc()
		log.WithField("key", key).Warn("Discarding unreadable cached record")
		return onchain.Record{}, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("redis", "hit").Inc()
	log.Debugf("Record cache hit (redis): %s", key)
	return record, true
}

func (c *CachedReader) setRedis(ctx context.Context, key string, record onchain.Record) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("Failed to store record in Redis")
	}
}

// GetStats reports cache occupancy; Redis keys are counted with SCAN
func (c *CachedReader) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"local_cache_size": c.localCache.Len(),
		"ttl_seconds":      c.ttl.Seconds(),
	}
	if c.redis == nil {
		return stats, nil
	}

	var cursor uint64
	var totalKeys int64
	for {
		keys, nextCursor, err := c.redis.Scan(ctx, cursor, c.keys.RecordPattern(), 100).Result()
		if err != nil {
			return nil, err
		}
		totalKeys += int64(len(keys))
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	stats["redis_record_keys"] = totalKeys
	return stats, nil
}

// ClearLocal clears the local LRU cache
func (c *CachedReader) ClearLocal() {
	c.localCache.Purge()
	log.Info("Local record cache cleared")
}
