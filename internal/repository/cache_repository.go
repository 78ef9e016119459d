package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
)

const unlinkBatch = 100

// CacheRepository stores JSON payloads in Redis. A nil client makes every
// read a miss and every write a no-op.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeCached(key, raw, dest)
}

func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := encodeCached(key, value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern scans for keys matching the glob and unlinks them in batches.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}
	var (
		batch   []string
		removed int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := r.client.Unlink(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis unlink %s: %w", pattern, err)
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, unlinkBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == unlinkBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return err
	}
	r.logger.Debug("cache keys invalidated", zap.String("pattern", pattern), zap.Int("removed", removed))
	return nil
}

func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func encodeCached(key string, value interface{}) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache value %s: %w", key, err)
	}
	return payload, nil
}

func decodeCached(key string, raw []byte, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode cache value %s: %w", key, err)
	}
	return nil
}

// MemoryCacheRepository stores JSON payloads in an in-process bigcache.
// bigcache has a single life window, so each entry carries its own expiry.
type MemoryCacheRepository struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

type memoryEntry struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewMemoryCacheRepository wraps a bigcache instance.
func NewMemoryCacheRepository(cache *bigcache.BigCache) *MemoryCacheRepository {
	return &MemoryCacheRepository{cache: cache, now: time.Now}
}

// Get treats entries past their own expiry as misses and evicts them.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	if r.cache == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("memory get %s: %w", key, err)
	}

	var entry memoryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return fmt.Errorf("unmarshal cache entry for %s: %w", key, err)
	}
	if !entry.ExpiresAt.IsZero() && r.now().After(entry.ExpiresAt) {
		_ = r.cache.Delete(key)
		return appErrors.ErrCacheMiss
	}
	return decodeCached(key, entry.Payload, dest)
}

// Set stores value until ttl elapses. A non-positive ttl falls back to the
// bigcache life window.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.cache == nil {
		return nil
	}
	payload, err := encodeCached(key, value)
	if err != nil {
		return err
	}
	entry := memoryEntry{Payload: payload}
	if ttl > 0 {
		entry.ExpiresAt = r.now().Add(ttl)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry for %s: %w", key, err)
	}
	if err := r.cache.Set(key, raw); err != nil {
		return fmt.Errorf("memory set %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern removes entries whose key matches the glob pattern.
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	if r.cache == nil {
		return nil
	}
	var keys []string
	iter := r.cache.Iterator()
	for iter.SetNext() {
		info, err := iter.Value()
		if err != nil {
			return fmt.Errorf("memory iterate: %w", err)
		}
		if ok, _ := path.Match(pattern, info.Key()); ok {
			keys = append(keys, info.Key())
		}
	}
	for _, key := range keys {
		if err := r.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return fmt.Errorf("memory delete %s: %w", key, err)
		}
	}
	return nil
}

// Close releases the cache memory.
func (r *MemoryCacheRepository) Close() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Close()
}
