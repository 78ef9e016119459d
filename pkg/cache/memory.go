package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// NewMemory returns an in-process cache used when Redis is not configured.
// lifeWindow bounds how long any entry may live; callers can expire entries
// earlier on their own.
func NewMemory(ctx context.Context, lifeWindow time.Duration) (*bigcache.BigCache, error) {
	if lifeWindow <= 0 {
		lifeWindow = 10 * time.Minute
	}
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.HardMaxCacheSize = 64
	cfg.Verbose = false

	bc, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return bc, nil
}
