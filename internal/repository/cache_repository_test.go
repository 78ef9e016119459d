package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/pkg/cache"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
)

func newMemoryRepo(t *testing.T) *MemoryCacheRepository {
	t.Helper()
	bc, err := cache.NewMemory(context.Background(), time.Minute)
	require.NoError(t, err)
	repo := NewMemoryCacheRepository(bc)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMemoryCacheRepositorySetGet(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "meta:grades", []string{"Grade 1", "Grade 2"}, time.Minute))

	var out []string
	require.NoError(t, repo.Get(ctx, "meta:grades", &out))
	require.Equal(t, []string{"Grade 1", "Grade 2"}, out)

	err := repo.Get(ctx, "meta:subjects", &out)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestMemoryCacheRepositoryExpiresEntries(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()
	now := time.Now()
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Set(ctx, "meta:stats", 42, 30*time.Second))

	repo.now = func() time.Time { return now.Add(time.Minute) }
	var out int
	require.ErrorIs(t, repo.Get(ctx, "meta:stats", &out), appErrors.ErrCacheMiss)
}

func TestMemoryCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "meta:grades", 1, time.Minute))
	require.NoError(t, repo.Set(ctx, "meta:tags", 2, time.Minute))
	require.NoError(t, repo.Set(ctx, "resources:popular", 3, time.Minute))

	require.NoError(t, repo.DeleteByPattern(ctx, "meta:*"))

	var out int
	require.ErrorIs(t, repo.Get(ctx, "meta:grades", &out), appErrors.ErrCacheMiss)
	require.ErrorIs(t, repo.Get(ctx, "meta:tags", &out), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Get(ctx, "resources:popular", &out))
	require.Equal(t, 3, out)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var out []string
	require.ErrorIs(t, repo.Get(ctx, "meta:grades", &out), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "meta:grades", []string{"Grade 1"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "meta:*"))
	require.NoError(t, repo.Close())
}
