package service

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/internal/repository"
	"github.com/noah-isme/edu-resource-api/pkg/cache"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest("GET", "/api/resources", 200, 20*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/api/resources", 404, 40*time.Millisecond)
	m.RecordUpload("accepted", 1024)
	m.RecordUpload("rejected", 0)
	m.RecordDownload("direct")
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.UploadsTotal)
	assert.Equal(t, uint64(1), snap.DownloadsTotal)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordUpload("accepted", 2048)
	m.RecordCleanup("removed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `eduhub_resource_uploads_total{outcome="accepted"} 1`)
	assert.Contains(t, string(body), `eduhub_storage_cleanup_total{outcome="removed"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordUpload("accepted", 1)
	m.RecordDownload("signed")
	m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 503, rec.Code)
}

func TestCacheServiceRoundTripAndInvalidate(t *testing.T) {
	bc, err := cache.NewMemory(context.Background(), time.Minute)
	require.NoError(t, err)
	repo := repository.NewMemoryCacheRepository(bc)
	t.Cleanup(func() { _ = repo.Close() })
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "meta:tags", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "meta:tags", []string{"Exam"}, 0))
	hit, err = svc.Get(ctx, "meta:tags", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"Exam"}, out)

	require.NoError(t, svc.Invalidate(ctx, MetaCachePattern))
	hit, err = svc.Get(ctx, "meta:tags", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
}

func TestCacheServiceDisabled(t *testing.T) {
	svc := NewCacheService(nil, nil, 0, nil, false)
	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	require.NoError(t, svc.Invalidate(context.Background(), "*"))
}
