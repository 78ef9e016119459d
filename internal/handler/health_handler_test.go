package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/edu-resource-api/internal/service"
)

type pingStub struct {
	err error
}

func (p pingStub) PingContext(context.Context) error { return p.err }

func TestHealthHandlerHealth(t *testing.T) {
	h := NewHealthHandler(service.NewMetricsService(), nil)

	rec := serve(h.Health, httptest.NewRequest(http.MethodGet, "/health", nil), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Server is running", env.Message)
}

func TestHealthHandlerReady(t *testing.T) {
	h := NewHealthHandler(nil, pingStub{})
	rec := serve(h.Ready, httptest.NewRequest(http.MethodGet, "/ready", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewHealthHandler(nil, pingStub{err: errors.New("dial tcp: refused")})
	rec = serve(h.Ready, httptest.NewRequest(http.MethodGet, "/ready", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database unavailable", decodeEnvelope(t, rec).Message)
}

func TestHealthHandlerPrometheusWithoutMetrics(t *testing.T) {
	h := NewHealthHandler(nil, nil)

	rec := serve(h.Prometheus, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
