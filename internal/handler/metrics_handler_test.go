package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/advising-api/internal/service"
)

type pingStub struct{ err error }

func (p pingStub) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewMetricsHandler(service.NewMetricsService(), pingStub{})
	router.GET("/metrics", h.Prometheus)
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)

	for _, path := range []string{"/metrics", "/health", "/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsHandlerNotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewMetricsHandler(nil, pingStub{err: errors.New("connection refused")})
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
