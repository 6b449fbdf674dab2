package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shengyanli1982/toolkit/pkg/httptool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"

	"github.com/shengyanli1982/canbridge-go/internal/constants"
	"github.com/shengyanli1982/canbridge-go/internal/metrics"
)

func newTestAdminRouter(t *testing.T, registry *metrics.MetricsRegistry, status StatusFunc) (*gin.Engine, *AdminService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := klog.NewKlogr()
	service := NewAdminService()
	service.Initialize(&logger, registry, status)

	router := gin.New()
	service.RegisterGroup(router.Group("/"))
	return router, service
}

func TestAdminServiceMetricsEndpoint(t *testing.T) {
	registry := metrics.NewMetricsRegistry()
	config := &metrics.Config{
		Type:      constants.MetricsTypePrometheus,
		Enabled:   true,
		Namespace: "canbridge",
	}
	collector, err := registry.CreateSharedCollector("test", config)
	require.NoError(t, err)
	collector.RecordRxFrame("can0")

	router, _ := newTestAdminRouter(t, registry, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "canbridge_frames_received_total"))
}

func TestAdminServiceMetricsWithoutRegistry(t *testing.T) {
	router, _ := newTestAdminRouter(t, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminServiceStatusEndpoint(t *testing.T) {
	status := func() map[string]interface{} {
		return map[string]interface{}{
			"rx": uint64(42),
			"tx": uint64(40),
		}
	}

	router, _ := newTestAdminRouter(t, metrics.NewMetricsRegistry(), status)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response httptool.BaseHttpResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(0), response.Code)

	data, ok := response.Data.(map[string]interface{})
	require.True(t, ok)

	service, ok := data["service"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, constants.AppName, service["name"])

	counters, ok := data["counters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), counters["rx"])
}

func TestAdminServiceLifecycle(t *testing.T) {
	_, service := newTestAdminRouter(t, metrics.NewMetricsRegistry(), nil)

	assert.False(t, service.IsRunning())
	service.Run()
	assert.True(t, service.IsRunning())

	// Run is idempotent
	service.Run()
	assert.True(t, service.IsRunning())

	service.Stop()
	assert.False(t, service.IsRunning())
	service.Stop()
	assert.False(t, service.IsRunning())
}
