package server

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shengyanli1982/canbridge-go/internal/constants"
	"github.com/shengyanli1982/canbridge-go/internal/metrics"
	"github.com/shengyanli1982/canbridge-go/internal/response"
)

// StatusFunc 返回当前运行状态的快照，由调用方提供计数器数据
type StatusFunc func() map[string]interface{}

// AdminService 代表管理服务，提供指标和状态查询功能
type AdminService struct {
	mu              sync.RWMutex
	logger          *logr.Logger
	metricsRegistry *metrics.MetricsRegistry // 指标注册器
	status          StatusFunc               // 运行状态快照回调
	startTime       time.Time
	running         bool
}

// NewAdminService 创建新的管理服务实例
func NewAdminService() *AdminService {
	return &AdminService{
		startTime: time.Now(),
	}
}

// Initialize 初始化管理服务
func (s *AdminService) Initialize(logger *logr.Logger, registry *metrics.MetricsRegistry, status StatusFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger = logger
	s.metricsRegistry = registry
	s.status = status
}

// RegisterGroup 注册路由组和处理器
// 注意: health check 通过 /ping 端点由 orbit 框架自动提供
func (s *AdminService) RegisterGroup(g *gin.RouterGroup) {
	// 统一指标端点（替代 orbit 框架的默认 /metrics）
	g.GET("/metrics", s.handleMetrics)

	// 详细状态端点
	g.GET("/status", s.handleStatus)
}

// Run 启动管理服务
func (s *AdminService) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	if s.logger != nil {
		s.logger.Info("Admin service started")
	}
}

// Stop 停止管理服务
func (s *AdminService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	if s.logger != nil {
		s.logger.Info("Admin service stopped")
	}
}

// IsRunning 检查服务是否运行中
func (s *AdminService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// handleMetrics 处理指标请求
func (s *AdminService) handleMetrics(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.metricsRegistry == nil {
		response.Error(response.CodeNotFound, "metrics registry not available").JSON(c, http.StatusNotFound)
		return
	}

	// 获取全局指标注册器
	registry := s.metricsRegistry.GetRegistry()
	if registry == nil {
		response.Error(response.CodeInternalError, "metrics registry not initialized").JSON(c, http.StatusInternalServerError)
		return
	}

	// 使用 Prometheus HTTP 处理器
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})

	// 将 Gin 上下文转换为标准 HTTP 处理器
	handler.ServeHTTP(c.Writer, c.Request)
}

// handleStatus 处理详细状态请求
func (s *AdminService) handleStatus(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statusInfo := gin.H{
		"service": gin.H{
			"name":       constants.AppName,
			"uptime":     time.Since(s.startTime).Seconds(),
			"start_time": s.startTime.Format(time.RFC3339),
		},
		"runtime": gin.H{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}

	if s.status != nil {
		statusInfo["counters"] = s.status()
	}

	response.Success(statusInfo).JSON(c, http.StatusOK)
}
