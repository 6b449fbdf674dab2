// Package server 实现可选的管理服务器，暴露监控指标和运行状态
package server

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/shengyanli1982/orbit"

	"github.com/shengyanli1982/canbridge-go/internal/metrics"
)

// AdminServer 代表管理服务器，提供监控指标和运行状态查询
type AdminServer struct {
	endpoint   string        // 服务器监听地址
	httpEngine *orbit.Engine // HTTP 引擎实例
	closeOnce  sync.Once     // 确保只关闭一次
	debug      bool          // 是否启用调试模式
	logger     *logr.Logger  // 日志记录器
	service    *AdminService // 管理服务实例
}

// NewAdminServer 创建新的管理服务器实例
// debug: 是否启用调试模式
// logger: 日志记录器
// address: 监听地址
// port: 监听端口
// registry: 共享指标注册器
// status: 运行状态快照回调
func NewAdminServer(debug bool, logger *logr.Logger, address string, port int, registry *metrics.MetricsRegistry, status StatusFunc) *AdminServer {
	endpoint := fmt.Sprintf("%s:%d", address, port)

	// 创建 Orbit 引擎配置
	cfg := orbit.NewConfig().
		WithLogger(logger).
		WithAddress(address).
		WithPort(uint16(port))

	// 创建引擎选项
	opts := orbit.DebugOptions()
	if !debug {
		opts = orbit.ReleaseOptions()
		cfg.WithRelease()
	}

	// 创建 HTTP 引擎
	engine := orbit.NewEngine(cfg, opts)

	// 创建并初始化管理服务
	svcs := NewAdminService()
	svcs.Initialize(logger, registry, status)

	// 注册服务到引擎
	engine.RegisterService(svcs)

	return &AdminServer{
		endpoint:   endpoint,
		httpEngine: engine,
		debug:      debug,
		logger:     logger,
		service:    svcs,
	}
}

// Start 启动管理服务器
func (s *AdminServer) Start() {
	if s.httpEngine.IsRunning() {
		s.logger.Error(ErrServerAlreadyStarted, "Admin server is already started")
		return
	}

	s.logger.Info("Starting admin server", "endpoint", s.endpoint)

	// 启动管理服务
	s.service.Run()

	// 启动 HTTP 引擎
	s.httpEngine.Run()

	// 重置关闭标志
	s.closeOnce = sync.Once{}

	s.logger.Info("Admin server started successfully", "endpoint", s.endpoint)
}

// Stop 停止管理服务器
func (s *AdminServer) Stop() {
	if !s.httpEngine.IsRunning() {
		s.logger.Info("Admin server is not running")
		return
	}

	s.logger.Info("Stopping admin server", "endpoint", s.endpoint)

	s.closeOnce.Do(func() {
		// 停止 HTTP 引擎
		s.httpEngine.Stop()

		// 停止管理服务
		s.service.Stop()

		s.logger.Info("Admin server stopped successfully", "endpoint", s.endpoint)
	})
}

// IsRunning 检查管理服务器是否正在运行
func (s *AdminServer) IsRunning() bool {
	return s.httpEngine.IsRunning()
}

// GetEndpoint 获取服务器监听地址
func (s *AdminServer) GetEndpoint() string {
	return s.endpoint
}
