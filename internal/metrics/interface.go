// Package metrics 提供桥和分析器共用的指标收集抽象
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shengyanli1982/canbridge-go/internal/constants"
)

// MetricsCollector 代表指标收集器接口，定义统一的指标收集行为
// 所有方法都必须是非阻塞的，收集动作绝不能拖慢帧处理路径
type MetricsCollector interface {
	// 帧处理指标收集方法

	// RecordRxFrame 记录一帧接收
	// bus: 总线名称
	RecordRxFrame(bus string)

	// RecordTxFrame 记录一帧发送
	// bus: 总线名称
	RecordTxFrame(bus string)

	// RecordFrameAction 记录规则引擎的一次判定
	// bus: 总线名称
	// action: 判定结果（forward, remap, drop, ratelimit）
	RecordFrameAction(bus, action string)

	// RecordIOError 记录一次瞬时I/O失败
	// bus: 总线名称
	// errorType: 错误类型（receive_error, send_error）
	RecordIOError(bus, errorType string)

	// RecordInvalidFrame 记录一帧在入口被拒绝的非法帧
	// bus: 总线名称
	RecordInvalidFrame(bus string)

	// 分析窗口指标收集方法

	// RecordBusLoad 记录窗口总线负载估计
	// bus: 总线名称
	// percent: 负载百分比，估计误差下可能超过100，按原值上报
	RecordBusLoad(bus string, percent float64)

	// RecordPayloadLen 记录单帧载荷长度
	// bus: 总线名称
	// length: 载荷字节数
	RecordPayloadLen(bus string, length int)

	// RecordWindowIdentifiers 记录窗口内观察到的标识符数量
	// bus: 总线名称
	// count: 标识符数量
	RecordWindowIdentifiers(bus string, count int)

	// 工具方法

	// GetRegistry 获取 Prometheus 注册器，用于管理端点暴露
	GetRegistry() *prometheus.Registry

	// Name 获取收集器名称
	Name() string

	// Close 关闭收集器并清理资源
	Close() error
}

// MetricsCollectorFactory 代表指标收集器工厂接口
type MetricsCollectorFactory interface {
	// Create 根据配置创建指标收集器
	// config: 指标收集器配置
	Create(config *Config) (MetricsCollector, error)
}

// Config 代表指标收集器配置
type Config struct {
	// Type 指标收集器类型（prometheus, noop）
	Type string `yaml:"type" json:"type"`

	// Enabled 是否启用指标收集
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Namespace 指标命名空间前缀
	Namespace string `yaml:"namespace" json:"namespace"`

	// Subsystem 指标子系统名称
	Subsystem string `yaml:"subsystem" json:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Type:      constants.MetricsTypeNoop,
		Enabled:   true,
		Namespace: constants.MetricsNamespace,
		Subsystem: "",
	}
}
