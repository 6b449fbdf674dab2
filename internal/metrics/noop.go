package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// noopCollector 空操作指标收集器，用于禁用指标收集时的占位实现
type noopCollector struct {
	name string
}

// NewNoopCollector 创建新的空操作指标收集器实例
func NewNoopCollector() MetricsCollector {
	return &noopCollector{
		name: "noop",
	}
}

// 帧处理指标收集方法（空实现）

func (c *noopCollector) RecordRxFrame(bus string) {
	// 空实现
}

func (c *noopCollector) RecordTxFrame(bus string) {
	// 空实现
}

func (c *noopCollector) RecordFrameAction(bus, action string) {
	// 空实现
}

func (c *noopCollector) RecordIOError(bus, errorType string) {
	// 空实现
}

func (c *noopCollector) RecordInvalidFrame(bus string) {
	// 空实现
}

// 分析窗口指标收集方法（空实现）

func (c *noopCollector) RecordBusLoad(bus string, percent float64) {
	// 空实现
}

func (c *noopCollector) RecordPayloadLen(bus string, length int) {
	// 空实现
}

func (c *noopCollector) RecordWindowIdentifiers(bus string, count int) {
	// 空实现
}

// 工具方法

func (c *noopCollector) GetRegistry() *prometheus.Registry {
	// 返回空的注册器
	return prometheus.NewRegistry()
}

func (c *noopCollector) Name() string {
	return c.name
}

func (c *noopCollector) Close() error {
	// 空实现，无需清理资源
	return nil
}
