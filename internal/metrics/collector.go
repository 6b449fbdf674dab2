package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// prometheusCollector 基于 Prometheus 的指标收集器实现
type prometheusCollector struct {
	name     string
	registry *prometheus.Registry
	config   *Config
	mu       sync.RWMutex

	// 帧处理指标
	framesReceivedTotal    *prometheus.CounterVec
	framesTransmittedTotal *prometheus.CounterVec
	frameActionsTotal      *prometheus.CounterVec
	ioErrorsTotal          *prometheus.CounterVec
	invalidFramesTotal     *prometheus.CounterVec

	// 分析窗口指标
	busLoadPercent     *prometheus.GaugeVec
	payloadLengthBytes *prometheus.HistogramVec
	windowIdentifiers  *prometheus.GaugeVec
}

// NewPrometheusCollectorWithRegistry 创建使用指定注册器的 Prometheus 指标收集器实例
func NewPrometheusCollectorWithRegistry(config *Config, registry *prometheus.Registry) (MetricsCollector, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	collector := &prometheusCollector{
		name:     "prometheus",
		registry: registry,
		config:   config,
	}

	if err := collector.initMetrics(); err != nil {
		return nil, err
	}

	return collector, nil
}

// NewPrometheusCollector 创建使用独立注册器的 Prometheus 指标收集器实例
func NewPrometheusCollector(config *Config) (MetricsCollector, error) {
	return NewPrometheusCollectorWithRegistry(config, prometheus.NewRegistry())
}

// initMetrics 初始化所有 Prometheus 指标
func (c *prometheusCollector) initMetrics() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 构建指标名称前缀
	prefix := c.config.Namespace
	if c.config.Subsystem != "" {
		prefix = c.config.Namespace + "_" + c.config.Subsystem
	}

	// 帧处理指标
	c.framesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_frames_received_total",
			Help: "Total number of frames pulled from the input bus",
		},
		[]string{"bus"},
	)

	c.framesTransmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_frames_transmitted_total",
			Help: "Total number of frames written to the output bus",
		},
		[]string{"bus"},
	)

	c.frameActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_frame_actions_total",
			Help: "Total number of rule engine verdicts by action",
		},
		[]string{"bus", "action"},
	)

	c.ioErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_io_errors_total",
			Help: "Total number of transient bus I/O failures",
		},
		[]string{"bus", "type"},
	)

	c.invalidFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_invalid_frames_total",
			Help: "Total number of malformed frames rejected at ingestion",
		},
		[]string{"bus"},
	)

	// 分析窗口指标
	c.busLoadPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_bus_load_percent",
			Help: "Estimated bus load of the last completed window",
		},
		[]string{"bus"},
	)

	c.payloadLengthBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_payload_length_bytes",
			Help:    "Distribution of frame payload lengths",
			Buckets: prometheus.LinearBuckets(0, 1, 9),
		},
		[]string{"bus"},
	)

	c.windowIdentifiers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_window_identifiers",
			Help: "Number of identifiers observed in the last completed window",
		},
		[]string{"bus"},
	)

	// 注册所有指标
	collectors := []prometheus.Collector{
		c.framesReceivedTotal,
		c.framesTransmittedTotal,
		c.frameActionsTotal,
		c.ioErrorsTotal,
		c.invalidFramesTotal,
		c.busLoadPercent,
		c.payloadLengthBytes,
		c.windowIdentifiers,
	}
	for _, collector := range collectors {
		if err := c.registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

// 帧处理指标收集方法

func (c *prometheusCollector) RecordRxFrame(bus string) {
	c.framesReceivedTotal.WithLabelValues(bus).Inc()
}

func (c *prometheusCollector) RecordTxFrame(bus string) {
	c.framesTransmittedTotal.WithLabelValues(bus).Inc()
}

func (c *prometheusCollector) RecordFrameAction(bus, action string) {
	c.frameActionsTotal.WithLabelValues(bus, action).Inc()
}

func (c *prometheusCollector) RecordIOError(bus, errorType string) {
	c.ioErrorsTotal.WithLabelValues(bus, errorType).Inc()
}

func (c *prometheusCollector) RecordInvalidFrame(bus string) {
	c.invalidFramesTotal.WithLabelValues(bus).Inc()
}

// 分析窗口指标收集方法

func (c *prometheusCollector) RecordBusLoad(bus string, percent float64) {
	c.busLoadPercent.WithLabelValues(bus).Set(percent)
}

func (c *prometheusCollector) RecordPayloadLen(bus string, length int) {
	c.payloadLengthBytes.WithLabelValues(bus).Observe(float64(length))
}

func (c *prometheusCollector) RecordWindowIdentifiers(bus string, count int) {
	c.windowIdentifiers.WithLabelValues(bus).Set(float64(count))
}

// 工具方法

func (c *prometheusCollector) GetRegistry() *prometheus.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.registry
}

func (c *prometheusCollector) Name() string {
	return c.name
}

func (c *prometheusCollector) Close() error {
	// Prometheus 指标无需显式清理
	return nil
}
