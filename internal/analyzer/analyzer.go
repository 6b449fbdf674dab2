package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
	"github.com/shengyanli1982/canbridge-go/internal/constants"
	"github.com/shengyanli1982/canbridge-go/internal/metrics"
)

// ErrAnalyzerAlreadyStarted 分析器已启动错误
var ErrAnalyzerAlreadyStarted = errors.New(constants.ErrMsgAnalyzerAlreadyStarted)

// Exporter 代表窗口快照的导出目标
type Exporter interface {
	// Export 导出一个完成窗口的快照
	Export(bus string, snapshot *WindowSnapshot) error
}

// Options 代表分析器的运行参数
type Options struct {
	BusName        string        // 指标、日志和导出行使用的总线名称
	Bitrate        int           // 总线比特率（bps），用于负载估计
	RecvTimeout    time.Duration // 单次接收超时
	WindowInterval time.Duration // 统计窗口时长
	Logger         *logr.Logger  // 日志记录器，为nil时不输出日志
	Collector      metrics.MetricsCollector
	Exporters      []Exporter  // 可选的快照导出目标
	Capture        canbus.Sink // 可选的原始帧抓包目标
}

// setDefaults 为缺省参数填充默认值
func (o *Options) setDefaults() {
	if o.RecvTimeout <= 0 {
		o.RecvTimeout = constants.DefaultRecvTimeout * time.Millisecond
	}
	if o.WindowInterval <= 0 {
		o.WindowInterval = constants.DefaultWindowInterval * time.Millisecond
	}
	if o.Bitrate <= 0 {
		o.Bitrate = constants.DefaultBitrate
	}
	if o.Collector == nil {
		o.Collector = metrics.NewNoopCollector()
	}
	if o.Logger == nil {
		discard := logr.Discard()
		o.Logger = &discard
	}
}

// snapshotBuffer 快照通道的缓冲深度
const snapshotBuffer = 8

// Analyzer 代表独立的统计消费者：从自己的帧源拉帧，
// 按固定窗口结算统计并交给导出目标
// 窗口定时器独立于帧摄取，导出失败只计数，绝不拖慢摄取
type Analyzer struct {
	source  canbus.Source
	agg     *WindowAggregator
	opts    Options
	started atomic.Bool

	snapshots  chan *WindowSnapshot
	exportErrs atomic.Uint64
}

// New 创建新的分析器实例
func New(source canbus.Source, opts Options) (*Analyzer, error) {
	if source == nil {
		return nil, errors.New(constants.ErrMsgNilSource)
	}

	opts.setDefaults()

	return &Analyzer{
		source:    source,
		opts:      opts,
		snapshots: make(chan *WindowSnapshot, snapshotBuffer),
	}, nil
}

// Snapshots 获取窗口快照通道，发送是非阻塞的
func (a *Analyzer) Snapshots() <-chan *WindowSnapshot {
	return a.snapshots
}

// ExportErrors 获取导出失败的累计次数
func (a *Analyzer) ExportErrors() uint64 {
	return a.exportErrs.Load()
}

// Run 执行分析循环直到被取消或帧源消失
// 退出前结算最后一个不完整窗口，端点通过defer保证释放
func (a *Analyzer) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAnalyzerAlreadyStarted
	}

	a.agg = NewWindowAggregator(a.opts.Bitrate, time.Now())
	logger := a.opts.Logger
	logger.Info("Analyzer started",
		"bus", a.opts.BusName,
		"bitrate", a.opts.Bitrate,
		"window", a.opts.WindowInterval.String())

	defer func() {
		if err := a.source.Close(); err != nil {
			logger.Error(err, "Failed to close source", "bus", a.opts.BusName)
		}
		if a.opts.Capture != nil {
			if err := a.opts.Capture.Close(); err != nil {
				logger.Error(err, "Failed to close capture sink", "bus", a.opts.BusName)
			}
		}
		// 结算最后一个不完整窗口
		a.completeWindow(time.Now())
		logger.Info("Analyzer stopped", "bus", a.opts.BusName)
	}()

	ticker := time.NewTicker(a.opts.WindowInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := a.source.Receive(a.opts.RecvTimeout)
		switch {
		case err == nil:
			a.observe(frame)
		case errors.Is(err, canbus.ErrTimeout):
			// 空轮询，继续
		case errors.Is(err, canbus.ErrClosed):
			return fmt.Errorf("source bus %s gone: %w", a.opts.BusName, err)
		default:
			a.opts.Collector.RecordIOError(a.opts.BusName, constants.ErrorTypeReceive)
		}

		// 窗口结算走独立定时器，绝不阻塞帧摄取
		select {
		case <-ticker.C:
			a.completeWindow(time.Now())
		default:
		}
	}
}

// observe 摄取一帧：校验、聚合、可选抓包
func (a *Analyzer) observe(frame canbus.Frame) {
	if err := frame.Validate(); err != nil {
		a.opts.Collector.RecordInvalidFrame(a.opts.BusName)
		return
	}

	a.agg.Observe(frame)
	a.opts.Collector.RecordPayloadLen(a.opts.BusName, len(frame.Data))

	if a.opts.Capture != nil {
		if err := a.opts.Capture.Send(frame); err != nil {
			a.opts.Collector.RecordIOError(a.opts.BusName, constants.ErrorTypeSend)
		}
	}
}

// completeWindow 结算当前窗口并分发快照
func (a *Analyzer) completeWindow(end time.Time) {
	snapshot := a.agg.Tick(end)

	a.opts.Collector.RecordBusLoad(a.opts.BusName, snapshot.BusLoadPct)
	a.opts.Collector.RecordWindowIdentifiers(a.opts.BusName, len(snapshot.PerID))

	a.opts.Logger.Info("Window completed",
		"bus", a.opts.BusName,
		"duration", snapshot.Duration.String(),
		"identifiers", len(snapshot.PerID),
		"busLoadPct", fmt.Sprintf("%.1f", snapshot.BusLoadPct))

	for _, exporter := range a.opts.Exporters {
		if err := exporter.Export(a.opts.BusName, snapshot); err != nil {
			a.exportErrs.Add(1)
			a.opts.Logger.Error(err, "Failed to export window snapshot", "bus", a.opts.BusName)
		}
	}

	// 非阻塞发布：没人消费就放弃，换取摄取路径永不停顿
	select {
	case a.snapshots <- snapshot:
	default:
	}
}
