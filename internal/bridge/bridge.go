// Package bridge 实现输入总线到输出总线的转发循环
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
	"github.com/shengyanli1982/canbridge-go/internal/constants"
	"github.com/shengyanli1982/canbridge-go/internal/engine"
	"github.com/shengyanli1982/canbridge-go/internal/metrics"
)

// 桥相关错误定义
var (
	ErrNilSource            = errors.New(constants.ErrMsgNilSource)
	ErrNilSink              = errors.New(constants.ErrMsgNilSink)
	ErrBridgeAlreadyStarted = errors.New(constants.ErrMsgBridgeAlreadyStarted)
)

// snapshotBuffer 快照通道的缓冲深度，读取方迟到时保留最近几条
const snapshotBuffer = 8

// Snapshot 代表某一时刻桥计数器的快照
type Snapshot struct {
	Rx      uint64        // 从输入端拉取的帧数
	Tx      uint64        // 写入输出端的帧数
	Dropped uint64        // 被规则或限速丢弃的帧数
	Errors  uint64        // 瞬时I/O失败次数
	Invalid uint64        // 入口拒绝的非法帧数
	Elapsed time.Duration // 距离桥启动的时长
	Final   bool          // 是否为退出前的最后一次快照
}

// Options 代表桥的运行参数
type Options struct {
	BusName       string           // 指标和日志使用的总线名称
	RecvTimeout   time.Duration    // 单次接收超时，同时决定取消信号的响应延迟
	StatsInterval time.Duration    // 统计快照间隔
	SendRetry     *RetryOptions    // 可选的发送重试；nil表示单次失败只计数不重试
	Logger        *logr.Logger     // 日志记录器，为nil时不输出日志
	Collector     metrics.MetricsCollector
}

// setDefaults 为缺省参数填充默认值
func (o *Options) setDefaults() {
	if o.RecvTimeout <= 0 {
		o.RecvTimeout = constants.DefaultRecvTimeout * time.Millisecond
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = constants.DefaultStatsInterval * time.Millisecond
	}
	if o.Collector == nil {
		o.Collector = metrics.NewNoopCollector()
	}
	if o.Logger == nil {
		discard := logr.Discard()
		o.Logger = &discard
	}
}

// Bridge 代表转发桥：从输入端持续拉帧，经规则引擎判定后写到输出端
// 单个同步循环保证每个标识符的输出顺序与输入顺序一致；
// 统计报告走独立的定时器且从不阻塞帧摄取
type Bridge struct {
	input  canbus.Source
	output canbus.Sink
	engine *engine.Engine
	opts   Options

	rx      atomic.Uint64
	tx      atomic.Uint64
	dropped atomic.Uint64
	ioErrs  atomic.Uint64
	invalid atomic.Uint64

	snapshots chan Snapshot
	started   atomic.Bool
	startNano atomic.Int64
}

// New 创建新的转发桥实例
func New(input canbus.Source, output canbus.Sink, ruleEngine *engine.Engine, opts Options) (*Bridge, error) {
	if input == nil {
		return nil, ErrNilSource
	}
	if output == nil {
		return nil, ErrNilSink
	}
	if ruleEngine == nil {
		return nil, engine.ErrNilRuleSet
	}

	opts.setDefaults()

	return &Bridge{
		input:     input,
		output:    output,
		engine:    ruleEngine,
		opts:      opts,
		snapshots: make(chan Snapshot, snapshotBuffer),
	}, nil
}

// Snapshots 获取统计快照通道
// 发送始终是非阻塞的：没有及时消费的快照被放弃，换取摄取路径永不停顿
func (b *Bridge) Snapshots() <-chan Snapshot {
	return b.snapshots
}

// Counters 获取当前计数器快照
func (b *Bridge) Counters() Snapshot {
	elapsed := time.Duration(0)
	// 启动时间以原子的Unix纳秒存取，管理服务的并发读取无需加锁
	if startNano := b.startNano.Load(); startNano != 0 {
		elapsed = time.Since(time.Unix(0, startNano))
	}
	return Snapshot{
		Rx:      b.rx.Load(),
		Tx:      b.tx.Load(),
		Dropped: b.dropped.Load(),
		Errors:  b.ioErrs.Load(),
		Invalid: b.invalid.Load(),
		Elapsed: elapsed,
	}
}

// Run 执行转发循环直到被取消或遇到终止性I/O错误
// 取消后停止读取，不追赶在途帧，所有端点通过defer保证释放，
// 并在退出前发出最后一次快照
func (b *Bridge) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrBridgeAlreadyStarted
	}

	b.startNano.Store(time.Now().UnixNano())
	logger := b.opts.Logger
	logger.Info("Bridge started",
		"bus", b.opts.BusName,
		"recvTimeout", b.opts.RecvTimeout.String(),
		"statsInterval", b.opts.StatsInterval.String())

	defer func() {
		if err := b.input.Close(); err != nil {
			logger.Error(err, "Failed to close input bus", "bus", b.opts.BusName)
		}
		if err := b.output.Close(); err != nil {
			logger.Error(err, "Failed to close output bus", "bus", b.opts.BusName)
		}
		final := b.Counters()
		final.Final = true
		b.publish(final)
		logger.Info("Bridge stopped",
			"bus", b.opts.BusName,
			"rx", final.Rx, "tx", final.Tx,
			"dropped", final.Dropped, "errors", final.Errors)
	}()

	ticker := time.NewTicker(b.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := b.input.Receive(b.opts.RecvTimeout)
		switch {
		case err == nil:
			if err := b.handleFrame(frame); err != nil {
				// 输出接口消失：终止性错误，永不静默吸收
				return err
			}
		case errors.Is(err, canbus.ErrTimeout):
			// 空轮询，继续
		case errors.Is(err, canbus.ErrClosed):
			// 输入接口消失：终止性错误，永不静默吸收
			return fmt.Errorf("input bus %s gone: %w", b.opts.BusName, err)
		default:
			b.ioErrs.Add(1)
			b.opts.Collector.RecordIOError(b.opts.BusName, constants.ErrorTypeReceive)
		}

		// 统计报告走独立定时器，到期才发，绝不阻塞循环
		select {
		case <-ticker.C:
			snapshot := b.Counters()
			b.publish(snapshot)
			logger.Info("Bridge stats",
				"bus", b.opts.BusName,
				"rx", snapshot.Rx, "tx", snapshot.Tx,
				"dropped", snapshot.Dropped, "errors", snapshot.Errors)
		default:
		}
	}
}

// handleFrame 处理一帧：校验、求值、转发
// 只有输出接口消失才返回非nil错误，由Run终止循环
func (b *Bridge) handleFrame(frame canbus.Frame) error {
	b.rx.Add(1)
	b.opts.Collector.RecordRxFrame(b.opts.BusName)

	// 不变量校验：超长载荷等非法帧在入口被拒绝并计数，从不上抛
	if err := frame.Validate(); err != nil {
		b.invalid.Add(1)
		b.opts.Collector.RecordInvalidFrame(b.opts.BusName)
		return nil
	}

	action := b.engine.Evaluate(frame)
	if !action.Verdict.Forwardable() {
		b.dropped.Add(1)
		return nil
	}

	if err := b.send(action.Frame); err != nil {
		if errors.Is(err, canbus.ErrClosed) {
			return fmt.Errorf("output bus %s gone: %w", b.opts.BusName, err)
		}
		b.ioErrs.Add(1)
		b.opts.Collector.RecordIOError(b.opts.BusName, constants.ErrorTypeSend)
		return nil
	}

	b.tx.Add(1)
	b.opts.Collector.RecordTxFrame(b.opts.BusName)
	return nil
}

// publish 非阻塞地发布一次快照，通道满时放弃本条，等下一次机会
func (b *Bridge) publish(snapshot Snapshot) {
	select {
	case b.snapshots <- snapshot:
	default:
	}
}
