// Package analyzer 实现按固定时间窗口聚合的总线流量统计
package analyzer

import (
	"math"
	"sort"
	"time"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
	"github.com/shengyanli1982/canbridge-go/internal/constants"
)

// IDStats 代表单个标识符在一个完成窗口内的统计量
type IDStats struct {
	Count    uint64  // 窗口内的帧数
	FPS      float64 // 帧率（帧/秒）
	AvgLen   float64 // 平均载荷长度（字节）
	JitterMS float64 // 到达间隔的总体标准差（毫秒），样本不足两个时为0
}

// WindowSnapshot 代表一个完成窗口的不可变快照，由调用方消费后丢弃
type WindowSnapshot struct {
	Start      time.Time           // 窗口起点
	End        time.Time           // 窗口终点
	Duration   time.Duration       // 实际窗口时长
	BusLoadPct float64             // 总线负载估计百分比，不做上限截断
	PerID      map[uint32]IDStats  // 按标识符的统计量
}

// SortedIDs 返回升序排列的标识符列表，用于确定性的报告输出
func (s *WindowSnapshot) SortedIDs() []uint32 {
	ids := make([]uint32, 0, len(s.PerID))
	for id := range s.PerID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// idState 代表单个标识符的窗口内累积状态
type idState struct {
	count  uint64
	bytes  uint64
	lastTS time.Time
	gapsMS []float64
}

// WindowAggregator 代表窗口聚合器
// 非并发安全：Observe和Tick必须在同一个goroutine中调用
//
// 窗口边界契约：每次Tick后按标识符的全部状态被丢弃，包括最后到达时间戳；
// 新窗口的第一帧不产生到达间隔样本，跨窗口的间隔不参与抖动计算
// 该契约由 TestWindowAggregator_BoundaryDiscardsLastSeen 固定
type WindowAggregator struct {
	bitrate      int
	byID         map[uint32]*idState
	bitsInWindow uint64
	windowStart  time.Time
}

// NewWindowAggregator 创建新的窗口聚合器实例
// bitrate: 总线比特率（bps），<=0时使用默认值
// start: 第一个窗口的起点
func NewWindowAggregator(bitrate int, start time.Time) *WindowAggregator {
	if bitrate <= 0 {
		bitrate = constants.DefaultBitrate
	}
	return &WindowAggregator{
		bitrate:     bitrate,
		byID:        make(map[uint32]*idState),
		windowStart: start,
	}
}

// FrameBits 估计一帧在线上占用的位数
// 固定开销近似仲裁、控制、CRC和ACK等字段，忽略位填充
func FrameBits(payloadLen int) int {
	return constants.FrameOverheadBits + payloadLen*constants.BitsPerByte
}

// Observe 将一帧计入当前窗口的运行状态
func (a *WindowAggregator) Observe(frame canbus.Frame) {
	state, exists := a.byID[frame.ID]
	if !exists {
		state = &idState{}
		a.byID[frame.ID] = state
	}

	state.count++
	state.bytes += uint64(len(frame.Data))

	if !state.lastTS.IsZero() {
		gap := frame.Timestamp.Sub(state.lastTS)
		state.gapsMS = append(state.gapsMS, float64(gap)/float64(time.Millisecond))
	}
	state.lastTS = frame.Timestamp

	a.bitsInWindow += uint64(FrameBits(len(frame.Data)))
}

// Tick 结算当前窗口：计算每个标识符的统计量和总线负载，
// 返回快照并为下一个窗口重置全部状态
func (a *WindowAggregator) Tick(windowEnd time.Time) *WindowSnapshot {
	duration := windowEnd.Sub(a.windowStart)
	seconds := duration.Seconds()
	if seconds <= 0 {
		seconds = math.SmallestNonzeroFloat64
	}

	snapshot := &WindowSnapshot{
		Start:    a.windowStart,
		End:      windowEnd,
		Duration: duration,
		PerID:    make(map[uint32]IDStats, len(a.byID)),
	}

	for id, state := range a.byID {
		snapshot.PerID[id] = IDStats{
			Count:    state.count,
			FPS:      float64(state.count) / seconds,
			AvgLen:   float64(state.bytes) / float64(state.count),
			JitterMS: stddev(state.gapsMS),
		}
	}

	// 负载估计误差下可能超过100%，按原值上报，不截断
	snapshot.BusLoadPct = float64(a.bitsInWindow) / (float64(a.bitrate) * seconds) * 100.0

	a.byID = make(map[uint32]*idState)
	a.bitsInWindow = 0
	a.windowStart = windowEnd

	return snapshot
}

// Bitrate 获取配置的总线比特率
func (a *WindowAggregator) Bitrate() int {
	return a.bitrate
}

// stddev 计算总体标准差，样本不足两个时无定义，报告为0
func stddev(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		diff := s - mean
		sq += diff * diff
	}
	return math.Sqrt(sq / float64(len(samples)))
}
