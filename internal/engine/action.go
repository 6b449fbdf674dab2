// Package engine 实现按规则集对单帧求值的规则引擎
package engine

import "github.com/shengyanli1982/canbridge-go/internal/canbus"

// Verdict 代表规则引擎对单帧的判定结果
type Verdict int

const (
	// VerdictForward 原样转发
	VerdictForward Verdict = iota

	// VerdictForwardRemapped 替换标识符后转发，载荷和时间戳保持不变
	VerdictForwardRemapped

	// VerdictDrop 命中丢弃规则，帧不会到达输出端
	VerdictDrop

	// VerdictRateLimited 限速预算耗尽，帧被丢弃
	VerdictRateLimited
)

// String 返回判定结果的文本形式，用于日志和指标标签
func (v Verdict) String() string {
	switch v {
	case VerdictForward:
		return "forward"
	case VerdictForwardRemapped:
		return "remap"
	case VerdictDrop:
		return "drop"
	case VerdictRateLimited:
		return "ratelimit"
	default:
		return "unknown"
	}
}

// Forwardable 检查该判定是否允许帧继续到达输出端
func (v Verdict) Forwardable() bool {
	return v == VerdictForward || v == VerdictForwardRemapped
}

// Action 代表一次求值的完整结果：判定加上（可能被重映射的）输出帧
type Action struct {
	Verdict Verdict
	Frame   canbus.Frame
}
