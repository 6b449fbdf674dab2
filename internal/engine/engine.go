package engine

import (
	"errors"
	"sync/atomic"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
	"github.com/shengyanli1982/canbridge-go/internal/constants"
	"github.com/shengyanli1982/canbridge-go/internal/metrics"
	"github.com/shengyanli1982/canbridge-go/internal/ratelimit"
	"github.com/shengyanli1982/canbridge-go/internal/rules"
)

// ErrNilRuleSet 空规则集错误
var ErrNilRuleSet = errors.New(constants.ErrMsgNilRuleSet)

// Stats 代表引擎计数器的一致性快照
type Stats struct {
	Forwarded   uint64 // 原样转发的帧数
	Remapped    uint64 // 重映射后转发的帧数
	Dropped     uint64 // 命中丢弃规则的帧数
	RateLimited uint64 // 被限速丢弃的帧数
}

// Engine 代表规则引擎，持有当前规则集和引擎自有的令牌桶表
// 规则集通过原子引用持有：未来的规则热更新以Swap整体替换，
// 并发求值任何时刻都只会看到一个一致的策略
type Engine struct {
	ruleSet atomic.Pointer[rules.RuleSet]
	limiter ratelimit.RateLimiter

	forwarded   atomic.Uint64
	remapped    atomic.Uint64
	dropped     atomic.Uint64
	rateLimited atomic.Uint64

	busName   string
	collector metrics.MetricsCollector
}

// New 创建新的规则引擎实例
// busName: 指标标签使用的总线名称
// collector: 指标收集器，为nil时使用空操作收集器
func New(ruleSet *rules.RuleSet, busName string, collector metrics.MetricsCollector) (*Engine, error) {
	if ruleSet == nil {
		return nil, ErrNilRuleSet
	}
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}

	e := &Engine{
		busName:   busName,
		collector: collector,
	}
	e.ruleSet.Store(ruleSet)

	// 桶表由引擎独占，预算从当前生效的规则集查询
	// 桶一经建立就伴随引擎整个运行期，只有重启才会重置
	e.limiter = ratelimit.NewTokenBucketLimiter(func(id uint32) (ratelimit.Config, bool) {
		limit, exists := e.ruleSet.Load().LimitFor(id)
		if !exists {
			return ratelimit.Config{}, false
		}
		return ratelimit.Config{Rate: limit.Rate, Burst: limit.Burst}, true
	})

	return e, nil
}

// Evaluate 对单帧求值并返回动作
// 优先级：丢弃规则 > 重映射 > 限速检查；限速以重映射前的原始标识符为键，
// 使预算始终锚定在语义来源上；未命中任何规则的帧原样通过
func (e *Engine) Evaluate(frame canbus.Frame) Action {
	ruleSet := e.ruleSet.Load()

	if ruleSet.Dropped(frame.ID) {
		e.dropped.Add(1)
		e.collector.RecordFrameAction(e.busName, VerdictDrop.String())
		return Action{Verdict: VerdictDrop, Frame: frame}
	}

	verdict := VerdictForward
	out := frame
	if to, exists := ruleSet.Remapped(frame.ID); exists {
		out = frame.WithID(to)
		verdict = VerdictForwardRemapped
	}

	if !e.limiter.AllowAt(frame.Timestamp, frame.ID) {
		e.rateLimited.Add(1)
		e.collector.RecordFrameAction(e.busName, VerdictRateLimited.String())
		return Action{Verdict: VerdictRateLimited, Frame: frame}
	}

	if verdict == VerdictForwardRemapped {
		e.remapped.Add(1)
	} else {
		e.forwarded.Add(1)
	}
	e.collector.RecordFrameAction(e.busName, verdict.String())

	return Action{Verdict: verdict, Frame: out}
}

// Swap 原子替换当前规则集
// 已建立的令牌桶保留原有预算，新标识符按新规则集建桶
func (e *Engine) Swap(ruleSet *rules.RuleSet) error {
	if ruleSet == nil {
		return ErrNilRuleSet
	}
	e.ruleSet.Store(ruleSet)
	return nil
}

// RuleSet 获取当前生效的规则集
func (e *Engine) RuleSet() *rules.RuleSet {
	return e.ruleSet.Load()
}

// Stats 获取计数器快照
func (e *Engine) Stats() Stats {
	return Stats{
		Forwarded:   e.forwarded.Load(),
		Remapped:    e.remapped.Load(),
		Dropped:     e.dropped.Load(),
		RateLimited: e.rateLimited.Load(),
	}
}

// Limiter 获取引擎自有的限速器，仅用于只读报告
func (e *Engine) Limiter() ratelimit.RateLimiter {
	return e.limiter
}
