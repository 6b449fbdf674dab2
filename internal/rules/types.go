// Package rules 负责整形规则文件的解析、校验和不可变规则集表示
package rules

import (
	"github.com/shengyanli1982/canbridge-go/internal/canbus"
)

// Limit 代表单个标识符的限速预算
type Limit struct {
	Rate  float64 // 每秒允许的帧数，必须大于0
	Burst int     // 突发容量（令牌桶容量），至少为1
}

// RuleSet 代表一次加载得到的完整策略：丢弃集合、重映射对和限速表
// 实例一经构造即不可变；规则热更新通过原子替换整个引用完成，
// 绝不原地修改，保证并发求值始终看到一致的策略
type RuleSet struct {
	drop   map[uint32]struct{}
	remap  map[uint32]uint32
	limits map[uint32]Limit
}

// FromParts 从已解析的组成部分构造规则集并执行交叉校验
// drop与remap的from端不允许引用同一标识符（语义二义）
func FromParts(drop []uint32, remap map[uint32]uint32, limits map[uint32]Limit) (*RuleSet, error) {
	rs := &RuleSet{
		drop:   make(map[uint32]struct{}, len(drop)),
		remap:  make(map[uint32]uint32, len(remap)),
		limits: make(map[uint32]Limit, len(limits)),
	}

	for _, id := range drop {
		rs.drop[id] = struct{}{}
	}
	for from, to := range remap {
		if from == to {
			return nil, newConfigError("actions.remap", "from and to are identical (%s)", canbus.FormatID(from))
		}
		if _, exists := rs.drop[from]; exists {
			return nil, newConfigError("actions.remap", "identifier %s also present in actions.drop", canbus.FormatID(from))
		}
		rs.remap[from] = to
	}
	for id, limit := range limits {
		if limit.Rate <= 0 {
			return nil, newConfigError("limits", "rate must be > 0 for %s", canbus.FormatID(id))
		}
		if limit.Burst < 1 {
			return nil, newConfigError("limits", "burst must be >= 1 for %s", canbus.FormatID(id))
		}
		rs.limits[id] = limit
	}

	return rs, nil
}

// Empty 返回空规则集实例，桥在该策略下表现为透明直通
func Empty() *RuleSet {
	rs, _ := FromParts(nil, nil, nil)
	return rs
}

// IsEmpty 检查规则集是否不含任何规则
func (rs *RuleSet) IsEmpty() bool {
	return len(rs.drop) == 0 && len(rs.remap) == 0 && len(rs.limits) == 0
}

// Dropped 检查标识符是否命中丢弃规则
func (rs *RuleSet) Dropped(id uint32) bool {
	_, exists := rs.drop[id]
	return exists
}

// Remapped 查询标识符的重映射目标
// 重映射只做单步替换，不做链式查找
func (rs *RuleSet) Remapped(id uint32) (uint32, bool) {
	to, exists := rs.remap[id]
	return to, exists
}

// LimitFor 查询标识符的限速预算，不存在时第二个返回值为false
func (rs *RuleSet) LimitFor(id uint32) (Limit, bool) {
	limit, exists := rs.limits[id]
	return limit, exists
}

// Counts 返回丢弃、重映射和限速规则的数量，用于启动日志
func (rs *RuleSet) Counts() (drop, remap, limits int) {
	return len(rs.drop), len(rs.remap), len(rs.limits)
}
