// Package ratelimit 提供按标识符划分的令牌桶限速
package ratelimit

import "time"

// RateLimiter 代表限速器接口
type RateLimiter interface {
	// AllowAt 检查指定标识符在now时刻是否允许通过
	// 没有配置预算的标识符始终通过
	AllowAt(now time.Time, id uint32) bool

	// TokensAt 获取指定标识符桶内的令牌快照，仅用于报告，不产生消耗
	// 第二个返回值指示该标识符是否存在已建立的桶
	TokensAt(now time.Time, id uint32) (float64, bool)

	// Reset 重置指定标识符的限速状态
	Reset(id uint32)

	// Len 获取已建立的桶数量
	Len() int

	// Type 获取限速器类型
	Type() string
}

// Config 代表单个标识符的限速配置
type Config struct {
	Rate  float64 // 每秒允许的帧数
	Burst int     // 突发容量上限
}

// LimitProvider 按标识符查询限速配置，查不到表示不限速
// 由调用方绑定到当前生效的规则集
type LimitProvider func(id uint32) (Config, bool)
