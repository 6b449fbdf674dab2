package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// tokenBucketLimiter 基于token bucket算法的限速器实现
// 桶在首次观察到对应标识符的帧时惰性建立，初始为满容量，
// 之后按 经过时间×速率 补充并以容量为上限；时间取自帧的单调时间戳，
// 不受墙钟回拨影响
type tokenBucketLimiter struct {
	mu       sync.RWMutex
	limiters map[uint32]*rate.Limiter
	provider LimitProvider
}

// NewTokenBucketLimiter 创建新的token bucket限速器实例
// provider: 按标识符查询预算的回调
func NewTokenBucketLimiter(provider LimitProvider) RateLimiter {
	return &tokenBucketLimiter{
		limiters: make(map[uint32]*rate.Limiter),
		provider: provider,
	}
}

// AllowAt 检查指定标识符在now时刻是否允许通过
func (l *tokenBucketLimiter) AllowAt(now time.Time, id uint32) bool {
	limiter := l.getLimiter(id)
	if limiter == nil {
		// 未配置预算的标识符不设桶，始终放行
		return true
	}
	return limiter.AllowN(now, 1)
}

// TokensAt 获取指定标识符桶内的令牌快照
func (l *tokenBucketLimiter) TokensAt(now time.Time, id uint32) (float64, bool) {
	l.mu.RLock()
	limiter, exists := l.limiters[id]
	l.mu.RUnlock()

	if !exists {
		return 0, false
	}
	return limiter.TokensAt(now), true
}

// Reset 重置指定标识符的限速状态
func (l *tokenBucketLimiter) Reset(id uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.limiters, id)
}

// Len 获取已建立的桶数量
func (l *tokenBucketLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.limiters)
}

// Type 获取限速器类型
func (l *tokenBucketLimiter) Type() string {
	return "token_bucket"
}

// getLimiter 获取或创建指定标识符的限速器，无预算时返回nil
func (l *tokenBucketLimiter) getLimiter(id uint32) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[id]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	cfg, limited := l.provider(id)
	if !limited {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// 双重检查
	if limiter, exists := l.limiters[id]; exists {
		return limiter
	}

	// 创建新的限速器
	limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	l.limiters[id] = limiter

	return limiter
}
