package bridge

import (
	"errors"
	"time"

	"github.com/shengyanli1982/canbridge-go/internal/canbus"
)

// RetryOptions 代表发送重试配置
// 核心路径没有任何隐式重试：只有调用方显式提供该配置时才会重试
type RetryOptions struct {
	Attempts int           // 总尝试次数（含首次），至少为1
	Delay    time.Duration // 首次重试前的等待，之后逐次翻倍
}

// send 发送一帧，按显式配置决定是否对瞬时失败重试
// ErrClosed属于终止性错误，从不重试
func (b *Bridge) send(frame canbus.Frame) error {
	retry := b.opts.SendRetry
	if retry == nil {
		return b.output.Send(frame)
	}

	attempts := retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := retry.Delay
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && delay > 0 {
			time.Sleep(delay)
			delay *= 2
		}

		lastErr = b.output.Send(frame)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, canbus.ErrClosed) {
			return lastErr
		}
	}
	return lastErr
}
