package zmqmask

import (
	"context"
	"time"
)

const (
	minRetryDelay = 100 * time.Millisecond
	maxRetryDelay = 2 * time.Second
)

// backoff 接收出错后的等待时间，连续失败时翻倍，封顶 maxRetryDelay
type backoff struct {
	delay    time.Duration
	failures int
}

// next 记一次失败并返回这次应等待的时间
func (b *backoff) next() time.Duration {
	b.failures++
	switch {
	case b.delay == 0:
		b.delay = minRetryDelay
	case b.delay < maxRetryDelay:
		b.delay *= 2
		if b.delay > maxRetryDelay {
			b.delay = maxRetryDelay
		}
	}
	return b.delay
}

// shouldLog 只在第 1、2、4、8… 次连续失败时打日志
func (b *backoff) shouldLog() bool {
	return b.failures&(b.failures-1) == 0
}

func (b *backoff) reset() {
	b.delay = 0
	b.failures = 0
}

// wait 等待 d，ctx 结束时提前返回 false
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
