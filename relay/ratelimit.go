package relay

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tradesync/logger"
	"tradesync/metrics"
)

// SlidingWindowLimiter 按客户端地址的滑动窗口限流器
// 状态为 地址 → 时间戳列表；窗口外的时间戳在每次判定前剪除
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time

	now func() time.Time // 测试注入
}

// NewSlidingWindowLimiter 创建限流器（默认窗口 1000ms，窗口内最多 5 次）
func NewSlidingWindowLimiter(window time.Duration, max int) *SlidingWindowLimiter {
	if window <= 0 {
		window = time.Second
	}
	if max <= 0 {
		max = 5
	}
	return &SlidingWindowLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow 记录本次请求时间戳，剪除窗口外的旧记录，
// 返回该地址窗口内的请求数是否仍未超过上限
func (l *SlidingWindowLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.hits[addr]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	l.hits[addr] = kept

	return len(kept) <= l.max
}

// SetLimits 热更新窗口参数
func (l *SlidingWindowLimiter) SetLimits(window time.Duration, max int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if window > 0 {
		l.window = window
	}
	if max > 0 {
		l.max = max
	}
}

// AddressCount 当前跟踪的地址数量
func (l *SlidingWindowLimiter) AddressCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// StartPruning 启动空闲地址的定期清理协程
// 地址表会随不同来源地址无限增长，长期运行必须剪除
func (l *SlidingWindowLimiter) StartPruning(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * l.window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.prune()
			}
		}
	}()
}

// prune 移除窗口内已无任何记录的地址
func (l *SlidingWindowLimiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for addr, stamps := range l.hits {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.hits, addr)
			removed++
		}
	}
	if removed > 0 {
		logger.Debug("🧹 限流器已清理 %d 个空闲地址（剩余 %d）", removed, len(l.hits))
	}
	metrics.SetRateLimitAddresses(len(l.hits))
}

// GlobalGuard 进程级令牌桶，兜底保护入站吞吐
// 与按地址的滑动窗口互补：单地址刷不过去，地址池打散也刷不过去
type GlobalGuard struct {
	limiter *rate.Limiter
}

// NewGlobalGuard 创建全局限流（rps 每秒令牌数，burst 突发容量）
func NewGlobalGuard(rps float64, burst int) *GlobalGuard {
	if rps <= 0 {
		rps = 100
	}
	if burst <= 0 {
		burst = 200
	}
	return &GlobalGuard{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Allow 是否放行
func (g *GlobalGuard) Allow() bool {
	return g.limiter.Allow()
}
