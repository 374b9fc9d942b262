package metrics

import (
	"context"
	"runtime"
	"time"

	"tradesync/logger"
)

// SystemCollector 定期采集 Go 运行时指标
type SystemCollector struct {
	interval    time.Duration
	lastGCPause uint64
}

// NewSystemCollector 创建运行时指标采集器
func NewSystemCollector(interval time.Duration) *SystemCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemCollector{interval: interval}
}

// Start 启动采集循环（阻塞，应在独立 goroutine 中运行）
func (sc *SystemCollector) Start(ctx context.Context) {
	logger.Info("📊 运行时指标采集器已启动，间隔: %v", sc.interval)

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	sc.collect()

	for {
		select {
		case <-ctx.Done():
			logger.Info("📊 运行时指标采集器已停止")
			return
		case <-ticker.C:
			sc.collect()
		}
	}
}

// collect 采集一次运行时指标
func (sc *SystemCollector) collect() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	Goroutines.Set(float64(runtime.NumGoroutine()))
	HeapAllocBytes.Set(float64(m.HeapAlloc))

	// GC 暂停时间是累计值，只上报增量
	if m.PauseTotalNs > sc.lastGCPause {
		GCPauseTotal.Add(float64(m.PauseTotalNs-sc.lastGCPause) / 1e9)
	}
	sc.lastGCPause = m.PauseTotalNs
}
