package monitor

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// SystemMetrics 进程级系统指标
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`    // 进程 CPU 占用率
	MemoryMB      float64 `json:"memory_mb"`      // 进程常驻内存（MB）
	MemoryPercent float32 `json:"memory_percent"` // 进程内存占用率
	NumThreads    int32   `json:"num_threads"`    // 线程数
	CollectedAt   int64   `json:"collected_at"`   // 采集时间（Unix 毫秒）
}

// GoRuntimeStats Go 运行时统计
type GoRuntimeStats struct {
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	HeapSysMB   float64 `json:"heap_sys_mb"`
	NumGC       uint32  `json:"num_gc"`
}

// CollectSystemMetrics 采集当前进程的系统指标
func CollectSystemMetrics() (*SystemMetrics, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("获取进程信息失败: %w", err)
	}

	metrics := &SystemMetrics{
		CollectedAt: time.Now().UnixMilli(),
	}

	if cpuPercent, err := proc.CPUPercent(); err == nil {
		metrics.CPUPercent = cpuPercent
	}

	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		metrics.MemoryMB = float64(memInfo.RSS) / 1024 / 1024
	}

	if memPercent, err := proc.MemoryPercent(); err == nil {
		metrics.MemoryPercent = memPercent
	}

	if numThreads, err := proc.NumThreads(); err == nil {
		metrics.NumThreads = numThreads
	}

	return metrics, nil
}

// GetGoRuntimeStats 获取 Go 运行时统计
func GetGoRuntimeStats() *GoRuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &GoRuntimeStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(m.HeapAlloc) / 1024 / 1024,
		HeapSysMB:   float64(m.HeapSys) / 1024 / 1024,
		NumGC:       m.NumGC,
	}
}
