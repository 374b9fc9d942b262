package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus 指标定义
// 命名遵循 prometheus 规范：tradesync_<subsystem>_<name>_<unit>
var (
	// IngestTotal 推送请求总数（result: ok / unauthorized / rate_limited / invalid / too_large）
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesync_ingest_total",
		Help: "推送请求总数（按结果分类）",
	}, []string{"result"})

	// PollTotal 轮询请求总数（outcome: full / not_modified / not_found）
	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesync_poll_total",
		Help: "轮询请求总数（按结果分类）",
	}, []string{"outcome"})

	// PayloadBytes 推送请求体大小分布
	PayloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradesync_ingest_payload_bytes",
		Help:    "推送请求体大小分布（字节）",
		Buckets: prometheus.ExponentialBuckets(256, 4, 10), // 256B ~ 64MB
	})

	// SnapshotKeys 当前持有快照的同步键数量
	SnapshotKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesync_snapshot_keys",
		Help: "当前持有快照的同步键数量",
	})

	// FlushTotal 快照落盘次数（result: ok / error）
	FlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesync_flush_total",
		Help: "快照落盘次数（按结果分类）",
	}, []string{"result"})

	// FlushDuration 快照落盘耗时分布
	FlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradesync_flush_duration_seconds",
		Help:    "快照落盘耗时分布（秒）",
		Buckets: prometheus.DefBuckets,
	})

	// RateLimitAddresses 限流器当前跟踪的来源地址数
	RateLimitAddresses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesync_ratelimit_addresses",
		Help: "限流器当前跟踪的来源地址数",
	})

	// HTTPRequestDuration HTTP 请求耗时分布
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradesync_http_request_duration_seconds",
		Help:    "HTTP 请求耗时分布（秒）",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// Goroutines 当前 goroutine 数量
	Goroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesync_goroutines",
		Help: "当前 goroutine 数量",
	})

	// HeapAllocBytes 当前堆内存占用
	HeapAllocBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesync_heap_alloc_bytes",
		Help: "当前堆内存占用（字节）",
	})

	// GCPauseTotal GC 暂停累计时间
	GCPauseTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradesync_gc_pause_seconds_total",
		Help: "GC 暂停累计时间（秒）",
	})
)

// RecordIngest 记录一次推送请求
func RecordIngest(result string) {
	IngestTotal.WithLabelValues(result).Inc()
}

// RecordPoll 记录一次轮询请求
func RecordPoll(outcome string) {
	PollTotal.WithLabelValues(outcome).Inc()
}

// ObservePayloadSize 记录推送请求体大小
func ObservePayloadSize(bytes int) {
	PayloadBytes.Observe(float64(bytes))
}

// SetSnapshotKeys 更新同步键数量
func SetSnapshotKeys(n int) {
	SnapshotKeys.Set(float64(n))
}

// RecordFlush 记录一次落盘及耗时
func RecordFlush(ok bool, seconds float64) {
	if ok {
		FlushTotal.WithLabelValues("ok").Inc()
	} else {
		FlushTotal.WithLabelValues("error").Inc()
	}
	FlushDuration.Observe(seconds)
}

// SetRateLimitAddresses 更新限流器地址数
func SetRateLimitAddresses(n int) {
	RateLimitAddresses.Set(float64(n))
}

// ObserveHTTPRequest 记录一次 HTTP 请求耗时
func ObserveHTTPRequest(method, path, status string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}
