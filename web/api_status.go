package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradesync/logger"
	"tradesync/monitor"
)

// SystemStatus 服务运行状态
type SystemStatus struct {
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	SnapshotKeys  int                    `json:"snapshot_keys"`
	LastFlushAt   string                 `json:"last_flush_at,omitempty"`
	RateAddresses int                    `json:"rate_limit_addresses"`
	System        *monitor.SystemMetrics `json:"system,omitempty"`
	Runtime       *monitor.GoRuntimeStats `json:"runtime"`
}

// getStatus 返回服务状态
func getStatus(c *gin.Context) {
	status := &SystemStatus{
		Version:       serverVersion,
		UptimeSeconds: int64(time.Since(serverStartTime).Seconds()),
		Runtime:       monitor.GetGoRuntimeStats(),
	}

	if ss := getStore(); ss != nil {
		status.SnapshotKeys = ss.KeyCount()
		if t := ss.LastFlushTime(); !t.IsZero() {
			status.LastFlushAt = t.Format(time.RFC3339)
		}
	}
	if l := getLimiter(); l != nil {
		status.RateAddresses = l.AddressCount()
	}

	if sys, err := monitor.CollectSystemMetrics(); err == nil {
		status.System = sys
	} else {
		logger.Debug("采集系统指标失败: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}

// getVersion 返回版本号
func getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": serverVersion})
}

// healthz 存活探针
func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
