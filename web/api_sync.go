package web

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tradesync/database"
	"tradesync/logger"
	"tradesync/metrics"
	"tradesync/relay"
)

// handleWebhook 接收终端推送的全量快照
// 鉴别键只认 sync-key 请求头，载荷校验全量通过才落库
func handleWebhook(c *gin.Context) {
	syncKey := c.GetHeader("sync-key")
	if syncKey == "" {
		metrics.RecordIngest("unauthorized")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing sync-key header"})
		return
	}

	// 两级限流：先进程级令牌桶，再按来源地址的滑动窗口
	if guard := getGlobalGuard(); guard != nil && !guard.Allow() {
		metrics.RecordIngest("rate_limited")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down."})
		return
	}
	if l := getLimiter(); l != nil && !l.Allow(c.ClientIP()) {
		metrics.RecordIngest("rate_limited")
		logger.Warn("⚠️ 限流触发: %s (key=%s)", c.ClientIP(), syncKey)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down."})
		return
	}

	maxBody := int64(10 << 20)
	if cfg := getConfig(); cfg != nil && cfg.Relay.MaxBodyBytes > 0 {
		maxBody = cfg.Relay.MaxBodyBytes
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
	if err != nil {
		metrics.RecordIngest("too_large")
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		return
	}
	metrics.ObservePayloadSize(len(body))

	payload, fieldErrs := relay.ValidatePayload(body)
	if len(fieldErrs) > 0 {
		metrics.RecordIngest("invalid")
		logger.Warn("⚠️ 载荷校验失败: key=%s ip=%s 共 %d 处", syncKey, c.ClientIP(), len(fieldErrs))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid payload",
			"details": fieldErrs,
		})
		return
	}

	ss := getStore()
	if ss == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store not ready"})
		return
	}

	snap := ss.Put(syncKey, payload.Trades, payload.Account, payload.OpenPositions, c.ClientIP())
	metrics.RecordIngest("ok")
	metrics.SetSnapshotKeys(ss.KeyCount())

	logger.Info("📥 收到推送: key=%s trades=%d positions=%d lastUpdated=%d",
		syncKey, len(snap.Trades), len(snap.OpenPositions), snap.LastUpdated)

	// 审计记录异步写入，不阻塞请求路径
	if es := getEventStore(); es != nil {
		ev := &database.IngestEvent{
			SyncKey:       syncKey,
			ClientIP:      c.ClientIP(),
			TradeCount:    len(snap.Trades),
			PositionCount: len(snap.OpenPositions),
		}
		if snap.Account != nil {
			ev.Balance = snap.Account.Balance
			ev.Equity = snap.Account.Equity
		}
		es.RecordAsync(ev)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleGetTrades 仪表盘增量轮询
// 三态：无快照 404；客户端已是最新 304；否则全量 200
func handleGetTrades(c *gin.Context) {
	syncKey := c.Param("syncKey")

	ss := getStore()
	if ss == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Store not ready"})
		return
	}

	snap := ss.Get(syncKey)
	if snap == nil {
		metrics.RecordPoll("not_found")
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No data yet"})
		return
	}

	// lastUpdated 缺省或非法都按 0 处理，返回全量
	clientLast, _ := strconv.ParseInt(c.Query("lastUpdated"), 10, 64)
	if clientLast >= snap.LastUpdated {
		metrics.RecordPoll("not_modified")
		c.Status(http.StatusNotModified)
		return
	}

	metrics.RecordPoll("full")
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"trades":        snap.Trades,
		"account":       snap.Account,
		"openPositions": snap.OpenPositions,
		"lastUpdated":   snap.LastUpdated,
	})
}
