package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tradesync/database"
)

// getEvents 查询推送事件审计记录
func getEvents(c *gin.Context) {
	es := getEventStore()
	if es == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "事件存储未启用"})
		return
	}

	filter := &database.EventFilter{
		SyncKey: c.Query("sync_key"),
	}

	if v := c.Query("start_time"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.UnixMilli(ms).UTC()
			filter.StartTime = &t
		}
	}
	if v := c.Query("end_time"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.UnixMilli(ms).UTC()
			filter.EndTime = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	events, total, err := es.Query(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"events": events,
			"total":  total,
		},
	})
}
