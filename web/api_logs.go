package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tradesync/storage"
)

// getLogs 查询历史日志
// 支持按时间段、级别、关键字过滤，分页返回
func getLogs(c *gin.Context) {
	logStorageMu.RLock()
	ls := logStorage
	logStorageMu.RUnlock()

	if ls == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "日志存储未启用"})
		return
	}

	params := storage.LogQueryParams{
		Level:   c.Query("level"),
		Keyword: c.Query("keyword"),
	}

	if v := c.Query("start_time"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.StartTime = time.UnixMilli(ms).UTC()
		}
	}
	if v := c.Query("end_time"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.EndTime = time.UnixMilli(ms).UTC()
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.Offset = n
		}
	}

	logs, total, err := ls.GetLogs(params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"logs":   logs,
			"total":  total,
			"limit":  params.Limit,
			"offset": params.Offset,
		},
	})
}
