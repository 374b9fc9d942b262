package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tradesync/logger"
	"tradesync/utils"
)

// IngestEvent 一次成功推送的审计记录
// 只记元数据（键、来源、条数、账户水位），交易明细始终只存在于被整体替换的快照里
type IngestEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SyncKey       string    `gorm:"index;size:128" json:"sync_key"`
	ClientIP      string    `gorm:"size:64" json:"client_ip"`
	TradeCount    int       `json:"trade_count"`
	PositionCount int       `json:"position_count"`
	Balance       float64   `json:"balance"`
	Equity        float64   `json:"equity"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// EventFilter 事件查询条件
type EventFilter struct {
	SyncKey   string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// EventStore 推送事件存储（GORM + SQLite）
type EventStore struct {
	db *gorm.DB
}

// NewEventStore 创建事件存储
func NewEventStore(path string) (*EventStore, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开事件数据库失败: %w", err)
	}

	if err := db.AutoMigrate(&IngestEvent{}); err != nil {
		return nil, fmt.Errorf("迁移事件表失败: %w", err)
	}

	return &EventStore{db: db}, nil
}

// Record 记录一次成功推送（异步调用方负责不阻塞请求路径）
func (es *EventStore) Record(ev *IngestEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = utils.NowUTC()
	}
	return es.db.Create(ev).Error
}

// RecordAsync 异步记录，失败只记日志
func (es *EventStore) RecordAsync(ev *IngestEvent) {
	go func() {
		if err := es.Record(ev); err != nil {
			logger.Warn("⚠️ 写入推送事件失败: %v", err)
		}
	}()
}

// Query 查询推送事件，按时间倒序
func (es *EventStore) Query(filter *EventFilter) ([]*IngestEvent, int64, error) {
	q := es.db.Model(&IngestEvent{})

	if filter.SyncKey != "" {
		q = q.Where("sync_key = ?", filter.SyncKey)
	}
	if filter.StartTime != nil {
		q = q.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		q = q.Where("created_at <= ?", *filter.EndTime)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("查询事件总数失败: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var events []*IngestEvent
	if err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("查询事件失败: %w", err)
	}

	return events, total, nil
}

// Cleanup 清理指定时间之前的事件
func (es *EventStore) Cleanup(before time.Time) (int64, error) {
	result := es.db.Where("created_at < ?", before).Delete(&IngestEvent{})
	return result.RowsAffected, result.Error
}

// Close 关闭底层连接
func (es *EventStore) Close() error {
	sqlDB, err := es.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
