package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradesync/logger"
	"tradesync/metrics"
	"tradesync/utils"
)

// SnapshotStore 同步键 → 快照 的内存存储，带平面文件持久化
// 写入串行（全局写锁足够，本系统不是写密集型），读取并发
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot

	path    string
	dirty   chan struct{}
	flushMu sync.Mutex // 串行化落盘，避免并发重写同一文件

	lastFlush   time.Time
	lastFlushMu sync.Mutex

	now func() time.Time // 测试注入
}

// NewSnapshotStore 创建快照存储并加载持久化文件
// 文件损坏或不可读时按空存储处理（记录错误，不致命）
func NewSnapshotStore(path string) *SnapshotStore {
	ss := &SnapshotStore{
		snapshots: make(map[string]*Snapshot),
		path:      path,
		dirty:     make(chan struct{}, 1),
		now:       time.Now,
	}
	ss.load()
	return ss
}

// load 从持久化文件恢复快照
func (ss *SnapshotStore) load() {
	data, err := os.ReadFile(ss.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("❌ 读取快照文件失败: %v，按空存储启动", err)
		}
		return
	}

	var snapshots map[string]*Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		logger.Error("❌ 快照文件损坏: %v，按空存储启动", err)
		return
	}

	ss.snapshots = snapshots
	logger.Info("✅ 已从 %s 恢复 %d 个同步键的快照", ss.path, len(snapshots))
}

// Put 整体替换 key 的快照并打上当前毫秒时间戳
// 总是成功：持久化走异步 flusher，写盘失败只记日志不上抛
func (ss *SnapshotStore) Put(key string, trades []Trade, account *AccountInfo, positions []OpenPosition, lastIP string) *Snapshot {
	if trades == nil {
		trades = []Trade{}
	}
	if positions == nil {
		positions = []OpenPosition{}
	}

	ss.mu.Lock()
	ts := ss.now().UnixMilli()
	// 同一毫秒内的连续推送也要保持严格递增
	if prev, ok := ss.snapshots[key]; ok && ts <= prev.LastUpdated {
		ts = prev.LastUpdated + 1
	}
	snap := &Snapshot{
		Trades:        trades,
		Account:       account,
		OpenPositions: positions,
		LastUpdated:   ts,
		LastIP:        lastIP,
	}
	ss.snapshots[key] = snap
	ss.mu.Unlock()

	ss.markDirty()
	return snap.Clone()
}

// Get 返回 key 的快照深拷贝；从未推送过返回 nil
func (ss *SnapshotStore) Get(key string) *Snapshot {
	ss.mu.RLock()
	snap := ss.snapshots[key]
	ss.mu.RUnlock()
	return snap.Clone()
}

// KeyCount 当前同步键数量
func (ss *SnapshotStore) KeyCount() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.snapshots)
}

// LastFlushTime 最近一次成功落盘时间
func (ss *SnapshotStore) LastFlushTime() time.Time {
	ss.lastFlushMu.Lock()
	defer ss.lastFlushMu.Unlock()
	return ss.lastFlush
}

// markDirty 标记有未落盘的变更（channel 容量为1，天然去重）
func (ss *SnapshotStore) markDirty() {
	select {
	case ss.dirty <- struct{}{}:
	default:
	}
}

// StartFlusher 启动防抖落盘协程
// 崩溃最多丢失最后一个防抖周期内的写入
func (ss *SnapshotStore) StartFlusher(ctx context.Context, interval time.Duration) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ss.dirty:
				// 防抖：聚合防抖窗口内的连续写入
				timer := time.NewTimer(interval)
				select {
				case <-ctx.Done():
					timer.Stop()
					ss.flushOnce()
					return
				case <-timer.C:
				}
				ss.flushOnce()
			}
		}
	}()
}

// Flush 立即落盘（退出前调用）
func (ss *SnapshotStore) Flush() error {
	return ss.flushOnce()
}

// flushOnce 将全量映射序列化到平面文件
// 先写临时文件再 rename，保证文件里永远是完整的一份
func (ss *SnapshotStore) flushOnce() error {
	ss.flushMu.Lock()
	defer ss.flushMu.Unlock()

	start := time.Now()

	ss.mu.RLock()
	data, err := json.MarshalIndent(ss.snapshots, "", "  ")
	ss.mu.RUnlock()
	if err != nil {
		logger.Error("❌ 快照序列化失败: %v", err)
		metrics.RecordFlush(false, time.Since(start).Seconds())
		return err
	}

	dir := filepath.Dir(ss.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("❌ 创建数据目录失败: %v", err)
		metrics.RecordFlush(false, time.Since(start).Seconds())
		return err
	}

	tmp := ss.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		logger.Error("❌ 写入快照临时文件失败: %v", err)
		metrics.RecordFlush(false, time.Since(start).Seconds())
		return err
	}
	if err := os.Rename(tmp, ss.path); err != nil {
		logger.Error("❌ 替换快照文件失败: %v", err)
		metrics.RecordFlush(false, time.Since(start).Seconds())
		return err
	}

	metrics.RecordFlush(true, time.Since(start).Seconds())

	ss.lastFlushMu.Lock()
	ss.lastFlush = utils.NowUTC()
	ss.lastFlushMu.Unlock()

	logger.Debug("💾 快照已落盘: %s (%d 字节)", ss.path, len(data))
	return nil
}

// String 调试输出
func (ss *SnapshotStore) String() string {
	return fmt.Sprintf("SnapshotStore{keys: %d, path: %s}", ss.KeyCount(), ss.path)
}
