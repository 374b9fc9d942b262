package web

import (
	"sync"
	"time"

	"tradesync/config"
	"tradesync/database"
	"tradesync/relay"
	"tradesync/store"
)

// 各组件通过 setter 注入，避免 web 包在初始化顺序上绑死 main
var (
	snapshotStore *store.SnapshotStore
	limiter       *relay.SlidingWindowLimiter
	globalGuard   *relay.GlobalGuard
	eventStore    *database.EventStore
	currentConfig *config.Config
	providerMu    sync.RWMutex

	serverStartTime = time.Now()
	serverVersion   = "dev"
)

// SetStore 设置快照存储
func SetStore(ss *store.SnapshotStore) {
	providerMu.Lock()
	defer providerMu.Unlock()
	snapshotStore = ss
}

// SetLimiter 设置按地址限流器
func SetLimiter(l *relay.SlidingWindowLimiter) {
	providerMu.Lock()
	defer providerMu.Unlock()
	limiter = l
}

// SetGlobalGuard 设置进程级限流
func SetGlobalGuard(g *relay.GlobalGuard) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalGuard = g
}

// SetEventStore 设置推送事件存储
func SetEventStore(es *database.EventStore) {
	providerMu.Lock()
	defer providerMu.Unlock()
	eventStore = es
}

// SetConfig 设置当前配置
func SetConfig(cfg *config.Config) {
	providerMu.Lock()
	defer providerMu.Unlock()
	currentConfig = cfg
}

// SetVersion 设置版本号（main 在构建时注入）
func SetVersion(v string) {
	providerMu.Lock()
	defer providerMu.Unlock()
	serverVersion = v
}

func getStore() *store.SnapshotStore {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return snapshotStore
}

func getLimiter() *relay.SlidingWindowLimiter {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return limiter
}

func getGlobalGuard() *relay.GlobalGuard {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalGuard
}

func getEventStore() *database.EventStore {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return eventStore
}

func getConfig() *config.Config {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return currentConfig
}
