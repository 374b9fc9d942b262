package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradesync/config"
	"tradesync/database"
	"tradesync/logger"
	"tradesync/metrics"
	"tradesync/relay"
	"tradesync/storage"
	"tradesync/store"
	"tradesync/utils"
	"tradesync/web"
)

// Version 版本号（构建时通过 -ldflags 注入）
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	debugMode := flag.Bool("debug", false, "启用调试日志")
	showVersion := flag.Bool("version", false, "显示版本号并退出")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tradesync %s\n", Version)
		return
	}

	// 配置文件不存在时生成默认配置
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logger.Info("⚠️ 配置文件 %s 不存在，生成默认配置", *configPath)
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Fatal("❌ 生成默认配置失败: %v", err)
		}
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("❌ 加载配置失败: %v", err)
	}

	// 日志级别：命令行 -debug 优先于配置文件
	if *debugMode {
		cfg.System.LogLevel = "debug"
	}
	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))

	// 时区
	if err := utils.SetLocation(cfg.System.Timezone); err != nil {
		logger.Warn("⚠️ 加载时区 %s 失败: %v，使用 UTC", cfg.System.Timezone, err)
	}
	logger.SetLocation(utils.GlobalLocation)

	if err := logger.InitWebLogger(); err != nil {
		logger.Warn("⚠️ 初始化 Web 日志失败: %v", err)
	}

	logger.Info("🚀 tradesync %s 启动中...", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite 日志存储（供 /api/logs 查询与 WebSocket 实时推送）
	var logStorage *storage.LogStorage
	if cfg.Storage.Enabled {
		logStorage, err = storage.NewLogStorage(cfg.Storage.LogDBPath)
		if err != nil {
			logger.Warn("⚠️ 初始化日志存储失败: %v，继续运行（无日志查询）", err)
		} else {
			logger.InitLogStorage(logStorage.WriteLog)
			web.SetLogStorage(logStorage)
			logger.Info("✅ 日志存储已启用: %s", cfg.Storage.LogDBPath)

			// 定期清理过期的 INFO/WARN 日志
			if cfg.System.LogRetentionDays > 0 {
				go runLogCleanup(ctx, logStorage, cfg.System.LogRetentionDays)
			}
		}
	}

	// 快照存储与防抖落盘
	snapshotStore := store.NewSnapshotStore(cfg.Relay.StorePath)
	snapshotStore.StartFlusher(ctx, time.Duration(cfg.Relay.FlushIntervalMS)*time.Millisecond)
	metrics.SetSnapshotKeys(snapshotStore.KeyCount())

	// 两级限流
	limiter := relay.NewSlidingWindowLimiter(
		time.Duration(cfg.Relay.RateLimit.WindowMS)*time.Millisecond,
		cfg.Relay.RateLimit.MaxRequests,
	)
	limiter.StartPruning(ctx, time.Duration(cfg.Relay.RateLimit.PruneIntervalSec)*time.Second)
	guard := relay.NewGlobalGuard(cfg.Relay.RateLimit.GlobalRPS, cfg.Relay.RateLimit.GlobalBurst)

	// 推送事件审计
	var eventStore *database.EventStore
	if cfg.Storage.Enabled {
		eventStore, err = database.NewEventStore(cfg.Storage.EventDBPath)
		if err != nil {
			logger.Warn("⚠️ 初始化事件存储失败: %v，继续运行（无推送审计）", err)
		} else {
			logger.Info("✅ 事件存储已启用: %s", cfg.Storage.EventDBPath)
		}
	}

	// 运行时指标采集
	if cfg.Metrics.Enabled {
		collector := metrics.NewSystemCollector(15 * time.Second)
		go collector.Start(ctx)
	}

	// 注入 web 层依赖
	web.SetVersion(Version)
	web.SetConfig(cfg)
	web.SetStore(snapshotStore)
	web.SetLimiter(limiter)
	web.SetGlobalGuard(guard)
	web.SetEventStore(eventStore)

	webServer := web.NewWebServer(cfg)
	if err := webServer.Start(ctx); err != nil {
		logger.Fatal("❌ 启动 Web 服务器失败: %v", err)
	}

	// 配置热更新
	hotReloader := config.NewHotReloader(cfg)
	hotReloader.RegisterCallback(func(oldCfg, newCfg *config.Config, changes []config.ConfigChange) error {
		for _, change := range changes {
			logger.Info("🔄 配置变更: %s", change.Describe())
		}
		if oldCfg.System.LogLevel != newCfg.System.LogLevel {
			logger.SetLevel(logger.ParseLogLevel(newCfg.System.LogLevel))
			logger.Info("✅ 日志级别已更新: %s", newCfg.System.LogLevel)
		}
		rl := newCfg.Relay.RateLimit
		if oldCfg.Relay.RateLimit != rl {
			limiter.SetLimits(time.Duration(rl.WindowMS)*time.Millisecond, rl.MaxRequests)
			logger.Info("✅ 限流参数已更新: window=%dms max=%d", rl.WindowMS, rl.MaxRequests)
		}
		web.SetConfig(hotReloader.GetCurrentConfig())
		return nil
	})

	watcher, err := config.NewConfigWatcher(*configPath, hotReloader)
	if err != nil {
		logger.Warn("⚠️ 创建配置监控器失败: %v，热更新不可用", err)
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("⚠️ 启动配置监控器失败: %v", err)
	} else {
		logger.Info("✅ 配置热更新已启用: %s", *configPath)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-watcher.GetUpdateChan():
					logger.Warn("⚠️ 检测到需要重启才能生效的配置变更，请重启服务")
				case err := <-watcher.GetErrorChan():
					logger.Error("❌ 配置监控错误: %v", err)
				}
			}
		}()
	}

	logger.Info("✅ tradesync 已就绪，监听 %s:%d", cfg.Server.Host, cfg.Server.Port)

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("🛑 收到信号 %v，开始优雅关闭...", sig)

	cancel()
	webServer.Stop()

	// 退出前把内存快照落盘
	if err := snapshotStore.Flush(); err != nil {
		logger.Error("❌ 退出前落盘失败: %v", err)
	} else {
		logger.Info("💾 快照已落盘")
	}

	if watcher != nil {
		watcher.Stop()
	}
	if eventStore != nil {
		eventStore.Close()
	}
	if logStorage != nil {
		logStorage.Close()
	}
	logger.Info("✅ tradesync 已退出")
	logger.Close()
}

// runLogCleanup 定期清理过期的低级别日志，并回收数据库空间
func runLogCleanup(ctx context.Context, ls *storage.LogStorage, retentionDays int) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	cleanup := func() {
		removed, err := ls.CleanOldLogsByLevel(retentionDays, []string{"DEBUG", "INFO", "WARN"})
		if err != nil {
			logger.Warn("⚠️ 清理过期日志失败: %v", err)
			return
		}
		if removed > 0 {
			logger.Info("🧹 已清理 %d 条过期日志（保留 %d 天）", removed, retentionDays)
			if err := ls.Vacuum(); err != nil {
				logger.Debug("日志库 VACUUM 失败: %v", err)
			}
		}
	}

	cleanup()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanup()
		}
	}
}
