package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 同步中继服务配置
type Config struct {
	// Web 服务配置
	Server struct {
		Host         string `yaml:"host"`          // 监听地址，默认 0.0.0.0
		Port         int    `yaml:"port"`          // 监听端口，默认 3001
		ReadTimeout  int    `yaml:"read_timeout"`  // 读超时（秒），默认 15
		WriteTimeout int    `yaml:"write_timeout"` // 写超时（秒），默认 15
		IdleTimeout  int    `yaml:"idle_timeout"`  // 空闲超时（秒），默认 60
	} `yaml:"server"`

	// 中继核心配置
	Relay struct {
		StorePath       string `yaml:"store_path"`        // 快照持久化文件，默认 ./data/snapshots.json
		FlushIntervalMS int    `yaml:"flush_interval_ms"` // 落盘防抖间隔（毫秒），默认 1000
		MaxBodyBytes    int64  `yaml:"max_body_bytes"`    // 请求体上限（字节），默认 10MB

		RateLimit struct {
			WindowMS         int     `yaml:"window_ms"`          // 滑动窗口宽度（毫秒），默认 1000
			MaxRequests      int     `yaml:"max_requests"`       // 窗口内最大请求数，默认 5
			PruneIntervalSec int     `yaml:"prune_interval_sec"` // 空闲地址清理间隔（秒），默认 60
			GlobalRPS        float64 `yaml:"global_rps"`         // 进程级令牌桶速率，默认 100
			GlobalBurst      int     `yaml:"global_burst"`       // 进程级突发容量，默认 200
		} `yaml:"rate_limit"`
	} `yaml:"relay"`

	System struct {
		LogLevel         string `yaml:"log_level"`          // debug / info / warn / error
		Timezone         string `yaml:"timezone"`           // 时区，如 "UTC"、"Europe/London"
		LogRetentionDays int    `yaml:"log_retention_days"` // INFO/WARN 日志保留天数，默认 7，0 表示不清理
	} `yaml:"system"`

	// 日志与事件存储
	Storage struct {
		Enabled     bool   `yaml:"enabled"`       // 是否启用 SQLite 存储，默认 true
		LogDBPath   string `yaml:"log_db_path"`   // 日志库路径，默认 ./data/logs.db
		EventDBPath string `yaml:"event_db_path"` // 推送事件库路径，默认 ./data/events.db
	} `yaml:"storage"`

	Metrics struct {
		Enabled bool `yaml:"enabled"` // 是否暴露 /metrics，默认 true
	} `yaml:"metrics"`
}

// DefaultConfig 创建带默认值的配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 3001
	cfg.Server.ReadTimeout = 15
	cfg.Server.WriteTimeout = 15
	cfg.Server.IdleTimeout = 60

	cfg.Relay.StorePath = "./data/snapshots.json"
	cfg.Relay.FlushIntervalMS = 1000
	cfg.Relay.MaxBodyBytes = 10 << 20
	cfg.Relay.RateLimit.WindowMS = 1000
	cfg.Relay.RateLimit.MaxRequests = 5
	cfg.Relay.RateLimit.PruneIntervalSec = 60
	cfg.Relay.RateLimit.GlobalRPS = 100
	cfg.Relay.RateLimit.GlobalBurst = 200

	cfg.System.LogLevel = "info"
	cfg.System.Timezone = "UTC"
	cfg.System.LogRetentionDays = 7

	cfg.Storage.Enabled = true
	cfg.Storage.LogDBPath = "./data/logs.db"
	cfg.Storage.EventDBPath = "./data/events.db"

	cfg.Metrics.Enabled = true
	return cfg
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节加载配置
func LoadConfigFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// Validate 校验配置并补齐默认值
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("无效的监听端口: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 15
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = 60
	}

	if c.Relay.StorePath == "" {
		return fmt.Errorf("快照持久化路径不能为空")
	}
	if c.Relay.FlushIntervalMS <= 0 {
		c.Relay.FlushIntervalMS = 1000
	}
	if c.Relay.MaxBodyBytes <= 0 {
		c.Relay.MaxBodyBytes = 10 << 20
	}

	if c.Relay.RateLimit.WindowMS <= 0 {
		c.Relay.RateLimit.WindowMS = 1000
	}
	if c.Relay.RateLimit.MaxRequests <= 0 {
		c.Relay.RateLimit.MaxRequests = 5
	}
	if c.Relay.RateLimit.PruneIntervalSec <= 0 {
		c.Relay.RateLimit.PruneIntervalSec = 60
	}
	if c.Relay.RateLimit.GlobalRPS <= 0 {
		c.Relay.RateLimit.GlobalRPS = 100
	}
	if c.Relay.RateLimit.GlobalBurst <= 0 {
		c.Relay.RateLimit.GlobalBurst = 200
	}

	if c.System.LogLevel == "" {
		c.System.LogLevel = "info"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "UTC"
	}
	if c.System.LogRetentionDays < 0 {
		return fmt.Errorf("日志保留天数不能为负数: %d", c.System.LogRetentionDays)
	}

	if c.Storage.LogDBPath == "" {
		c.Storage.LogDBPath = "./data/logs.db"
	}
	if c.Storage.EventDBPath == "" {
		c.Storage.EventDBPath = "./data/events.db"
	}

	return nil
}
