package config

import (
	"fmt"
	"strings"
	"sync"
)

// HotReloader 配置热更新器
type HotReloader struct {
	mu              sync.RWMutex
	currentConfig   *Config
	updateCallbacks []ConfigUpdateCallback
}

// ConfigUpdateCallback 配置更新回调函数类型
type ConfigUpdateCallback func(oldConfig, newConfig *Config, changes []ConfigChange) error

// NewHotReloader 创建热更新器
func NewHotReloader(initialConfig *Config) *HotReloader {
	return &HotReloader{
		currentConfig:   initialConfig,
		updateCallbacks: []ConfigUpdateCallback{},
	}
}

// RegisterCallback 注册配置更新回调
func (hr *HotReloader) RegisterCallback(callback ConfigUpdateCallback) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.updateCallbacks = append(hr.updateCallbacks, callback)
}

// UpdateConfig 更新配置（热更新）
// 需要重启的字段不落地，只在返回的差异里标记；可热更新的字段立即生效
func (hr *HotReloader) UpdateConfig(newConfig *Config) (*ConfigDiff, error) {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	diff := DiffConfig(hr.currentConfig, newConfig)

	hotReloadableChanges := []ConfigChange{}
	restartRequiredChanges := []ConfigChange{}

	for _, change := range diff.Changes {
		if change.RequiresRestart {
			restartRequiredChanges = append(restartRequiredChanges, change)
		} else {
			hotReloadableChanges = append(hotReloadableChanges, change)
		}
	}

	if len(restartRequiredChanges) > 0 {
		// 只应用可热更新的部分，重启项保留旧值
		partialConfig := hr.applyHotReloadableChanges(hr.currentConfig, newConfig, hotReloadableChanges)

		if err := hr.applyConfigUpdate(hr.currentConfig, partialConfig, hotReloadableChanges); err != nil {
			return nil, fmt.Errorf("应用热更新失败: %v", err)
		}

		hr.currentConfig = partialConfig
		return diff, nil
	}

	if err := hr.applyConfigUpdate(hr.currentConfig, newConfig, diff.Changes); err != nil {
		return nil, fmt.Errorf("应用配置更新失败: %v", err)
	}

	hr.currentConfig = newConfig
	return diff, nil
}

// applyHotReloadableChanges 应用可热更新的变更，创建部分更新的配置
func (hr *HotReloader) applyHotReloadableChanges(oldConfig, newConfig *Config, hotReloadableChanges []ConfigChange) *Config {
	result := hr.cloneConfig(oldConfig)

	for _, change := range hotReloadableChanges {
		hr.copyConfigField(result, newConfig, change.Path)
	}

	return result
}

// copyConfigField 按路径复制可热更新的配置字段
func (hr *HotReloader) copyConfigField(dest, src *Config, path string) {
	switch {
	case strings.HasPrefix(path, "relay.rate_limit."):
		dest.Relay.RateLimit = src.Relay.RateLimit
	case path == "relay.flush_interval_ms":
		dest.Relay.FlushIntervalMS = src.Relay.FlushIntervalMS
	case path == "relay.max_body_bytes":
		dest.Relay.MaxBodyBytes = src.Relay.MaxBodyBytes
	case path == "system.log_level":
		dest.System.LogLevel = src.System.LogLevel
	case path == "system.log_retention_days":
		dest.System.LogRetentionDays = src.System.LogRetentionDays
	}
}

// applyConfigUpdate 应用配置更新并触发回调
func (hr *HotReloader) applyConfigUpdate(oldConfig, newConfig *Config, changes []ConfigChange) error {
	for _, callback := range hr.updateCallbacks {
		if err := callback(oldConfig, newConfig, changes); err != nil {
			return fmt.Errorf("配置更新回调执行失败: %v", err)
		}
	}
	return nil
}

// GetCurrentConfig 获取当前配置
func (hr *HotReloader) GetCurrentConfig() *Config {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return hr.currentConfig
}

// cloneConfig 深度复制配置
// Config 只含值类型字段，浅拷贝即为深拷贝
func (hr *HotReloader) cloneConfig(config *Config) *Config {
	clone := *config
	return &clone
}
