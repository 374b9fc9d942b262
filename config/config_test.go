package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig 验证默认配置
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 3001 {
		t.Errorf("默认端口应为 3001，实际为 %d", cfg.Server.Port)
	}
	if cfg.Relay.RateLimit.WindowMS != 1000 {
		t.Errorf("默认限流窗口应为 1000ms，实际为 %d", cfg.Relay.RateLimit.WindowMS)
	}
	if cfg.Relay.RateLimit.MaxRequests != 5 {
		t.Errorf("默认窗口请求数应为 5，实际为 %d", cfg.Relay.RateLimit.MaxRequests)
	}
	if cfg.Relay.MaxBodyBytes != 10<<20 {
		t.Errorf("默认请求体上限应为 10MB，实际为 %d", cfg.Relay.MaxBodyBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("默认配置应通过校验: %v", err)
	}
}

// TestLoadConfigFromBytes 验证 YAML 解析与默认值补齐
func TestLoadConfigFromBytes(t *testing.T) {
	yamlData := `
server:
  port: 8080
relay:
  store_path: /tmp/snapshots.json
  rate_limit:
    window_ms: 2000
    max_requests: 10
system:
  log_level: debug
`
	cfg, err := LoadConfigFromBytes([]byte(yamlData))
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("端口应为 8080，实际为 %d", cfg.Server.Port)
	}
	if cfg.Relay.StorePath != "/tmp/snapshots.json" {
		t.Errorf("快照路径错误: %s", cfg.Relay.StorePath)
	}
	if cfg.Relay.RateLimit.WindowMS != 2000 {
		t.Errorf("限流窗口应为 2000ms，实际为 %d", cfg.Relay.RateLimit.WindowMS)
	}
	if cfg.System.LogLevel != "debug" {
		t.Errorf("日志级别应为 debug，实际为 %s", cfg.System.LogLevel)
	}

	// 未出现的字段应回落到默认值
	if cfg.Server.ReadTimeout != 15 {
		t.Errorf("读超时应回落到默认 15，实际为 %d", cfg.Server.ReadTimeout)
	}
	if cfg.Relay.RateLimit.GlobalRPS != 100 {
		t.Errorf("进程级限流速率应回落到默认 100，实际为 %f", cfg.Relay.RateLimit.GlobalRPS)
	}
}

// TestValidateInvalidPort 验证非法端口被拒绝
func TestValidateInvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("端口 70000 应校验失败")
	}

	cfg2 := DefaultConfig()
	cfg2.Relay.StorePath = ""
	if err := cfg2.Validate(); err == nil {
		t.Error("空快照路径应校验失败")
	}
}

// TestSaveAndLoadConfig 验证配置保存与重新加载
func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Relay.RateLimit.MaxRequests = 20

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("保存配置失败: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("重新加载配置失败: %v", err)
	}

	if loaded.Server.Port != 9999 {
		t.Errorf("端口应为 9999，实际为 %d", loaded.Server.Port)
	}
	if loaded.Relay.RateLimit.MaxRequests != 20 {
		t.Errorf("窗口请求数应为 20，实际为 %d", loaded.Relay.RateLimit.MaxRequests)
	}
}

// TestDiffConfig 验证配置差异检测与重启标记
func TestDiffConfig(t *testing.T) {
	oldCfg := DefaultConfig()
	newCfg := DefaultConfig()
	newCfg.Relay.RateLimit.MaxRequests = 50
	newCfg.System.LogLevel = "debug"

	diff := DiffConfig(oldCfg, newCfg)
	if len(diff.Changes) != 2 {
		t.Fatalf("应检测到 2 处变更，实际为 %d", len(diff.Changes))
	}
	if diff.RequiresRestart {
		t.Error("限流参数与日志级别均可热更新，不应要求重启")
	}

	newCfg2 := DefaultConfig()
	newCfg2.Server.Port = 8080
	diff2 := DiffConfig(oldCfg, newCfg2)
	if !diff2.RequiresRestart {
		t.Error("端口变更应要求重启")
	}
}

// TestHotReloaderPartialUpdate 验证重启项不落地、热更新项立即生效
func TestHotReloaderPartialUpdate(t *testing.T) {
	initial := DefaultConfig()
	hr := NewHotReloader(initial)

	callbackCalled := false
	hr.RegisterCallback(func(oldConfig, newConfig *Config, changes []ConfigChange) error {
		callbackCalled = true
		return nil
	})

	newCfg := DefaultConfig()
	newCfg.Server.Port = 8080                 // 需要重启
	newCfg.Relay.RateLimit.MaxRequests = 100 // 可热更新

	diff, err := hr.UpdateConfig(newCfg)
	if err != nil {
		t.Fatalf("热更新失败: %v", err)
	}
	if !diff.RequiresRestart {
		t.Error("应标记需要重启")
	}
	if !callbackCalled {
		t.Error("配置更新回调未被触发")
	}

	current := hr.GetCurrentConfig()
	if current.Server.Port != 3001 {
		t.Errorf("端口不应被热更新，应保持 3001，实际为 %d", current.Server.Port)
	}
	if current.Relay.RateLimit.MaxRequests != 100 {
		t.Errorf("限流参数应已热更新为 100，实际为 %d", current.Relay.RateLimit.MaxRequests)
	}
}

// TestLoadConfigMissingFile 验证文件不存在时报错
func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(os.TempDir(), "no-such-config-xyz.yaml"))
	if err == nil {
		t.Error("加载不存在的配置文件应报错")
	}
}
