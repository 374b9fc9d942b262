package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func sampleTrade() Trade {
	return Trade{
		Ticket:     123456,
		Symbol:     "XAUUSD",
		Type:       "Buy",
		OpenTime:   "2025-01-15 10:30:00",
		CloseTime:  "2025-01-15 14:45:00",
		OpenPrice:  2650.50,
		ClosePrice: 2662.10,
		Lots:       0.10,
		Profit:     116.00,
		Commission: -0.70,
		Swap:       -1.20,
	}
}

func sampleAccount() *AccountInfo {
	return &AccountInfo{
		Login:    1001234,
		Name:     "Demo Account",
		Server:   "Broker-Demo",
		Currency: "USD",
		Leverage: 500,
		Balance:  10000.00,
		Equity:   10114.10,
		IsReal:   false,
	}
}

// TestPutAndGet 验证推送后能读回等价快照
func TestPutAndGet(t *testing.T) {
	ss := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots.json"))

	trade := sampleTrade()
	snap := ss.Put("sk_test", []Trade{trade}, sampleAccount(), nil, "10.0.0.1")
	if snap.LastUpdated <= 0 {
		t.Fatalf("LastUpdated 应为正毫秒时间戳，实际为 %d", snap.LastUpdated)
	}

	got := ss.Get("sk_test")
	if got == nil {
		t.Fatal("应能读回快照")
	}
	if len(got.Trades) != 1 || !reflect.DeepEqual(got.Trades[0], trade) {
		t.Errorf("读回的交易与写入不一致: %+v", got.Trades)
	}
	if got.Account == nil || got.Account.Login != 1001234 {
		t.Errorf("读回的账户信息错误: %+v", got.Account)
	}
	if got.OpenPositions == nil || len(got.OpenPositions) != 0 {
		t.Errorf("nil 持仓应归一化为空数组: %+v", got.OpenPositions)
	}
	if got.LastIP != "10.0.0.1" {
		t.Errorf("LastIP 应为 10.0.0.1，实际为 %s", got.LastIP)
	}
}

// TestGetUnknownKey 未推送过的键应返回 nil
func TestGetUnknownKey(t *testing.T) {
	ss := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots.json"))
	if snap := ss.Get("sk_never"); snap != nil {
		t.Errorf("未知键应返回 nil，实际为 %+v", snap)
	}
}

// TestLastUpdatedMonotonic 同一毫秒内的连续推送时间戳仍严格递增
func TestLastUpdatedMonotonic(t *testing.T) {
	ss := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots.json"))

	fixed := time.UnixMilli(1700000000000)
	ss.now = func() time.Time { return fixed }

	s1 := ss.Put("sk", nil, nil, nil, "")
	s2 := ss.Put("sk", nil, nil, nil, "")
	s3 := ss.Put("sk", nil, nil, nil, "")

	if !(s1.LastUpdated < s2.LastUpdated && s2.LastUpdated < s3.LastUpdated) {
		t.Errorf("时间戳应严格递增: %d, %d, %d", s1.LastUpdated, s2.LastUpdated, s3.LastUpdated)
	}
}

// TestCloneIsolation 读取方修改返回值不应影响存储内部状态
func TestCloneIsolation(t *testing.T) {
	ss := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots.json"))
	ss.Put("sk", []Trade{sampleTrade()}, sampleAccount(), nil, "")

	got := ss.Get("sk")
	got.Trades[0].Profit = -9999
	got.Account.Balance = 0

	again := ss.Get("sk")
	if again.Trades[0].Profit != 116.00 {
		t.Error("修改返回的快照不应影响内部状态（Trades）")
	}
	if again.Account.Balance != 10000.00 {
		t.Error("修改返回的快照不应影响内部状态（Account）")
	}
}

// TestPersistenceRoundTrip 落盘后重新加载应恢复全部快照
func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")

	ss := NewSnapshotStore(path)
	ss.Put("sk_a", []Trade{sampleTrade()}, sampleAccount(), nil, "10.0.0.1")
	ss.Put("sk_b", nil, nil, []OpenPosition{{Ticket: 1, Symbol: "EURUSD", Type: "Sell"}}, "")

	if err := ss.Flush(); err != nil {
		t.Fatalf("落盘失败: %v", err)
	}

	reloaded := NewSnapshotStore(path)
	if reloaded.KeyCount() != 2 {
		t.Fatalf("重新加载应有 2 个键，实际为 %d", reloaded.KeyCount())
	}

	a := reloaded.Get("sk_a")
	if a == nil || len(a.Trades) != 1 || a.Trades[0].Symbol != "XAUUSD" {
		t.Errorf("sk_a 快照恢复错误: %+v", a)
	}
	b := reloaded.Get("sk_b")
	if b == nil || len(b.OpenPositions) != 1 || b.OpenPositions[0].Symbol != "EURUSD" {
		t.Errorf("sk_b 快照恢复错误: %+v", b)
	}
}

// TestCorruptFileStartsEmpty 持久化文件损坏时按空存储启动，不崩溃
func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	ss := NewSnapshotStore(path)
	if ss.KeyCount() != 0 {
		t.Errorf("损坏文件应按空存储启动，实际有 %d 个键", ss.KeyCount())
	}

	// 仍然可以正常写入并覆盖损坏文件
	ss.Put("sk", nil, nil, nil, "")
	if err := ss.Flush(); err != nil {
		t.Fatalf("覆盖损坏文件落盘失败: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]*Snapshot
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("落盘后的文件应为合法 JSON: %v", err)
	}
}

// TestConcurrentPutGet 并发读写不应竞争（配合 -race 运行）
func TestConcurrentPutGet(t *testing.T) {
	ss := NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots.json"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ss.Put("sk", []Trade{sampleTrade()}, nil, nil, "")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ss.Get("sk")
			}
		}()
	}
	wg.Wait()

	if snap := ss.Get("sk"); snap == nil || len(snap.Trades) != 1 {
		t.Error("并发写入后快照应完整")
	}
}

// TestNetProfit 净盈亏派生值
func TestNetProfit(t *testing.T) {
	trade := sampleTrade()
	want := 116.00 - 0.70 - 1.20
	if got := trade.NetProfit(); got != want {
		t.Errorf("净盈亏应为 %f，实际为 %f", want, got)
	}
}
