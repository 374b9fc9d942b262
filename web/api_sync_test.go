package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tradesync/relay"
	"tradesync/store"
)

const testPayload = `{
	"trades": [{
		"ticket": 123456,
		"symbol": "XAUUSD",
		"type": "Buy",
		"openTime": "2025-01-15 10:30:00",
		"closeTime": "2025-01-15 14:45:00",
		"openPrice": 2650.5,
		"closePrice": 2662.1,
		"lots": 0.1,
		"profit": 116.0,
		"commission": -0.7,
		"swap": -1.2
	}],
	"account": {
		"login": 1001234,
		"name": "Demo Account",
		"server": "Broker-Demo",
		"currency": "USD",
		"leverage": 500,
		"balance": 10000.0,
		"equity": 10114.1,
		"isReal": false
	}
}`

// setupTestRouter 组装测试路由，每个测试用独立的存储与限流器
func setupTestRouter(t *testing.T, maxPerWindow int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	SetStore(store.NewSnapshotStore(filepath.Join(t.TempDir(), "snapshots.json")))
	SetLimiter(relay.NewSlidingWindowLimiter(time.Second, maxPerWindow))
	SetGlobalGuard(relay.NewGlobalGuard(10000, 10000))
	SetEventStore(nil)
	SetConfig(nil)

	r := gin.New()
	SetupRoutes(r, false)
	return r
}

func postWebhook(r *gin.Engine, syncKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if syncKey != "" {
		req.Header.Set("sync-key", syncKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestPushThenPoll 推送后轮询应返回同一笔交易与正时间戳
func TestPushThenPoll(t *testing.T) {
	r := setupTestRouter(t, 100)

	w := postWebhook(r, "sk_test", testPayload)
	if w.Code != http.StatusOK {
		t.Fatalf("推送应返回 200，实际为 %d: %s", w.Code, w.Body.String())
	}
	var pushResp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &pushResp); err != nil {
		t.Fatal(err)
	}
	if pushResp["success"] != true {
		t.Errorf("推送响应应为 success=true: %v", pushResp)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/trades/sk_test", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	if w2.Code != http.StatusOK {
		t.Fatalf("轮询应返回 200，实际为 %d", w2.Code)
	}

	var resp struct {
		Success     bool          `json:"success"`
		Trades      []store.Trade `json:"trades"`
		LastUpdated int64         `json:"lastUpdated"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Error("轮询响应应为 success=true")
	}
	if len(resp.Trades) != 1 || resp.Trades[0].Ticket != 123456 {
		t.Errorf("应返回推送的交易: %+v", resp.Trades)
	}
	if resp.LastUpdated <= 0 {
		t.Errorf("lastUpdated 应为正值: %d", resp.LastUpdated)
	}
}

// TestPollNotModified 带最新 lastUpdated 的轮询应返回 304 空响应
func TestPollNotModified(t *testing.T) {
	r := setupTestRouter(t, 100)
	postWebhook(r, "sk_test", testPayload)

	// 先拿最新时间戳
	req := httptest.NewRequest(http.MethodGet, "/api/trades/sk_test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		LastUpdated int64 `json:"lastUpdated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	req2 := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/trades/sk_test?lastUpdated=%d", resp.LastUpdated), nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusNotModified {
		t.Errorf("已是最新应返回 304，实际为 %d", w2.Code)
	}
	if w2.Body.Len() != 0 {
		t.Errorf("304 响应体应为空: %s", w2.Body.String())
	}
}

// TestPollUnknownKey 未知同步键返回 404
func TestPollUnknownKey(t *testing.T) {
	r := setupTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/api/trades/sk_unknown", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("未知键应返回 404，实际为 %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["success"] != false || resp["message"] != "No data yet" {
		t.Errorf("404 响应体错误: %v", resp)
	}
}

// TestWebhookMissingSyncKey 缺少 sync-key 头返回 401
func TestWebhookMissingSyncKey(t *testing.T) {
	r := setupTestRouter(t, 100)

	w := postWebhook(r, "", testPayload)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("缺少 sync-key 应返回 401，实际为 %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "Missing sync-key header" {
		t.Errorf("401 错误消息错误: %v", resp)
	}
}

// TestWebhookInvalidPayload 非法载荷返回 400 并带字段明细
func TestWebhookInvalidPayload(t *testing.T) {
	r := setupTestRouter(t, 100)

	bad := strings.Replace(testPayload, `"profit": 116.0`, `"profit": "oops"`, 1)
	w := postWebhook(r, "sk_test", bad)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("非法载荷应返回 400，实际为 %d", w.Code)
	}

	var resp struct {
		Error   string `json:"error"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "Invalid payload" {
		t.Errorf("错误消息应为 Invalid payload: %s", resp.Error)
	}
	found := false
	for _, d := range resp.Details {
		if d.Field == "trades[0].profit" {
			found = true
		}
	}
	if !found {
		t.Errorf("明细应定位到 trades[0].profit: %+v", resp.Details)
	}

	// 整体拒绝：快照不应被写入
	req := httptest.NewRequest(http.MethodGet, "/api/trades/sk_test", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	if w2.Code != http.StatusNotFound {
		t.Errorf("被拒载荷不应写入快照，轮询应 404，实际为 %d", w2.Code)
	}
}

// TestWebhookRateLimited 窗口内第 6 次推送被限流
func TestWebhookRateLimited(t *testing.T) {
	r := setupTestRouter(t, 5)

	for i := 0; i < 5; i++ {
		w := postWebhook(r, "sk_test", testPayload)
		if w.Code != http.StatusOK {
			t.Fatalf("第 %d 次推送应成功，实际为 %d", i+1, w.Code)
		}
	}

	w := postWebhook(r, "sk_test", testPayload)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("第 6 次推送应返回 429，实际为 %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := resp["error"]; !ok {
		t.Errorf("429 响应应含 error 字段: %v", resp)
	}
}

// TestSnapshotReplacedWholly 后一次推送整体替换前一次的快照
func TestSnapshotReplacedWholly(t *testing.T) {
	r := setupTestRouter(t, 100)
	postWebhook(r, "sk_test", testPayload)

	// 第二次推送只有空交易列表
	w := postWebhook(r, "sk_test", `{"trades": []}`)
	if w.Code != http.StatusOK {
		t.Fatalf("第二次推送应成功，实际为 %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/trades/sk_test", nil)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	var resp struct {
		Trades  []store.Trade      `json:"trades"`
		Account *store.AccountInfo `json:"account"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Trades) != 0 {
		t.Errorf("快照应被整体替换为空交易列表: %+v", resp.Trades)
	}
	if resp.Account != nil {
		t.Errorf("未携带 account 的推送应清空账户信息: %+v", resp.Account)
	}
}

// TestHealthz 存活探针
func TestHealthz(t *testing.T) {
	r := setupTestRouter(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("/healthz 应返回 200，实际为 %d", w.Code)
	}
}
