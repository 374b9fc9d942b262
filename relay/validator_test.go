package relay

import (
	"strings"
	"testing"
)

const validPayload = `{
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
	},
	"openPositions": [{
		"ticket": 654321,
		"symbol": "EURUSD",
		"type": "Sell",
		"openTime": "2025-01-15 12:00:00",
		"openPrice": 1.0850,
		"currentPrice": 1.0842,
		"sl": 1.0900,
		"tp": 1.0800,
		"lots": 0.2,
		"swap": 0,
		"profit": 16.0
	}]
}`

func hasFieldError(errs []FieldError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

// TestValidPayload 合法载荷应整体通过
func TestValidPayload(t *testing.T) {
	payload, errs := ValidatePayload([]byte(validPayload))
	if len(errs) > 0 {
		t.Fatalf("合法载荷不应有校验错误: %v", errs)
	}
	if len(payload.Trades) != 1 || payload.Trades[0].Symbol != "XAUUSD" {
		t.Errorf("交易解析错误: %+v", payload.Trades)
	}
	if payload.Account == nil || payload.Account.Login != 1001234 {
		t.Errorf("账户解析错误: %+v", payload.Account)
	}
	if len(payload.OpenPositions) != 1 || payload.OpenPositions[0].TP != 1.08 {
		t.Errorf("持仓解析错误: %+v", payload.OpenPositions)
	}
}

// TestStringProfitRejected 数值字段传字符串应整体拒绝并定位到具体字段
func TestStringProfitRejected(t *testing.T) {
	bad := strings.Replace(validPayload, `"profit": 116.0`, `"profit": "116.0"`, 1)

	payload, errs := ValidatePayload([]byte(bad))
	if payload != nil {
		t.Fatal("含非法字段的载荷应整体拒绝")
	}
	if !hasFieldError(errs, "trades[0].profit") {
		t.Errorf("应报告 trades[0].profit 错误，实际为 %v", errs)
	}
}

// TestMissingRequiredFields 缺失必填字段应全量收集
func TestMissingRequiredFields(t *testing.T) {
	body := `{"trades": [{"ticket": 1, "type": "Buy"}]}`

	_, errs := ValidatePayload([]byte(body))
	for _, field := range []string{"trades[0].symbol", "trades[0].openTime", "trades[0].profit", "trades[0].lots"} {
		if !hasFieldError(errs, field) {
			t.Errorf("应报告 %s 缺失，实际为 %v", field, errs)
		}
	}
}

// TestTradesRequired trades 字段本身必填
func TestTradesRequired(t *testing.T) {
	_, errs := ValidatePayload([]byte(`{"account": null}`))
	if !hasFieldError(errs, "trades") {
		t.Errorf("缺少 trades 应校验失败，实际为 %v", errs)
	}
}

// TestEmptyTradesAllowed 空交易数组是合法的（新账户尚无历史）
func TestEmptyTradesAllowed(t *testing.T) {
	payload, errs := ValidatePayload([]byte(`{"trades": []}`))
	if len(errs) > 0 {
		t.Fatalf("空交易数组应合法: %v", errs)
	}
	if payload.Account != nil {
		t.Error("缺省 account 应为 nil")
	}
	if payload.OpenPositions == nil || len(payload.OpenPositions) != 0 {
		t.Error("缺省 openPositions 应为空数组")
	}
}

// TestAccountNullAllowed account 显式 null 合法
func TestAccountNullAllowed(t *testing.T) {
	payload, errs := ValidatePayload([]byte(`{"trades": [], "account": null}`))
	if len(errs) > 0 {
		t.Fatalf("account 为 null 应合法: %v", errs)
	}
	if payload.Account != nil {
		t.Error("null account 应解析为 nil")
	}
}

// TestIsRealStringCoercion isReal 兼容 "true"/"false" 字符串
func TestIsRealStringCoercion(t *testing.T) {
	asString := strings.Replace(validPayload, `"isReal": false`, `"isReal": "true"`, 1)
	payload, errs := ValidatePayload([]byte(asString))
	if len(errs) > 0 {
		t.Fatalf("isReal 字符串 \"true\" 应合法: %v", errs)
	}
	if !payload.Account.IsReal {
		t.Error("isReal \"true\" 应解析为 true")
	}

	invalid := strings.Replace(validPayload, `"isReal": false`, `"isReal": "yes"`, 1)
	_, errs = ValidatePayload([]byte(invalid))
	if !hasFieldError(errs, "account.isReal") {
		t.Errorf("isReal \"yes\" 应校验失败，实际为 %v", errs)
	}
}

// TestOptionalCloseFields closeTime / closePrice 可缺省
func TestOptionalCloseFields(t *testing.T) {
	body := `{"trades": [{
		"ticket": 1, "symbol": "XAUUSD", "type": "Buy",
		"openTime": "2025-01-15 10:30:00",
		"openPrice": 2650.5, "lots": 0.1,
		"profit": 0, "commission": 0, "swap": 0
	}]}`

	payload, errs := ValidatePayload([]byte(body))
	if len(errs) > 0 {
		t.Fatalf("缺省收盘字段应合法: %v", errs)
	}
	if payload.Trades[0].CloseTime != "" || payload.Trades[0].ClosePrice != 0 {
		t.Errorf("缺省收盘字段应为零值: %+v", payload.Trades[0])
	}
}

// TestMultipleErrorsCollected 多处错误应一次全部返回
func TestMultipleErrorsCollected(t *testing.T) {
	bad := validPayload
	bad = strings.Replace(bad, `"profit": 116.0`, `"profit": "x"`, 1)
	bad = strings.Replace(bad, `"login": 1001234`, `"login": "x"`, 1)
	bad = strings.Replace(bad, `"sl": 1.0900`, `"sl": "x"`, 1)

	_, errs := ValidatePayload([]byte(bad))
	if len(errs) < 3 {
		t.Fatalf("应收集全部 3 处错误，实际为 %v", errs)
	}
	for _, field := range []string{"trades[0].profit", "account.login", "openPositions[0].sl"} {
		if !hasFieldError(errs, field) {
			t.Errorf("应报告 %s 错误，实际为 %v", field, errs)
		}
	}
}

// TestNonObjectBody 非对象请求体
func TestNonObjectBody(t *testing.T) {
	for _, body := range []string{`[]`, `"hello"`, `not json`} {
		payload, errs := ValidatePayload([]byte(body))
		if payload != nil || len(errs) == 0 {
			t.Errorf("请求体 %q 应整体拒绝", body)
		}
	}
}
