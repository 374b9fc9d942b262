package relay

import (
	"encoding/json"
	"fmt"

	"tradesync/store"
)

// FieldError 单个字段的校验失败
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Payload 校验通过后的强类型载荷
type Payload struct {
	Trades        []store.Trade
	Account       *store.AccountInfo
	OpenPositions []store.OpenPosition
}

// ValidatePayload 对入站 JSON 载荷做整体结构校验
// 全量收集每个字段的失败项；要么整体通过，要么整体拒绝
func ValidatePayload(raw []byte) (*Payload, []FieldError) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, []FieldError{{Field: "body", Message: "请求体不是合法的 JSON 对象"}}
	}

	var errs []FieldError
	payload := &Payload{
		Trades:        []store.Trade{},
		OpenPositions: []store.OpenPosition{},
	}

	// trades 必填
	rawTrades, ok := body["trades"]
	if !ok || isJSONNull(rawTrades) {
		errs = append(errs, FieldError{Field: "trades", Message: "缺少必填字段"})
	} else {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(rawTrades, &items); err != nil {
			errs = append(errs, FieldError{Field: "trades", Message: "期望数组"})
		} else {
			for i, item := range items {
				trade, tradeErrs := validateTrade(item, fmt.Sprintf("trades[%d]", i))
				if len(tradeErrs) > 0 {
					errs = append(errs, tradeErrs...)
					continue
				}
				payload.Trades = append(payload.Trades, *trade)
			}
		}
	}

	// account 可空可缺省
	if rawAccount, ok := body["account"]; ok && !isJSONNull(rawAccount) {
		var item map[string]json.RawMessage
		if err := json.Unmarshal(rawAccount, &item); err != nil {
			errs = append(errs, FieldError{Field: "account", Message: "期望对象或 null"})
		} else {
			account, accErrs := validateAccount(item, "account")
			if len(accErrs) > 0 {
				errs = append(errs, accErrs...)
			} else {
				payload.Account = account
			}
		}
	}

	// openPositions 可缺省，缺省按空数组处理
	if rawPositions, ok := body["openPositions"]; ok && !isJSONNull(rawPositions) {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(rawPositions, &items); err != nil {
			errs = append(errs, FieldError{Field: "openPositions", Message: "期望数组"})
		} else {
			for i, item := range items {
				pos, posErrs := validatePosition(item, fmt.Sprintf("openPositions[%d]", i))
				if len(posErrs) > 0 {
					errs = append(errs, posErrs...)
					continue
				}
				payload.OpenPositions = append(payload.OpenPositions, *pos)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return payload, nil
}

// validateTrade 校验单条已平仓交易
// closeTime / closePrice 可缺省（EA 对进行中的统计周期不一定带收盘数据）
func validateTrade(item map[string]json.RawMessage, path string) (*store.Trade, []FieldError) {
	v := &fieldReader{item: item, path: path}
	trade := &store.Trade{
		Ticket:     v.requireInt("ticket"),
		Symbol:     v.requireString("symbol"),
		Type:       v.requireString("type"),
		OpenTime:   v.requireString("openTime"),
		CloseTime:  v.optionalString("closeTime"),
		Profit:     v.requireNumber("profit"),
		Commission: v.requireNumber("commission"),
		Swap:       v.requireNumber("swap"),
		Lots:       v.requireNumber("lots"),
		OpenPrice:  v.requireNumber("openPrice"),
		ClosePrice: v.optionalNumber("closePrice"),
	}
	return trade, v.errs
}

// validateAccount 校验账户信息
// isReal 允许布尔值或字符串 "true"/"false"（部分 EA 版本以字符串上报）
func validateAccount(item map[string]json.RawMessage, path string) (*store.AccountInfo, []FieldError) {
	v := &fieldReader{item: item, path: path}
	account := &store.AccountInfo{
		Login:    v.requireInt("login"),
		Name:     v.requireString("name"),
		Server:   v.requireString("server"),
		Currency: v.requireString("currency"),
		Leverage: v.requireNumber("leverage"),
		Balance:  v.requireNumber("balance"),
		Equity:   v.requireNumber("equity"),
		IsReal:   v.requireBoolOrString("isReal"),
	}
	return account, v.errs
}

// validatePosition 校验单条持仓
func validatePosition(item map[string]json.RawMessage, path string) (*store.OpenPosition, []FieldError) {
	v := &fieldReader{item: item, path: path}
	pos := &store.OpenPosition{
		Ticket:       v.requireInt("ticket"),
		Symbol:       v.requireString("symbol"),
		Type:         v.requireString("type"),
		OpenTime:     v.requireString("openTime"),
		OpenPrice:    v.requireNumber("openPrice"),
		CurrentPrice: v.requireNumber("currentPrice"),
		SL:           v.requireNumber("sl"),
		TP:           v.requireNumber("tp"),
		Lots:         v.requireNumber("lots"),
		Swap:         v.requireNumber("swap"),
		Profit:       v.requireNumber("profit"),
		Comment:      v.optionalString("comment"),
	}
	return pos, v.errs
}

// fieldReader 按字段取值并累积错误
type fieldReader struct {
	item map[string]json.RawMessage
	path string
	errs []FieldError
}

func (v *fieldReader) fail(field, message string) {
	v.errs = append(v.errs, FieldError{Field: v.path + "." + field, Message: message})
}

func (v *fieldReader) requireNumber(field string) float64 {
	raw, ok := v.item[field]
	if !ok || isJSONNull(raw) {
		v.fail(field, "缺少必填字段")
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		v.fail(field, "期望数值")
		return 0
	}
	return n
}

func (v *fieldReader) optionalNumber(field string) float64 {
	raw, ok := v.item[field]
	if !ok || isJSONNull(raw) {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		v.fail(field, "期望数值")
		return 0
	}
	return n
}

func (v *fieldReader) requireInt(field string) int64 {
	raw, ok := v.item[field]
	if !ok || isJSONNull(raw) {
		v.fail(field, "缺少必填字段")
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		v.fail(field, "期望数值")
		return 0
	}
	return int64(n)
}

func (v *fieldReader) requireString(field string) string {
	raw, ok := v.item[field]
	if !ok || isJSONNull(raw) {
		v.fail(field, "缺少必填字段")
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		v.fail(field, "期望字符串")
		return ""
	}
	return s
}

func (v *fieldReader) optionalString(field string) string {
	raw, ok := v.item[field]
	if !ok || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		v.fail(field, "期望字符串")
		return ""
	}
	return s
}

// requireBoolOrString 布尔字段，兼容 "true"/"false" 字面量字符串
func (v *fieldReader) requireBoolOrString(field string) bool {
	raw, ok := v.item[field]
	if !ok || isJSONNull(raw) {
		v.fail(field, "缺少必填字段")
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "true" || s == "false" {
			return s == "true"
		}
	}
	v.fail(field, "期望布尔值或 \"true\"/\"false\"")
	return false
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 4 && string(raw) == "null"
}
