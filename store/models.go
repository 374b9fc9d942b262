package store

// Trade 已平仓交易记录（来自 MT5 EA 推送）
// ticket 仅作参考标识，不保证跨品种/跨同步键唯一
type Trade struct {
	Ticket     int64   `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"` // Buy / Sell
	OpenTime   string  `json:"openTime"`
	CloseTime  string  `json:"closeTime,omitempty"`
	OpenPrice  float64 `json:"openPrice"`
	ClosePrice float64 `json:"closePrice,omitempty"`
	Lots       float64 `json:"lots"`
	Profit     float64 `json:"profit"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
}

// NetProfit 净盈亏（派生值，不落盘）
func (t *Trade) NetProfit() float64 {
	return t.Profit + t.Commission + t.Swap
}

// AccountInfo 账户信息，每次推送最多一条
type AccountInfo struct {
	Login    int64   `json:"login"`
	Name     string  `json:"name"`
	Server   string  `json:"server"`
	Currency string  `json:"currency"`
	Leverage float64 `json:"leverage"`
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	IsReal   bool    `json:"isReal"` // 实盘 / 模拟盘
}

// OpenPosition 当前持仓（浮动盈亏），每次推送整体替换
type OpenPosition struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         string  `json:"type"`
	OpenTime     string  `json:"openTime"`
	OpenPrice    float64 `json:"openPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	SL           float64 `json:"sl"`
	TP           float64 `json:"tp"`
	Lots         float64 `json:"lots"`
	Swap         float64 `json:"swap"`
	Profit       float64 `json:"profit"` // 浮动盈亏
	Comment      string  `json:"comment,omitempty"`
}

// Snapshot 单个同步键的完整快照
// 每次推送整体替换，LastUpdated 单调不减（毫秒时间戳）
type Snapshot struct {
	Trades        []Trade        `json:"trades"`
	Account       *AccountInfo   `json:"account"`
	OpenPositions []OpenPosition `json:"openPositions"`
	LastUpdated   int64          `json:"lastUpdated"`
	LastIP        string         `json:"lastIp,omitempty"`
}

// Clone 深拷贝快照，读取方永远拿不到内部切片的引用
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := &Snapshot{
		LastUpdated: s.LastUpdated,
		LastIP:      s.LastIP,
	}
	cp.Trades = make([]Trade, len(s.Trades))
	copy(cp.Trades, s.Trades)
	cp.OpenPositions = make([]OpenPosition, len(s.OpenPositions))
	copy(cp.OpenPositions, s.OpenPositions)
	if s.Account != nil {
		acc := *s.Account
		cp.Account = &acc
	}
	return cp
}
