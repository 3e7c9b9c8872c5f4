package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubAccountID 子账户编号，本交易所合法范围 0..7
type SubAccountID uint8

// MaxSubAccountID 子账户编号上限（含）
const MaxSubAccountID SubAccountID = 7

// Valid 验证子账户编号范围
func (id SubAccountID) Valid() bool {
	return id <= MaxSubAccountID
}

// SubAccountSnapshot 子账户的时点快照
// 每次刷新整体替换，读者不会看到撕裂的中间状态
type SubAccountSnapshot struct {
	ID          SubAccountID    `json:"id"`          // 子账户编号
	Label       string          `json:"label"`       // 子账户名称
	Collateral  decimal.Decimal `json:"collateral"`  // 抵押品总值（USDC）
	HealthRatio decimal.Decimal `json:"healthRatio"` // 健康率（交易所计算，客户端只展示）
	OpenOrders  []OpenOrder     `json:"openOrders"`  // 挂单列表（有序）
	FetchedAt   time.Time       `json:"fetchedAt"`   // 快照抓取时间
}
