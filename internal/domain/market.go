package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketID 市场索引（perp 和 spot 共用索引空间）
type MarketID uint16

// MarketSnapshot 单个市场的快照：元数据 + 预言机价格
// 整体替换，不做部分更新；只对产生它的会话有效
type MarketSnapshot struct {
	MarketID     MarketID        `json:"marketId"`     // 市场索引
	Symbol       string          `json:"symbol"`       // 例如 SOL-PERP
	SpotDecimals int32           `json:"spotDecimals"` // 现货精度（市场 0 为 6，市场 1 为 9）
	IsPerp       bool            `json:"isPerp"`       // 是否为永续市场
	OraclePrice  decimal.Decimal `json:"oraclePrice"`  // 预言机价格（人类可读单位）
	UpdatedAt    time.Time       `json:"updatedAt"`    // 快照抓取时间
}

// IsValid 验证快照是否有效
func (m *MarketSnapshot) IsValid() bool {
	return m != nil && m.SpotDecimals > 0 && !m.UpdatedAt.IsZero()
}

// Direction 持仓方向
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid 验证方向取值
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}
