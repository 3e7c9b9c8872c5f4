package domain

import (
	"github.com/shopspring/decimal"
)

// OrderKind 订单意图类型（封闭枚举，在适配层解码一次）
type OrderKind string

const (
	OrderKindLimit         OrderKind = "limit"
	OrderKindAuctionMarket OrderKind = "auction_market"
	OrderKindOracleOffset  OrderKind = "oracle_offset"
)

// Valid 验证订单类型取值
func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindLimit, OrderKindAuctionMarket, OrderKindOracleOffset:
		return true
	}
	return false
}

// OrderStatus 订单状态（封闭枚举）
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OpenOrder 子账户快照里的一条挂单
type OpenOrder struct {
	OrderID    uint32          `json:"orderId"`    // 交易所分配的订单编号
	MarketID   MarketID        `json:"marketId"`   // 市场索引
	Direction  Direction       `json:"direction"`  // 方向
	Kind       OrderKind       `json:"kind"`       // 订单类型
	Size       decimal.Decimal `json:"size"`       // 基础资产数量（人类可读单位）
	LimitPrice decimal.Decimal `json:"limitPrice"` // 限价（市价单为 0）
	Status     OrderStatus     `json:"status"`     // 状态
}

// OrderIntent 用户下单意图
// Kind 决定哪些价格字段有意义；通用字段对所有类型必填
type OrderIntent struct {
	Kind      OrderKind
	MarketID  MarketID
	Direction Direction
	HumanSize float64 // 基础资产数量，例如 100 表示 100 SOL

	// Limit
	LimitPrice float64

	// AuctionMarket：在 [start, end] 区间内按 slot 线性插值，final 为封顶价
	AuctionStartPrice    float64
	AuctionEndPrice      float64
	AuctionFinalPrice    float64
	AuctionDurationSlots int // 0 表示使用默认值
	TTLSeconds           int // 0 表示使用默认值

	// OracleOffset：相对预言机价格的有符号偏移，撮合时由交易所应用
	OracleOffset float64
}
