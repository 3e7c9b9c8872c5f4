package types

import (
	"math/big"
)

// OrderType is the venue-native order execution type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// PositionDirection is the venue-native order direction.
type PositionDirection string

const (
	DirectionLong  PositionDirection = "long"
	DirectionShort PositionDirection = "short"
)

// Precision exponents used by the venue's fixed-point integer encoding.
const (
	// PricePrecisionExp applies to all price-denominated fields.
	PricePrecisionExp int32 = 6
	// BasePrecisionExp applies to base-asset amounts of perp orders.
	BasePrecisionExp int32 = 9
)

// OrderParams is the venue-native perp order, ready for submission.
// All integer amounts are fixed-point: prices at 1e6, base amounts at 1e9.
type OrderParams struct {
	OrderType       OrderType         `json:"orderType"`
	MarketIndex     uint16            `json:"marketIndex"`
	Direction       PositionDirection `json:"direction"`
	BaseAssetAmount *big.Int          `json:"baseAssetAmount"`

	// Limit price; for oracle-offset orders this stays nil and the
	// venue derives the price from its oracle at match time.
	Price *big.Int `json:"price,omitempty"`

	// Auction fields (market orders only).
	AuctionStartPrice *big.Int `json:"auctionStartPrice,omitempty"`
	AuctionEndPrice   *big.Int `json:"auctionEndPrice,omitempty"`
	AuctionDuration   uint8    `json:"auctionDuration,omitempty"` // slots
	MaxTS             int64    `json:"maxTs,omitempty"`           // unix seconds, order expiry

	// Signed fixed-point offset relative to the live oracle price,
	// applied by the venue at match time (limit orders only).
	OraclePriceOffset int64 `json:"oraclePriceOffset,omitempty"`

	// ClientOrderID lets the dashboard correlate submissions with fills.
	ClientOrderID string `json:"clientOrderId,omitempty"`
}

// OrderResult is the venue's acknowledgement of a submitted order.
type OrderResult struct {
	OrderID     uint32 `json:"orderId"`
	TxSignature string `json:"txSignature"`
}
