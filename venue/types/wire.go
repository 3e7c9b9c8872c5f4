package types

import (
	"encoding/json"
	"fmt"
)

// The venue SDK encodes enums as single-key objects, e.g.
//
//	"orderType": {"limit": {}}
//	"direction": {"short": {}}
//
// We decode them exactly once at this boundary into closed string enums;
// nothing downstream re-inspects raw wire shapes.

// WireEnum is a single-key-object enum as it appears on the wire.
type WireEnum map[string]json.RawMessage

// Key returns the single key, or an error for malformed payloads.
func (w WireEnum) Key() (string, error) {
	if len(w) != 1 {
		return "", fmt.Errorf("enum object must have exactly one key, got %d", len(w))
	}
	for k := range w {
		return k, nil
	}
	return "", nil // unreachable
}

// DecodeOrderType maps a wire enum onto OrderType.
func DecodeOrderType(w WireEnum) (OrderType, error) {
	k, err := w.Key()
	if err != nil {
		return "", err
	}
	switch k {
	case "limit", "triggerLimit":
		return OrderTypeLimit, nil
	case "market", "triggerMarket", "oracle":
		return OrderTypeMarket, nil
	}
	return "", fmt.Errorf("unknown order type %q", k)
}

// DecodeDirection maps a wire enum onto PositionDirection.
func DecodeDirection(w WireEnum) (PositionDirection, error) {
	k, err := w.Key()
	if err != nil {
		return "", err
	}
	switch k {
	case "long":
		return DirectionLong, nil
	case "short":
		return DirectionShort, nil
	}
	return "", fmt.Errorf("unknown direction %q", k)
}

// OrderStatusWire is the decoded order status.
type OrderStatusWire string

const (
	StatusOpen      OrderStatusWire = "open"
	StatusFilled    OrderStatusWire = "filled"
	StatusCancelled OrderStatusWire = "cancelled"
)

// DecodeOrderStatus maps a wire enum onto OrderStatusWire.
func DecodeOrderStatus(w WireEnum) (OrderStatusWire, error) {
	k, err := w.Key()
	if err != nil {
		return "", err
	}
	switch k {
	case "open", "init":
		return StatusOpen, nil
	case "filled":
		return StatusFilled, nil
	case "canceled", "cancelled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown order status %q", k)
}

// WireOrder is one open order as returned by the gateway.
type WireOrder struct {
	OrderID     uint32   `json:"orderId"`
	MarketIndex uint16   `json:"marketIndex"`
	OrderType   WireEnum `json:"orderType"`
	Direction   WireEnum `json:"direction"`
	Status      WireEnum `json:"status"`
	// Fixed-point integers as decimal strings (1e9 base, 1e6 price).
	BaseAssetAmount   string `json:"baseAssetAmount"`
	Price             string `json:"price"`
	OraclePriceOffset int64  `json:"oraclePriceOffset"`
}

// WireSubAccount is the gateway's sub-account payload.
type WireSubAccount struct {
	SubAccountID uint8  `json:"subAccountId"`
	Label        string `json:"name"`
	// 1e6 fixed-point USDC.
	TotalCollateral string `json:"totalCollateral"`
	// Basis points; 10000 = fully healthy.
	HealthRatioBps int64       `json:"healthRatioBps"`
	Orders         []WireOrder `json:"orders"`
}

// WireMarket is the gateway's market metadata payload.
type WireMarket struct {
	MarketIndex  uint16 `json:"marketIndex"`
	Symbol       string `json:"symbol"`
	SpotDecimals int32  `json:"spotDecimals"`
	IsPerp       bool   `json:"isPerp"`
}

// WireOraclePrice is the gateway's oracle price payload.
type WireOraclePrice struct {
	MarketIndex uint16 `json:"marketIndex"`
	// 1e6 fixed-point price.
	Price string `json:"price"`
	Slot  uint64 `json:"slot"`
}
