package client

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/perpdash/perpdash/internal/domain"
	venuetypes "github.com/perpdash/perpdash/venue/types"
)

// collateralPrecisionExp is the fixed-point exponent of USDC-denominated
// sub-account fields.
const collateralPrecisionExp int32 = 6

// decodeSubAccount converts the gateway payload into a domain snapshot.
// Wire enums are decoded here exactly once; malformed payloads fail the
// whole snapshot rather than producing a partial one.
func decodeSubAccount(wire *venuetypes.WireSubAccount) (*domain.SubAccountSnapshot, error) {
	collateral, err := decimal.NewFromString(wire.TotalCollateral)
	if err != nil {
		return nil, errors.Wrapf(err, "parse collateral %q", wire.TotalCollateral)
	}

	snap := &domain.SubAccountSnapshot{
		ID:          domain.SubAccountID(wire.SubAccountID),
		Label:       wire.Label,
		Collateral:  collateral.Shift(-collateralPrecisionExp),
		HealthRatio: decimal.New(wire.HealthRatioBps, -4),
		FetchedAt:   time.Now(),
	}

	for _, wo := range wire.Orders {
		order, err := decodeOrder(wo)
		if err != nil {
			return nil, errors.Wrapf(err, "order %d", wo.OrderID)
		}
		snap.OpenOrders = append(snap.OpenOrders, order)
	}
	return snap, nil
}

func decodeOrder(wire venuetypes.WireOrder) (domain.OpenOrder, error) {
	var out domain.OpenOrder

	ot, err := venuetypes.DecodeOrderType(wire.OrderType)
	if err != nil {
		return out, err
	}
	dir, err := venuetypes.DecodeDirection(wire.Direction)
	if err != nil {
		return out, err
	}
	status, err := venuetypes.DecodeOrderStatus(wire.Status)
	if err != nil {
		return out, err
	}

	size, err := decimal.NewFromString(wire.BaseAssetAmount)
	if err != nil {
		return out, errors.Wrapf(err, "parse size %q", wire.BaseAssetAmount)
	}
	price, err := decimal.NewFromString(wire.Price)
	if err != nil {
		return out, errors.Wrapf(err, "parse price %q", wire.Price)
	}

	out = domain.OpenOrder{
		OrderID:    wire.OrderID,
		MarketID:   domain.MarketID(wire.MarketIndex),
		Direction:  decodeDirection(dir),
		Kind:       decodeKind(ot, wire.OraclePriceOffset),
		Size:       size.Shift(-venuetypes.BasePrecisionExp),
		LimitPrice: price.Shift(-venuetypes.PricePrecisionExp),
		Status:     decodeStatus(status),
	}
	return out, nil
}

func decodeDirection(d venuetypes.PositionDirection) domain.Direction {
	if d == venuetypes.DirectionShort {
		return domain.DirectionShort
	}
	return domain.DirectionLong
}

// decodeKind recovers the intent kind from the venue-native order. The
// venue stores oracle-offset orders as limit orders with a non-zero
// oraclePriceOffset field.
func decodeKind(ot venuetypes.OrderType, oracleOffset int64) domain.OrderKind {
	switch {
	case ot == venuetypes.OrderTypeMarket:
		return domain.OrderKindAuctionMarket
	case oracleOffset != 0:
		return domain.OrderKindOracleOffset
	default:
		return domain.OrderKindLimit
	}
}

func decodeStatus(s venuetypes.OrderStatusWire) domain.OrderStatus {
	switch s {
	case venuetypes.StatusFilled:
		return domain.OrderStatusFilled
	case venuetypes.StatusCancelled:
		return domain.OrderStatusCancelled
	default:
		return domain.OrderStatusOpen
	}
}
