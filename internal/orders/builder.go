package orders

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpdash/perpdash/internal/domain"
	venuetypes "github.com/perpdash/perpdash/venue/types"
)

// 默认拍卖参数（与交易所 SDK 的默认值一致）
const (
	DefaultAuctionDurationSlots = 30  // 拍卖时长（slot）
	DefaultTTLSeconds           = 120 // 订单存活时间（秒）
)

// ToNative 将人类可读数量转换为指定精度的定点整数
func ToNative(human float64, decimals int32) *big.Int {
	return decimal.NewFromFloat(human).Shift(decimals).Round(0).BigInt()
}

// FromNative 将定点整数还原为人类可读数量
func FromNative(native *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(native, -decimals)
}

// priceToNative 价格 → 1e6 定点
func priceToNative(p float64) *big.Int {
	return ToNative(p, venuetypes.PricePrecisionExp)
}

// sizeToNative 基础资产数量 → 1e9 定点
func sizeToNative(s float64) *big.Int {
	return ToNative(s, venuetypes.BasePrecisionExp)
}

// PositiveFinite 数值为正且有限
// NaN 和 ±Inf 无法表示为定点金额，必须在本地校验阶段拦下，
// 否则会在 decimal 转换处 panic
func PositiveFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}

// finiteNonZero 数值有限且非零（带符号的偏移量用）
func finiteNonZero(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x != 0
}

// Validate 本地校验订单意图，不触网
// 任何校验失败都发生在联系交易所之前
func Validate(intent domain.OrderIntent) error {
	if !intent.Kind.Valid() {
		return fmt.Errorf("未知的订单类型: %q", intent.Kind)
	}
	if !intent.Direction.Valid() {
		return fmt.Errorf("未知的方向: %q", intent.Direction)
	}
	if !PositiveFinite(intent.HumanSize) {
		return fmt.Errorf("数量必须为正的有限值，实际为 %v", intent.HumanSize)
	}

	switch intent.Kind {
	case domain.OrderKindLimit:
		if !PositiveFinite(intent.LimitPrice) {
			return fmt.Errorf("限价必须为正的有限值，实际为 %v", intent.LimitPrice)
		}
	case domain.OrderKindAuctionMarket:
		if !PositiveFinite(intent.AuctionStartPrice) || !PositiveFinite(intent.AuctionEndPrice) || !PositiveFinite(intent.AuctionFinalPrice) {
			return fmt.Errorf("拍卖价格必须全部为正的有限值: start=%v end=%v final=%v",
				intent.AuctionStartPrice, intent.AuctionEndPrice, intent.AuctionFinalPrice)
		}
	case domain.OrderKindOracleOffset:
		if !finiteNonZero(intent.OracleOffset) {
			return fmt.Errorf("预言机偏移必须为非零有限值，实际为 %v", intent.OracleOffset)
		}
	}
	return nil
}

// Built 构建结果
type Built struct {
	Params *venuetypes.OrderParams

	// EffectiveRefPrice 仅对 OracleOffset 有意义：
	// 构建时的预言机价格 + 偏移，只计算一次，之后不再重推
	EffectiveRefPrice decimal.Decimal
}

// Build 将订单意图映射为交易所原生参数
// 纯转换：无网络、无状态、确定性（now 由调用方传入）
func Build(intent domain.OrderIntent, oraclePrice decimal.Decimal, now time.Time) (*Built, error) {
	if err := Validate(intent); err != nil {
		return nil, err
	}

	direction := venuetypes.DirectionLong
	if intent.Direction == domain.DirectionShort {
		direction = venuetypes.DirectionShort
	}

	base := &venuetypes.OrderParams{
		MarketIndex:     uint16(intent.MarketID),
		Direction:       direction,
		BaseAssetAmount: sizeToNative(intent.HumanSize),
	}

	switch intent.Kind {
	case domain.OrderKindLimit:
		base.OrderType = venuetypes.OrderTypeLimit
		base.Price = priceToNative(intent.LimitPrice)
		return &Built{Params: base}, nil

	case domain.OrderKindAuctionMarket:
		duration := intent.AuctionDurationSlots
		if duration <= 0 {
			duration = DefaultAuctionDurationSlots
		}
		ttl := intent.TTLSeconds
		if ttl <= 0 {
			ttl = DefaultTTLSeconds
		}
		base.OrderType = venuetypes.OrderTypeMarket
		base.AuctionStartPrice = priceToNative(intent.AuctionStartPrice)
		base.AuctionEndPrice = priceToNative(intent.AuctionEndPrice)
		base.Price = priceToNative(intent.AuctionFinalPrice)
		base.AuctionDuration = uint8(duration)
		base.MaxTS = now.Unix() + int64(ttl)
		return &Built{Params: base}, nil

	case domain.OrderKindOracleOffset:
		base.OrderType = venuetypes.OrderTypeLimit
		base.OraclePriceOffset = ToNative(intent.OracleOffset, venuetypes.PricePrecisionExp).Int64()
		// 参考价在构建时点固定下来，仅用于展示；
		// 撮合时交易所用它自己的实时预言机价格加偏移
		ref := oraclePrice.Add(decimal.NewFromFloat(intent.OracleOffset))
		return &Built{Params: base, EffectiveRefPrice: ref}, nil
	}

	return nil, fmt.Errorf("未知的订单类型: %q", intent.Kind)
}
