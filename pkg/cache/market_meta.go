package cache

import (
	"time"
)

// MarketMeta 市场静态元数据（基本不变，适合长 TTL 缓存）
type MarketMeta struct {
	MarketIndex  uint16
	Symbol       string
	SpotDecimals int32
	IsPerp       bool
}

// MarketMetaCache 市场元数据缓存
// 元数据（符号、精度）在市场生命周期内不变，与价格不同可以放心缓存
type MarketMetaCache struct {
	cache *InMemoryCache[uint16, MarketMeta]
}

// NewMarketMetaCache 创建新的市场元数据缓存
func NewMarketMetaCache() *MarketMetaCache {
	return &MarketMetaCache{
		cache: NewInMemoryCache[uint16, MarketMeta](30 * time.Minute),
	}
}

// Get 获取市场元数据
func (mc *MarketMetaCache) Get(marketIndex uint16) (MarketMeta, bool) {
	return mc.cache.Get(marketIndex)
}

// Set 设置市场元数据
func (mc *MarketMetaCache) Set(meta MarketMeta) {
	mc.cache.Set(meta.MarketIndex, meta, 30*time.Minute)
}

// Clear 清空缓存（会话结束时调用，避免跨会话复用）
func (mc *MarketMetaCache) Clear() {
	mc.cache.Clear()
}
