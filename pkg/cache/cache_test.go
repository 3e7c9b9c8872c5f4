package cache

import (
	"testing"
	"time"
)

func TestInMemoryCacheExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)

	c.Set("a", 1, 20*time.Millisecond)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get got=(%v,%v) want=(1,true)", v, ok)
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should not be returned")
	}
}

func TestMarketMetaCache(t *testing.T) {
	mc := NewMarketMetaCache()

	if _, ok := mc.Get(0); ok {
		t.Fatal("empty cache should miss")
	}

	mc.Set(MarketMeta{MarketIndex: 0, Symbol: "SOL-PERP", SpotDecimals: 6, IsPerp: true})
	meta, ok := mc.Get(0)
	if !ok || meta.Symbol != "SOL-PERP" || meta.SpotDecimals != 6 {
		t.Fatalf("Get got=(%+v,%v)", meta, ok)
	}

	mc.Clear()
	if _, ok := mc.Get(0); ok {
		t.Fatal("cleared cache should miss")
	}
}
