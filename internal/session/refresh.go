package session

import (
	"context"
	"fmt"
	"time"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/ports"
)

// RefreshSubAccount 抓取当前子账户的新快照并整体替换缓存
//
// 幂等，可与自己并发：两次并发刷新以"后完成者"为准（按完成时间，
// 不是按发起时间）。快照整体替换，读者看不到撕裂状态
func (s *Store) RefreshSubAccount(ctx context.Context) error {
	client, id, _, err := s.captureSession()
	if err != nil {
		return err
	}

	snap, err := client.GetSubAccount(ctx, id)
	if err != nil {
		return &RefreshError{Target: fmt.Sprintf("subaccount %d", id), Err: err}
	}

	s.mu.Lock()
	// 快照只对产生它的会话有效；会话换了就丢弃
	if s.client == client {
		s.subAccount = snap
	}
	s.mu.Unlock()
	s.changed.Emit()
	return nil
}

// RefreshMarket 刷新指定市场（缺省为当前市场）的元数据和预言机价格
//
// 失败时保留上一份快照（宁可陈旧，不要空缺）；
// 写入的永远是调用时捕获的目标市场，用户中途切换当前市场不影响写入目标
func (s *Store) RefreshMarket(ctx context.Context, id ...domain.MarketID) error {
	client, _, current, err := s.captureSession()
	if err != nil {
		return err
	}
	target := current
	if len(id) > 0 {
		target = id[0]
	}

	return s.refreshMarketFor(ctx, client, target)
}

// refreshMarketFor 对指定会话句柄执行一次市场刷新
func (s *Store) refreshMarketFor(ctx context.Context, client ports.VenueClient, target domain.MarketID) error {
	meta, err := client.GetMarket(ctx, target)
	if err != nil {
		return &RefreshError{Target: fmt.Sprintf("market %d", target), Err: err}
	}
	price, err := client.GetOraclePrice(ctx, target)
	if err != nil {
		return &RefreshError{Target: fmt.Sprintf("market %d oracle", target), Err: err}
	}

	snap := *meta
	snap.MarketID = target
	snap.OraclePrice = price
	snap.UpdatedAt = time.Now()

	s.mu.Lock()
	if s.client == client {
		s.markets[target] = &snap
	}
	s.mu.Unlock()
	s.changed.Emit()
	return nil
}

// marketDecimals 取指定市场的现货精度；缓存没有时向交易所查元数据
func (s *Store) marketDecimals(ctx context.Context, client ports.VenueClient, id domain.MarketID) (int32, error) {
	s.mu.Lock()
	snap := s.markets[id]
	s.mu.Unlock()

	if snap != nil && snap.SpotDecimals > 0 {
		return snap.SpotDecimals, nil
	}

	meta, err := client.GetMarket(ctx, id)
	if err != nil {
		return 0, err
	}
	return meta.SpotDecimals, nil
}
