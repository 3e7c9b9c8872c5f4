package session

import (
	"context"
	"errors"
	"time"

	"github.com/perpdash/perpdash/internal/ports"
	"github.com/perpdash/perpdash/pkg/syncgroup"
)

// startPolling 为指定会话启动市场轮询 goroutine
// client 不再是当前会话时（重连竞态）直接放弃，不碰已有的轮询状态
func (s *Store) startPolling(client ports.VenueClient) {
	ctx, cancel := context.WithCancel(context.Background())
	group := syncgroup.NewSyncGroup()

	s.mu.Lock()
	if s.client != client {
		s.mu.Unlock()
		cancel()
		return
	}
	prev := s.pollCancel
	s.pollCancel = cancel
	s.pollGroup = group
	s.mu.Unlock()

	// 同一会话重复启动时先停掉旧 loop，不留下无人取消的 goroutine
	if prev != nil {
		prev()
	}

	group.Add(func() {
		s.pollLoop(ctx, client)
	})
	group.Run()
}

// pollLoop 按固定墙钟间隔刷新当前市场，直到会话结束
//
// 每个 tick 在自己的 goroutine 里跑：慢 tick、失败 tick 都不会
// 推迟或跳过下一个 tick（不积压，按墙钟调度而不是串行链式调度）
func (s *Store) pollLoop(ctx context.Context, client ports.VenueClient) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	log.Debugf("市场轮询已启动: interval=%v", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Debug("市场轮询已停止")
			return
		case <-ticker.C:
			go s.pollTick(ctx, client)
		}
	}
}

// pollTick 单次轮询：刷新捕获时点的当前市场
// 刷新失败记日志后吞掉，保留上次快照；致命会话错误则使会话失效
func (s *Store) pollTick(ctx context.Context, client ports.VenueClient) {
	s.mu.Lock()
	if s.client != client {
		s.mu.Unlock()
		return // 会话已切换，这个 loop 很快会被 cancel
	}
	target := s.currentMarket
	s.mu.Unlock()

	if err := s.refreshMarketFor(ctx, client, target); err != nil {
		if errors.Is(err, ports.ErrSessionClosed) {
			log.Warnf("轮询发现会话已失效: %v", err)
			s.invalidate(client)
			return
		}
		// 只记日志，保留上次快照，下一个 tick 照常调度
		log.Warnf("轮询刷新市场 %d 失败（保留上次快照）: %v", target, err)
	}
}
