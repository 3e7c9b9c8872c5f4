package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/journal"
	"github.com/perpdash/perpdash/internal/ports"
	"github.com/perpdash/perpdash/internal/wallet"
	"github.com/perpdash/perpdash/pkg/sigchan"
	"github.com/perpdash/perpdash/pkg/syncgroup"
)

var log = logrus.WithField("component", "session_store")

// DefaultPollInterval 市场价格轮询间隔
const DefaultPollInterval = 5 * time.Second

// Store 会话状态存储：会话句柄、当前选择、缓存快照的唯一事实来源
// 所有状态变更都走这里的操作集，其他组件不允许直接改
//
// 并发模型：互斥锁只在捕获/提交状态时持有，从不跨越交易所调用；
// 交易所调用就是挂起点。并发刷新按"后完成者赢"处理（见 refresh.go）
type Store struct {
	connector    ports.VenueConnector
	recorder     journal.Recorder // 可选，nil 表示不记流水
	pollInterval time.Duration
	changed      *sigchan.Chan

	mu            sync.Mutex
	client        ports.VenueClient // nil 表示没有会话
	authority     solana.PublicKey
	currentSub    domain.SubAccountID
	currentMarket domain.MarketID
	subAccount    *domain.SubAccountSnapshot
	markets       map[domain.MarketID]*domain.MarketSnapshot
	pollCancel    context.CancelFunc
	pollGroup     *syncgroup.SyncGroup
}

// Option Store 构造选项
type Option func(*Store)

// WithPollInterval 设置轮询间隔（测试用短间隔）
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithRecorder 设置活动流水记录器
func WithRecorder(r journal.Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// New 创建会话存储
func New(connector ports.VenueConnector, opts ...Option) *Store {
	s := &Store{
		connector:    connector,
		pollInterval: DefaultPollInterval,
		changed:      sigchan.New(1),
		markets:      make(map[domain.MarketID]*domain.MarketSnapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Changed 状态变更信号，UI 收到后重新读取即可（信号可合并）
func (s *Store) Changed() <-chan struct{} {
	return s.changed.C()
}

// InitSession 建立会话：连接交易所、抓首个市场和当前子账户、启动轮询
// 失败时不留半初始化状态（要么有完整会话，要么没有）
func (s *Store) InitSession(ctx context.Context, w wallet.Capability) error {
	if !w.Ready() {
		return &SessionInitError{Reason: "wallet capability incomplete"}
	}

	client, err := s.connector.Connect(ctx, w)
	if err != nil {
		return &SessionInitError{Reason: "venue connect failed", Err: err}
	}

	s.mu.Lock()
	// 重连场景：丢弃旧会话（旧快照跨会话无效）
	old := s.client
	oldCancel := s.pollCancel
	s.client = client
	s.authority = w.PublicKey
	s.subAccount = nil
	s.markets = make(map[domain.MarketID]*domain.MarketSnapshot)
	s.pollCancel = nil
	s.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	if old != nil {
		if cerr := old.Close(); cerr != nil {
			log.Warnf("关闭旧会话失败: %v", cerr)
		}
	}

	// 初始数据：市场 0 + 当前子账户，尽力而为
	// 子账户可能还没在链上初始化，这不算会话失败
	if err := s.RefreshMarket(ctx, 0); err != nil {
		log.Warnf("初始市场刷新失败: %v", err)
	}
	if err := s.RefreshSubAccount(ctx); err != nil {
		log.Warnf("初始子账户刷新失败: %v", err)
	}

	s.startPolling(client)

	log.Infof("✅ 会话已建立: authority=%s", w.PublicKey.String())
	s.changed.Emit()
	return nil
}

// Close 结束会话，停止轮询并释放连接
func (s *Store) Close() error {
	s.mu.Lock()
	client := s.client
	cancel := s.pollCancel
	group := s.pollGroup
	s.client = nil
	s.subAccount = nil
	s.markets = make(map[domain.MarketID]*domain.MarketSnapshot)
	s.pollCancel = nil
	s.pollGroup = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		group.WaitAndClear()
	}

	var err error
	if client != nil {
		err = client.Close()
		log.Info("会话已关闭")
	}
	s.changed.Emit()
	return err
}

// invalidate 会话失效（轮询发现致命错误时从内部调用）
// 与 Close 的区别：不等待轮询 goroutine 退出（调用者就是它自己）
func (s *Store) invalidate(client ports.VenueClient) {
	s.mu.Lock()
	if s.client != client {
		s.mu.Unlock()
		return // 已经是别的会话了
	}
	cancel := s.pollCancel
	s.client = nil
	s.subAccount = nil
	s.markets = make(map[domain.MarketID]*domain.MarketSnapshot)
	s.pollCancel = nil
	s.pollGroup = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = client.Close()
	log.Warn("⚠️ 会话已失效，需要重新连接钱包")
	s.changed.Emit()
}

// SetCurrentSubAccount 切换当前子账户（纯选择变更，不触发刷新）
// 需要新数据时调用方自行 RefreshSubAccount
func (s *Store) SetCurrentSubAccount(id domain.SubAccountID) error {
	if !id.Valid() {
		return fmt.Errorf("sub-account id %d out of range 0..%d", id, domain.MaxSubAccountID)
	}
	s.mu.Lock()
	s.currentSub = id
	s.mu.Unlock()
	s.changed.Emit()
	return nil
}

// SetCurrentMarket 切换当前市场（纯选择变更，不触发刷新）
func (s *Store) SetCurrentMarket(id domain.MarketID) {
	s.mu.Lock()
	s.currentMarket = id
	s.mu.Unlock()
	s.changed.Emit()
}

// CurrentSubAccount 当前子账户编号
func (s *Store) CurrentSubAccount() domain.SubAccountID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSub
}

// CurrentMarket 当前市场索引
func (s *Store) CurrentMarket() domain.MarketID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMarket
}

// Active 是否存在会话
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// SubAccountSnapshot 当前缓存的子账户快照（可能为 nil；只读，整体替换）
func (s *Store) SubAccountSnapshot() *domain.SubAccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subAccount
}

// MarketSnapshot 指定市场的缓存快照（可能为 nil）
func (s *Store) MarketSnapshot(id domain.MarketID) *domain.MarketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markets[id]
}

// View 给 UI 的聚合只读视图
type View struct {
	Active        bool                                       `json:"active"`
	Authority     string                                     `json:"authority,omitempty"`
	CurrentSub    domain.SubAccountID                        `json:"currentSubAccount"`
	CurrentMarket domain.MarketID                            `json:"currentMarket"`
	SubAccount    *domain.SubAccountSnapshot                 `json:"subAccount"`
	Markets       map[domain.MarketID]*domain.MarketSnapshot `json:"markets"`
}

// Snapshot 一次性取走完整视图（浅拷贝 map，快照本身只读）
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets := make(map[domain.MarketID]*domain.MarketSnapshot, len(s.markets))
	for k, v := range s.markets {
		markets[k] = v
	}
	v := View{
		Active:        s.client != nil,
		CurrentSub:    s.currentSub,
		CurrentMarket: s.currentMarket,
		SubAccount:    s.subAccount,
		Markets:       markets,
	}
	if s.client != nil {
		v.Authority = s.authority.String()
	}
	return v
}

// captureSession 原子读取 (会话, 当前子账户, 当前市场)
// 变更操作必须在入口一次捕获，之后即使用户改了选择也用捕获值走到底
func (s *Store) captureSession() (ports.VenueClient, domain.SubAccountID, domain.MarketID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, 0, 0, ErrNotInitialized
	}
	return s.client, s.currentSub, s.currentMarket, nil
}
