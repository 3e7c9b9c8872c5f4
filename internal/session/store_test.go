package session

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/ports"
	"github.com/perpdash/perpdash/internal/wallet"
	venueclient "github.com/perpdash/perpdash/venue/client"
)

func testWallet() wallet.Capability {
	return wallet.NewLocalCapability(solana.NewWallet().PrivateKey)
}

// newTestStore 建好会话的测试环境，轮询间隔拉长到不干扰断言
func newTestStore(t *testing.T) (*Store, *venueclient.MockClient) {
	t.Helper()
	mock := venueclient.NewMockClient()
	store := New(venueclient.NewMockConnector(mock), WithPollInterval(time.Hour))
	if err := store.InitSession(context.Background(), testWallet()); err != nil {
		t.Fatalf("InitSession error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mock
}

func TestInitSessionRejectsIncompleteWallet(t *testing.T) {
	mock := venueclient.NewMockClient()
	connector := venueclient.NewMockConnector(mock)
	store := New(connector, WithPollInterval(time.Hour))

	// 缺签名函数的钱包
	w := wallet.Capability{
		Connected: true,
		PublicKey: solana.NewWallet().PrivateKey.PublicKey(),
	}
	err := store.InitSession(context.Background(), w)

	var initErr *SessionInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected SessionInitError, got %v", err)
	}
	if store.Active() {
		t.Fatal("no session should exist after a failed init")
	}
	if connector.Connects != 0 {
		t.Fatalf("connector should not be reached, got %d connects", connector.Connects)
	}
}

func TestInitSessionConnectFailure(t *testing.T) {
	connector := venueclient.NewMockConnector(nil)
	connector.Err = errors.New("gateway unreachable")
	store := New(connector, WithPollInterval(time.Hour))

	err := store.InitSession(context.Background(), testWallet())
	var initErr *SessionInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected SessionInitError, got %v", err)
	}
	if store.Active() {
		t.Fatal("no session should exist after a failed connect")
	}
}

func TestInitSessionLoadsInitialData(t *testing.T) {
	store, mock := newTestStore(t)

	if !store.Active() {
		t.Fatal("session should be active")
	}
	// 初始刷新：市场 0 + 当前子账户
	if snap := store.MarketSnapshot(0); snap == nil || snap.Symbol != "SOL-PERP" {
		t.Fatalf("market 0 snapshot missing or wrong: %+v", snap)
	}
	if snap := store.SubAccountSnapshot(); snap == nil || snap.ID != 0 {
		t.Fatalf("sub-account snapshot missing: %+v", snap)
	}
	if got := mock.CallCount("GetSubAccount"); got != 1 {
		t.Fatalf("GetSubAccount calls got=%d want=1", got)
	}
}

func TestOperationsRequireSession(t *testing.T) {
	store := New(venueclient.NewMockConnector(venueclient.NewMockClient()))

	if err := store.RefreshSubAccount(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("RefreshSubAccount got=%v want ErrNotInitialized", err)
	}
	if err := store.RefreshMarket(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("RefreshMarket got=%v want ErrNotInitialized", err)
	}
	if _, err := store.Deposit(context.Background(), 1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Deposit got=%v want ErrNotInitialized", err)
	}
	if _, err := store.PlaceOrder(context.Background(), domain.OrderIntent{
		Kind: domain.OrderKindLimit, Direction: domain.DirectionLong, HumanSize: 1, LimitPrice: 10,
	}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("PlaceOrder got=%v want ErrNotInitialized", err)
	}
}

func TestSetCurrentSubAccountRange(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.SetCurrentSubAccount(7); err != nil {
		t.Fatalf("id 7 should be accepted: %v", err)
	}
	if err := store.SetCurrentSubAccount(8); err == nil {
		t.Fatal("id 8 should be rejected")
	}
	if got := store.CurrentSubAccount(); got != 7 {
		t.Fatalf("current sub-account got=%d want=7 (rejected switch must not apply)", got)
	}
}

func TestPlaceOrderInvalidIntentNoVenueCall(t *testing.T) {
	store, mock := newTestStore(t)

	for _, size := range []float64{-5, math.NaN(), math.Inf(1)} {
		_, err := store.PlaceOrder(context.Background(), domain.OrderIntent{
			Kind:       domain.OrderKindLimit,
			Direction:  domain.DirectionLong,
			HumanSize:  size,
			LimitPrice: 150,
		})
		var invalid *InvalidOrderError
		if !errors.As(err, &invalid) {
			t.Fatalf("PlaceOrder(size=%v) got=%v want InvalidOrderError", size, err)
		}
	}
	if got := mock.CallCount("SubmitOrder"); got != 0 {
		t.Fatalf("SubmitOrder must not be called for invalid intents, got %d calls", got)
	}
}

func TestPlaceOrderRefreshesSubAccount(t *testing.T) {
	store, mock := newTestStore(t)
	before := mock.CallCount("GetSubAccount")

	result, err := store.PlaceOrder(context.Background(), domain.OrderIntent{
		Kind:       domain.OrderKindLimit,
		MarketID:   0,
		Direction:  domain.DirectionLong,
		HumanSize:  1,
		LimitPrice: 150,
	})
	if err != nil {
		t.Fatalf("PlaceOrder error: %v", err)
	}
	if result.TxSignature == "" {
		t.Fatal("expected a transaction signature")
	}
	if len(mock.SubmittedOrders) != 1 {
		t.Fatalf("submitted orders got=%d want=1", len(mock.SubmittedOrders))
	}
	if mock.SubmittedOrders[0].ClientOrderID == "" {
		t.Fatal("client order id should be assigned")
	}
	if got := mock.CallCount("GetSubAccount"); got != before+1 {
		t.Fatalf("post-order refresh: GetSubAccount got=%d want=%d", got, before+1)
	}
}

func TestDepositPrecisionAndRefresh(t *testing.T) {
	store, mock := newTestStore(t)

	// 市场 1 是 9 位精度的现货市场
	store.SetCurrentMarket(1)
	before := mock.CallCount("GetSubAccount")

	sig, err := store.Deposit(context.Background(), 1.5)
	if err != nil {
		t.Fatalf("Deposit error: %v", err)
	}
	if sig == "" {
		t.Fatal("expected a transaction signature")
	}
	if mock.LastDeposit == nil {
		t.Fatal("deposit never reached the venue")
	}
	if got := mock.LastDeposit.Amount.String(); got != "1500000000" {
		t.Fatalf("native amount got=%s want=1500000000", got)
	}
	if mock.LastDeposit.Market != 1 || mock.LastDeposit.Sub != 0 {
		t.Fatalf("deposit routing got market=%d sub=%d", mock.LastDeposit.Market, mock.LastDeposit.Sub)
	}
	// 成功后恰好一次子账户刷新
	if got := mock.CallCount("GetSubAccount"); got != before+1 {
		t.Fatalf("post-deposit refresh: GetSubAccount got=%d want=%d", got, before+1)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	store, mock := newTestStore(t)

	// NaN/Inf 和非正数一样在本地拒绝，绝不能流进定点转换
	for _, amount := range []float64{0, -1.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := store.Deposit(context.Background(), amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Deposit(%v) got=%v want ErrInvalidAmount", amount, err)
		}
		if _, err := store.Withdraw(context.Background(), amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Withdraw(%v) got=%v want ErrInvalidAmount", amount, err)
		}
	}
	if got := mock.CallCount("Deposit"); got != 0 {
		t.Fatalf("venue Deposit must not be called, got %d calls", got)
	}
	if got := mock.CallCount("Withdraw"); got != 0 {
		t.Fatalf("venue Withdraw must not be called, got %d calls", got)
	}
}

// 重连竞态：旧会话的轮询启动落在新会话建立之后，必须直接放弃，
// 不能抢走当前会话的轮询状态（否则当前 loop 的 cancel 丢失，goroutine 悬挂）
func TestStalePollStartLeavesCurrentLoopAlone(t *testing.T) {
	store, _ := newTestStore(t)

	store.mu.Lock()
	groupBefore := store.pollGroup
	store.mu.Unlock()

	stale := venueclient.NewMockClient()
	store.startPolling(stale)

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.pollGroup != groupBefore {
		t.Fatal("stale session must not replace the active poll loop")
	}
}

func TestWithdrawTransactionError(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ErrorOnNext["Withdraw"] = errors.New("insufficient collateral")

	_, err := store.Withdraw(context.Background(), 10)
	var txErr *TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionError, got %v", err)
	}
	if txErr.Op != "withdraw" {
		t.Fatalf("op got=%s want=withdraw", txErr.Op)
	}
}

// 变更操作进行中切换当前市场：刷新写入的必须还是发起时捕获的市场
func TestRefreshWritesCapturedMarket(t *testing.T) {
	store, mock := newTestStore(t)

	mock.Markets[0].Symbol = "SOL-PERP-V2"
	mock.OnGetMarket = func(id domain.MarketID) {
		if id == 0 {
			store.SetCurrentMarket(1)
		}
	}

	if err := store.RefreshMarket(context.Background(), 0); err != nil {
		t.Fatalf("RefreshMarket error: %v", err)
	}

	snap := store.MarketSnapshot(0)
	if snap == nil || snap.Symbol != "SOL-PERP-V2" {
		t.Fatalf("market 0 should hold the refreshed snapshot, got %+v", snap)
	}
	if store.MarketSnapshot(1) != nil {
		t.Fatal("market 1 must not receive a snapshot from this refresh")
	}
	if store.CurrentMarket() != 1 {
		t.Fatal("selection switch should apply immediately")
	}
}

// 两个并发刷新：后完成者的快照生效（按完成序，不是发起序）
func TestConcurrentRefreshLastCompletionWins(t *testing.T) {
	store, mock := newTestStore(t)

	var calls int32
	reached := make(chan struct{})
	gate := make(chan struct{})
	mock.OnGetSubAccount = func(id domain.SubAccountID) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(reached)
			<-gate
		}
	}

	first := make(chan error, 1)
	go func() {
		first <- store.RefreshSubAccount(context.Background())
	}()
	<-reached

	// 第二个刷新先完成
	if err := store.RefreshSubAccount(context.Background()); err != nil {
		t.Fatalf("second refresh error: %v", err)
	}

	// 改数据后放行第一个刷新，它最后完成
	mock.SubAccounts[0].Collateral = decimal.NewFromInt(4242)
	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first refresh error: %v", err)
	}

	snap := store.SubAccountSnapshot()
	if snap == nil || !snap.Collateral.Equal(decimal.NewFromInt(4242)) {
		t.Fatalf("last completion should win, got collateral %v", snap.Collateral)
	}
}

// flakyClient 每第三次 GetMarket 失败
type flakyClient struct {
	*venueclient.MockClient
	n atomic.Int32
}

func (f *flakyClient) GetMarket(ctx context.Context, id domain.MarketID) (*domain.MarketSnapshot, error) {
	if f.n.Add(1)%3 == 0 {
		return nil, errors.New("transient gateway error")
	}
	return f.MockClient.GetMarket(ctx, id)
}

func TestPollSurvivesRefreshFailures(t *testing.T) {
	flaky := &flakyClient{MockClient: venueclient.NewMockClient()}
	store := New(venueclient.NewMockConnector(flaky), WithPollInterval(20*time.Millisecond))
	if err := store.InitSession(context.Background(), testWallet()); err != nil {
		t.Fatalf("InitSession error: %v", err)
	}
	defer store.Close()

	time.Sleep(300 * time.Millisecond)

	// 失败的 tick 不中断调度：调用次数持续增长，会话保持有效
	if got := int(flaky.n.Load()); got < 6 {
		t.Fatalf("poll should keep ticking through failures, GetMarket calls=%d", got)
	}
	if !store.Active() {
		t.Fatal("transient failures must not kill the session")
	}
}

// closedClient 第一次调用后所有 GetMarket 都报会话失效
type closedClient struct {
	*venueclient.MockClient
	n atomic.Int32
}

func (c *closedClient) GetMarket(ctx context.Context, id domain.MarketID) (*domain.MarketSnapshot, error) {
	if c.n.Add(1) > 1 {
		return nil, ports.ErrSessionClosed
	}
	return c.MockClient.GetMarket(ctx, id)
}

func TestPollInvalidatesClosedSession(t *testing.T) {
	closed := &closedClient{MockClient: venueclient.NewMockClient()}
	store := New(venueclient.NewMockConnector(closed), WithPollInterval(20*time.Millisecond))
	if err := store.InitSession(context.Background(), testWallet()); err != nil {
		t.Fatalf("InitSession error: %v", err)
	}
	defer store.Close()

	deadline := time.After(2 * time.Second)
	for store.Active() {
		select {
		case <-deadline:
			t.Fatal("session should be invalidated after ErrSessionClosed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if store.SubAccountSnapshot() != nil {
		t.Fatal("snapshots from a dead session must be dropped")
	}
	time.Sleep(50 * time.Millisecond)
	if !closed.IsClosed() {
		t.Fatal("underlying client should be closed")
	}
}

func TestReconnectDropsOldSnapshots(t *testing.T) {
	store, mock := newTestStore(t)

	if store.MarketSnapshot(0) == nil {
		t.Fatal("precondition: market snapshot present")
	}

	// 新会话换了新 mock，旧快照必须清空后重建
	fresh := venueclient.NewMockClient()
	fresh.Markets[0].Symbol = "BTC-PERP"
	store.connector = venueclient.NewMockConnector(fresh)

	if err := store.InitSession(context.Background(), testWallet()); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}
	if snap := store.MarketSnapshot(0); snap == nil || snap.Symbol != "BTC-PERP" {
		t.Fatalf("snapshot should come from the new session, got %+v", snap)
	}
	if !mock.IsClosed() {
		t.Fatal("old session should be closed on reconnect")
	}
}

func TestChangedSignalCoalesces(t *testing.T) {
	store, _ := newTestStore(t)

	// 清掉初始化期间的积压信号
	select {
	case <-store.Changed():
	default:
	}

	store.SetCurrentMarket(1)
	store.SetCurrentMarket(0)

	select {
	case <-store.Changed():
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
	// 信号可合并：两次变更至少一个信号，不要求恰好两个
	select {
	case <-store.Changed():
	default:
	}
}
