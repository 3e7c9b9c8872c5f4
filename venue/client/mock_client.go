package client

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/ports"
	"github.com/perpdash/perpdash/internal/wallet"
	venuetypes "github.com/perpdash/perpdash/venue/types"
)

// MockClient is an in-memory VenueClient for testing.
type MockClient struct {
	mu sync.RWMutex

	// Response data
	SubAccounts  map[domain.SubAccountID]*domain.SubAccountSnapshot
	Markets      map[domain.MarketID]*domain.MarketSnapshot
	OraclePrices map[domain.MarketID]decimal.Decimal
	TokenAccount string
	OrderResp    *venuetypes.OrderResult
	WalletPubkey solana.PublicKey

	// Call tracking
	Calls map[string]int

	// Error injection: fail the next call of the named method once.
	ErrorOnNext map[string]error

	// Optional hooks, run inside the call after tracking. Lets tests
	// observe or reshuffle state mid-flight.
	OnGetSubAccount func(id domain.SubAccountID)
	OnGetMarket     func(id domain.MarketID)
	OnSubmitOrder   func(params *venuetypes.OrderParams)

	// Captured submissions, in order.
	SubmittedOrders []*venuetypes.OrderParams
	LastDeposit     *MockTransfer
	LastWithdraw    *MockTransfer

	Closed bool
}

// NewMockClient creates a mock session with one market and one sub-account
// preloaded, enough for most tests without setup.
func NewMockClient() *MockClient {
	return &MockClient{
		SubAccounts: map[domain.SubAccountID]*domain.SubAccountSnapshot{
			0: {ID: 0, Label: "Main", Collateral: decimal.NewFromInt(1000), HealthRatio: decimal.NewFromInt(1)},
		},
		Markets: map[domain.MarketID]*domain.MarketSnapshot{
			0: {MarketID: 0, Symbol: "SOL-PERP", SpotDecimals: 6, IsPerp: true},
			1: {MarketID: 1, Symbol: "SOL", SpotDecimals: 9, IsPerp: false},
		},
		OraclePrices: map[domain.MarketID]decimal.Decimal{
			0: decimal.NewFromFloat(150.0),
			1: decimal.NewFromFloat(150.0),
		},
		TokenAccount: "MockTokenAccount1111111111111111111111111111",
		OrderResp:    &venuetypes.OrderResult{OrderID: 7, TxSignature: "mock-order-tx"},
		Calls:        make(map[string]int),
		ErrorOnNext:  make(map[string]error),
	}
}

func (m *MockClient) trackCall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

// CallCount returns how many times the named method ran.
func (m *MockClient) CallCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[name]
}

func (m *MockClient) GetSubAccount(ctx context.Context, id domain.SubAccountID) (*domain.SubAccountSnapshot, error) {
	if err := m.trackCall("GetSubAccount"); err != nil {
		return nil, err
	}
	if m.OnGetSubAccount != nil {
		m.OnGetSubAccount(id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.SubAccounts[id]
	if !ok {
		return nil, ports.ErrAccountNotFound
	}
	cp := *snap
	return &cp, nil
}

func (m *MockClient) InitializeSubAccount(ctx context.Context, id domain.SubAccountID, label string) (string, error) {
	if err := m.trackCall("InitializeSubAccount"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubAccounts[id] = &domain.SubAccountSnapshot{ID: id, Label: label}
	return fmt.Sprintf("mock-init-tx-%d", id), nil
}

func (m *MockClient) GetMarket(ctx context.Context, id domain.MarketID) (*domain.MarketSnapshot, error) {
	if err := m.trackCall("GetMarket"); err != nil {
		return nil, err
	}
	if m.OnGetMarket != nil {
		m.OnGetMarket(id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.Markets[id]
	if !ok {
		return nil, fmt.Errorf("unknown market %d", id)
	}
	cp := *snap
	return &cp, nil
}

func (m *MockClient) GetOraclePrice(ctx context.Context, id domain.MarketID) (decimal.Decimal, error) {
	if err := m.trackCall("GetOraclePrice"); err != nil {
		return decimal.Zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	price, ok := m.OraclePrices[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("no oracle for market %d", id)
	}
	return price, nil
}

func (m *MockClient) AssociatedTokenAccount(ctx context.Context, id domain.MarketID) (string, error) {
	if err := m.trackCall("AssociatedTokenAccount"); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TokenAccount, nil
}

func (m *MockClient) Deposit(ctx context.Context, nativeAmount *big.Int, market domain.MarketID, sub domain.SubAccountID, tokenAccount string) (string, error) {
	if err := m.trackCall("Deposit"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastDeposit = &MockTransfer{Amount: new(big.Int).Set(nativeAmount), Market: market, Sub: sub, TokenAccount: tokenAccount}
	return "mock-deposit-tx", nil
}

func (m *MockClient) Withdraw(ctx context.Context, nativeAmount *big.Int, market domain.MarketID, tokenAccount string) (string, error) {
	if err := m.trackCall("Withdraw"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastWithdraw = &MockTransfer{Amount: new(big.Int).Set(nativeAmount), Market: market, TokenAccount: tokenAccount}
	return "mock-withdraw-tx", nil
}

func (m *MockClient) SubmitOrder(ctx context.Context, params *venuetypes.OrderParams) (*venuetypes.OrderResult, error) {
	if err := m.trackCall("SubmitOrder"); err != nil {
		return nil, err
	}
	if m.OnSubmitOrder != nil {
		m.OnSubmitOrder(params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubmittedOrders = append(m.SubmittedOrders, params)
	resp := *m.OrderResp
	return &resp, nil
}

func (m *MockClient) Authority() solana.PublicKey {
	return m.WalletPubkey
}

func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (m *MockClient) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}

// MockTransfer captures the arguments of the last deposit or withdrawal.
type MockTransfer struct {
	Amount       *big.Int
	Market       domain.MarketID
	Sub          domain.SubAccountID
	TokenAccount string
}

// MockConnector hands out a fixed client, or fails on demand.
type MockConnector struct {
	mu       sync.Mutex
	Client   ports.VenueClient
	Err      error
	Connects int
}

// NewMockConnector wires a connector around the given client.
func NewMockConnector(client ports.VenueClient) *MockConnector {
	return &MockConnector{Client: client}
}

func (m *MockConnector) Connect(ctx context.Context, w wallet.Capability) (ports.VenueClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Connects++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Client, nil
}
