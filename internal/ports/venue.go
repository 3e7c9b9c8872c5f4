package ports

import (
	"context"
	"errors"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/wallet"
	venuetypes "github.com/perpdash/perpdash/venue/types"
)

// ErrSessionClosed 会话已失效（网关主动断开或致命错误），持有者应丢弃该句柄
var ErrSessionClosed = errors.New("venue session closed")

// ErrAccountNotFound 子账户在链上尚未初始化
var ErrAccountNotFound = errors.New("sub-account not found")

// VenueClient 交易所客户端适配器，一个实例即一个已认证会话句柄
// 撮合、保证金、清算全在远端；本层只是驱动它
// 所有金额参数使用交易所定点整数（调用方负责精度转换）
type VenueClient interface {
	// GetSubAccount 拉取子账户快照；未初始化返回 ErrAccountNotFound
	GetSubAccount(ctx context.Context, id domain.SubAccountID) (*domain.SubAccountSnapshot, error)

	// InitializeSubAccount 初始化子账户，返回交易签名
	InitializeSubAccount(ctx context.Context, id domain.SubAccountID, label string) (string, error)

	// GetMarket 拉取市场元数据（不含预言机价格）
	GetMarket(ctx context.Context, id domain.MarketID) (*domain.MarketSnapshot, error)

	// GetOraclePrice 拉取预言机价格（人类可读单位）
	GetOraclePrice(ctx context.Context, id domain.MarketID) (decimal.Decimal, error)

	// AssociatedTokenAccount 返回钱包在指定市场的代币账户地址
	AssociatedTokenAccount(ctx context.Context, id domain.MarketID) (string, error)

	// Deposit 充值抵押品，返回交易签名
	Deposit(ctx context.Context, nativeAmount *big.Int, market domain.MarketID, sub domain.SubAccountID, tokenAccount string) (string, error)

	// Withdraw 提取抵押品，返回交易签名
	Withdraw(ctx context.Context, nativeAmount *big.Int, market domain.MarketID, tokenAccount string) (string, error)

	// SubmitOrder 提交订单
	SubmitOrder(ctx context.Context, params *venuetypes.OrderParams) (*venuetypes.OrderResult, error)

	// Authority 返回会话所属钱包公钥
	Authority() solana.PublicKey

	// Close 关闭会话，释放底层连接
	Close() error
}

// VenueConnector 会话工厂：用钱包能力打开一个新的已认证会话
type VenueConnector interface {
	Connect(ctx context.Context, w wallet.Capability) (VenueClient, error)
}
