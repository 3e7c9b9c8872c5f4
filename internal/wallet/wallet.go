package wallet

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/perpdash/perpdash/pkg/secretstore"
	venuetypes "github.com/perpdash/perpdash/venue/types"
)

// ErrNotReady 钱包能力不完整（未连接、缺公钥或缺签名函数）
var ErrNotReady = errors.New("wallet capability not ready")

// Capability 钱包能力：会话层对钱包的全部认知
// 任一字段缺失都视为"未就绪"，会话初始化会拒绝这种钱包
type Capability struct {
	Connected           bool
	PublicKey           solana.PublicKey
	SignTransaction     func(tx *venuetypes.Transaction) (*venuetypes.Transaction, error)
	SignAllTransactions func(txs []*venuetypes.Transaction) ([]*venuetypes.Transaction, error)
}

// Ready 验证钱包能力是否完整可用
func (c Capability) Ready() bool {
	return c.Connected &&
		!c.PublicKey.IsZero() &&
		c.SignTransaction != nil &&
		c.SignAllTransactions != nil
}

// NewLocalCapability 用本地私钥构造钱包能力（服务端/终端场景，没有浏览器钱包）
func NewLocalCapability(priv solana.PrivateKey) Capability {
	signOne := func(tx *venuetypes.Transaction) (*venuetypes.Transaction, error) {
		if tx == nil {
			return nil, errors.New("nil transaction")
		}
		sig, err := priv.Sign(tx.Message)
		if err != nil {
			return nil, fmt.Errorf("签名失败: %w", err)
		}
		tx.Signatures = append(tx.Signatures, sig)
		return tx, nil
	}

	return Capability{
		Connected:       true,
		PublicKey:       priv.PublicKey(),
		SignTransaction: signOne,
		SignAllTransactions: func(txs []*venuetypes.Transaction) ([]*venuetypes.Transaction, error) {
			out := make([]*venuetypes.Transaction, 0, len(txs))
			for _, tx := range txs {
				signed, err := signOne(tx)
				if err != nil {
					return nil, err
				}
				out = append(out, signed)
			}
			return out, nil
		},
	}
}

// FromBase58 从 base58 私钥构造钱包能力
func FromBase58(key string) (Capability, error) {
	priv, err := solana.PrivateKeyFromBase58(key)
	if err != nil {
		return Capability{}, fmt.Errorf("解析钱包私钥失败: %w", err)
	}
	return NewLocalCapability(priv), nil
}

// FromKeystore 从密钥库读取私钥并构造钱包能力
func FromKeystore(store *secretstore.Store) (Capability, error) {
	key, ok, err := store.WalletKey()
	if err != nil {
		return Capability{}, fmt.Errorf("读取密钥库失败: %w", err)
	}
	if !ok {
		return Capability{}, errors.New("密钥库中没有钱包私钥")
	}
	return FromBase58(key)
}
