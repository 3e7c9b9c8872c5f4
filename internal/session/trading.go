package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/journal"
	"github.com/perpdash/perpdash/internal/orders"
	venuetypes "github.com/perpdash/perpdash/venue/types"
)

// Deposit 向当前子账户充值抵押品（人类可读金额，按当前市场精度转换）
// 返回交易签名
//
// (会话, 当前子账户, 当前市场) 在入口一次捕获；用户中途切换选择
// 不会取消或改向这笔操作
func (s *Store) Deposit(ctx context.Context, humanAmount float64) (string, error) {
	// NaN/Inf 也在这里拦下，定点转换无法表示它们
	if !orders.PositiveFinite(humanAmount) {
		return "", fmt.Errorf("%w: %v", ErrInvalidAmount, humanAmount)
	}

	client, subID, marketID, err := s.captureSession()
	if err != nil {
		return "", err
	}

	decimals, err := s.marketDecimals(ctx, client, marketID)
	if err != nil {
		return "", &RefreshError{Target: fmt.Sprintf("market %d", marketID), Err: err}
	}
	native := orders.ToNative(humanAmount, decimals)

	ata, err := client.AssociatedTokenAccount(ctx, marketID)
	if err != nil {
		return "", &TransactionError{Op: "deposit", Err: err}
	}

	sig, err := client.Deposit(ctx, native, marketID, subID, ata)
	if err != nil {
		return "", &TransactionError{Op: "deposit", Err: err}
	}

	log.Infof("✅ 充值成功: %v (native=%s) 市场=%d 子账户=%d tx=%s",
		humanAmount, native.String(), marketID, subID, sig)

	s.record(ctx, journal.Activity{
		Kind:        journal.KindDeposit,
		SubAccount:  subID,
		Market:      marketID,
		Amount:      strconv.FormatFloat(humanAmount, 'f', -1, 64),
		TxSignature: sig,
	})

	// 充值已成功，刷新失败只记日志
	if err := s.RefreshSubAccount(ctx); err != nil {
		log.Warnf("充值后刷新子账户失败: %v", err)
	}
	return sig, nil
}

// Withdraw 从当前子账户提取抵押品，返回交易签名
func (s *Store) Withdraw(ctx context.Context, humanAmount float64) (string, error) {
	if !orders.PositiveFinite(humanAmount) {
		return "", fmt.Errorf("%w: %v", ErrInvalidAmount, humanAmount)
	}

	client, subID, marketID, err := s.captureSession()
	if err != nil {
		return "", err
	}

	decimals, err := s.marketDecimals(ctx, client, marketID)
	if err != nil {
		return "", &RefreshError{Target: fmt.Sprintf("market %d", marketID), Err: err}
	}
	native := orders.ToNative(humanAmount, decimals)

	ata, err := client.AssociatedTokenAccount(ctx, marketID)
	if err != nil {
		return "", &TransactionError{Op: "withdraw", Err: err}
	}

	sig, err := client.Withdraw(ctx, native, marketID, ata)
	if err != nil {
		return "", &TransactionError{Op: "withdraw", Err: err}
	}

	log.Infof("✅ 提现成功: %v (native=%s) 市场=%d tx=%s",
		humanAmount, native.String(), marketID, sig)

	s.record(ctx, journal.Activity{
		Kind:        journal.KindWithdraw,
		SubAccount:  subID,
		Market:      marketID,
		Amount:      strconv.FormatFloat(humanAmount, 'f', -1, 64),
		TxSignature: sig,
	})

	if err := s.RefreshSubAccount(ctx); err != nil {
		log.Warnf("提现后刷新子账户失败: %v", err)
	}
	return sig, nil
}

// PlaceOrder 提交永续订单
// 本地校验失败立即返回 InvalidOrderError，不会联系交易所
func (s *Store) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (*venuetypes.OrderResult, error) {
	if err := orders.Validate(intent); err != nil {
		return nil, &InvalidOrderError{Err: err}
	}

	client, subID, _, err := s.captureSession()
	if err != nil {
		return nil, err
	}

	// OracleOffset 需要当前预言机价格来计算展示用参考价；
	// 优先用缓存快照，没有就直接查一次
	oracle := decimal.Zero
	if intent.Kind == domain.OrderKindOracleOffset {
		s.mu.Lock()
		snap := s.markets[intent.MarketID]
		s.mu.Unlock()
		if snap != nil {
			oracle = snap.OraclePrice
		} else {
			oracle, err = client.GetOraclePrice(ctx, intent.MarketID)
			if err != nil {
				return nil, &RefreshError{Target: fmt.Sprintf("market %d oracle", intent.MarketID), Err: err}
			}
		}
	}

	built, err := orders.Build(intent, oracle, time.Now())
	if err != nil {
		return nil, &InvalidOrderError{Err: err}
	}
	built.Params.ClientOrderID = uuid.NewString()

	result, err := client.SubmitOrder(ctx, built.Params)
	if err != nil {
		return nil, &TransactionError{Op: "place_order", Err: err}
	}

	if intent.Kind == domain.OrderKindOracleOffset {
		log.Infof("✅ 订单已提交: %s %s 市场=%d 数量=%v 参考价=%s tx=%s",
			intent.Kind, intent.Direction, intent.MarketID, intent.HumanSize,
			built.EffectiveRefPrice.StringFixed(4), result.TxSignature)
	} else {
		log.Infof("✅ 订单已提交: %s %s 市场=%d 数量=%v tx=%s",
			intent.Kind, intent.Direction, intent.MarketID, intent.HumanSize, result.TxSignature)
	}

	s.record(ctx, journal.Activity{
		Kind:        journal.KindPlaceOrder,
		SubAccount:  subID,
		Market:      intent.MarketID,
		Direction:   string(intent.Direction),
		OrderKind:   string(intent.Kind),
		Size:        strconv.FormatFloat(intent.HumanSize, 'f', -1, 64),
		TxSignature: result.TxSignature,
	})

	if err := s.RefreshSubAccount(ctx); err != nil {
		log.Warnf("下单后刷新子账户失败: %v", err)
	}
	return result, nil
}

// InitializeSubAccount 初始化一个新的链上子账户（首次充值前需要）
func (s *Store) InitializeSubAccount(ctx context.Context, id domain.SubAccountID, label string) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("sub-account id %d out of range 0..%d", id, domain.MaxSubAccountID)
	}

	client, _, marketID, err := s.captureSession()
	if err != nil {
		return "", err
	}

	sig, err := client.InitializeSubAccount(ctx, id, label)
	if err != nil {
		return "", &TransactionError{Op: "init_account", Err: err}
	}

	log.Infof("✅ 子账户已初始化: id=%d label=%q tx=%s", id, label, sig)

	s.record(ctx, journal.Activity{
		Kind:        journal.KindInitAccount,
		SubAccount:  id,
		Market:      marketID,
		TxSignature: sig,
	})

	if err := s.RefreshSubAccount(ctx); err != nil {
		log.Warnf("初始化后刷新子账户失败: %v", err)
	}
	return sig, nil
}

// record 写活动流水（尽力而为，失败只记日志）
func (s *Store) record(ctx context.Context, a journal.Activity) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, a); err != nil {
		log.Warnf("写活动流水失败: %v", err)
	}
}
