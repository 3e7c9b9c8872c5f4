package session

import (
	"errors"
	"fmt"
)

// ErrNotInitialized 会话尚未建立就调用了需要会话的操作
// 属于 UI 状态错误，用户层面的提示只有"先连接钱包"
var ErrNotInitialized = errors.New("session not initialised")

// ErrInvalidAmount 充值/提现金额非正，本地拒绝，不触网
var ErrInvalidAmount = errors.New("amount must be positive")

// SessionInitError 会话初始化失败：钱包能力不完整或连接交易所失败
// 不自动重试，用户需要重新连接钱包
type SessionInitError struct {
	Reason string
	Err    error
}

func (e *SessionInitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session init failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session init failed: %s", e.Reason)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// InvalidOrderError 订单意图本地校验失败，未联系交易所
// 修正输入后可重试
type InvalidOrderError struct {
	Err error
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order: %v", e.Err)
}

func (e *InvalidOrderError) Unwrap() error { return e.Err }

// TransactionError 交易所的变更调用失败（签名被拒、余额不足、网络故障）
// 原样上报给用户；金融操作不做静默重试
type TransactionError struct {
	Op  string // deposit / withdraw / place_order / init_account
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// RefreshError 读操作（刷新市场/子账户）失败
// 轮询触发时记日志后吞掉（保留上次快照）；用户直接触发时上报
type RefreshError struct {
	Target string
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s failed: %v", e.Target, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
