package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/perpdash/perpdash/internal/domain"
)

// Kind 活动类型
type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdraw    Kind = "withdraw"
	KindPlaceOrder  Kind = "place_order"
	KindInitAccount Kind = "init_account"
)

// Activity 一条链上活动记录（只追加，不更新）
type Activity struct {
	ID          string             `json:"id"`
	Kind        Kind               `json:"kind"`
	SubAccount  domain.SubAccountID `json:"sub_account"`
	Market      domain.MarketID    `json:"market"`
	Amount      string             `json:"amount,omitempty"`    // 人类可读金额（充提）
	Direction   string             `json:"direction,omitempty"` // 订单方向
	OrderKind   string             `json:"order_kind,omitempty"`
	Size        string             `json:"size,omitempty"`      // 订单数量
	TxSignature string             `json:"tx_signature"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Recorder 活动记录接口（方便测试替换）
type Recorder interface {
	Record(ctx context.Context, a Activity) error
}

// Journal SQLite 活动流水
type Journal struct {
	db *sql.DB
}

// Open 打开（或创建）流水数据库
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite：单连接更稳定
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	_, err := j.db.Exec(`
CREATE TABLE IF NOT EXISTS activity (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	sub_account  INTEGER NOT NULL,
	market       INTEGER NOT NULL,
	amount       TEXT NOT NULL DEFAULT '',
	direction    TEXT NOT NULL DEFAULT '',
	order_kind   TEXT NOT NULL DEFAULT '',
	size         TEXT NOT NULL DEFAULT '',
	tx_signature TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_created ON activity(created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	return nil
}

// Record 写入一条活动记录；ID 为空时自动生成
func (j *Journal) Record(ctx context.Context, a Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO activity (id, kind, sub_account, market, amount, direction, order_kind, size, tx_signature, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Kind), int(a.SubAccount), int(a.Market),
		a.Amount, a.Direction, a.OrderKind, a.Size, a.TxSignature, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// List 按时间倒序返回最近的活动记录
func (j *Journal) List(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 2000 {
		limit = 200
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, kind, sub_account, market, amount, direction, order_kind, size, tx_signature, created_at
FROM activity ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var kind, direction, orderKind string
		var sub, market int
		var createdAt int64
		if err := rows.Scan(&a.ID, &kind, &sub, &market, &a.Amount, &direction, &orderKind, &a.Size, &a.TxSignature, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Kind = Kind(kind)
		a.SubAccount = domain.SubAccountID(sub)
		a.Market = domain.MarketID(market)
		a.Direction = direction
		a.OrderKind = orderKind
		a.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close 关闭数据库
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
