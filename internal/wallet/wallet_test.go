package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	venuetypes "github.com/perpdash/perpdash/venue/types"
)

func TestCapabilityReady(t *testing.T) {
	full := NewLocalCapability(solana.NewWallet().PrivateKey)
	if !full.Ready() {
		t.Fatal("complete capability should be ready")
	}

	// 任一能力缺失都拒绝
	cases := map[string]Capability{
		"未连接":   {PublicKey: full.PublicKey, SignTransaction: full.SignTransaction, SignAllTransactions: full.SignAllTransactions},
		"缺公钥":   {Connected: true, SignTransaction: full.SignTransaction, SignAllTransactions: full.SignAllTransactions},
		"缺单签":   {Connected: true, PublicKey: full.PublicKey, SignAllTransactions: full.SignAllTransactions},
		"缺批量签名": {Connected: true, PublicKey: full.PublicKey, SignTransaction: full.SignTransaction},
	}
	for name, c := range cases {
		if c.Ready() {
			t.Errorf("%s: capability should not be ready", name)
		}
	}
}

func TestLocalCapabilitySigns(t *testing.T) {
	cap := NewLocalCapability(solana.NewWallet().PrivateKey)

	tx := &venuetypes.Transaction{Message: []byte("challenge payload")}
	signed, err := cap.SignTransaction(tx)
	if err != nil {
		t.Fatalf("SignTransaction error: %v", err)
	}
	if !signed.Signed() {
		t.Fatal("expected a signature")
	}

	if _, err := cap.SignTransaction(nil); err == nil {
		t.Fatal("nil transaction should be rejected")
	}
}

func TestSignAllTransactions(t *testing.T) {
	cap := NewLocalCapability(solana.NewWallet().PrivateKey)

	txs := []*venuetypes.Transaction{
		{Message: []byte("one")},
		{Message: []byte("two")},
	}
	signed, err := cap.SignAllTransactions(txs)
	if err != nil {
		t.Fatalf("SignAllTransactions error: %v", err)
	}
	if len(signed) != 2 {
		t.Fatalf("len got=%d want=2", len(signed))
	}
	for i, tx := range signed {
		if !tx.Signed() {
			t.Errorf("tx %d is unsigned", i)
		}
	}
}

func TestFromBase58Invalid(t *testing.T) {
	if _, err := FromBase58("not-a-key"); err == nil {
		t.Fatal("garbage key should fail")
	}
}
