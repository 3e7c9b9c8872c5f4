package types

import (
	"github.com/gagliardetto/solana-go"
)

// Transaction is the signing envelope exchanged with the wallet capability.
// The gateway verifies the signature over Message against the session's
// wallet public key before forwarding the instruction on-chain.
type Transaction struct {
	Message    []byte
	Signatures []solana.Signature
}

// Signed reports whether at least one signature is attached.
func (t *Transaction) Signed() bool {
	return t != nil && len(t.Signatures) > 0
}

// FirstSignature returns the primary signature, or the zero value.
func (t *Transaction) FirstSignature() solana.Signature {
	if t == nil || len(t.Signatures) == 0 {
		return solana.Signature{}
	}
	return t.Signatures[0]
}
