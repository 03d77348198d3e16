package transfer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// Transaction builds a system transfer anchored to blockhash and signs it
// with the resolved signer, who also pays the fee.
func (r *Resolved) Transaction(blockhash solana.Hash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(r.Lamports, r.From, r.To).Build(),
		},
		blockhash,
		solana.TransactionPayer(r.From),
	)
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(r.From) {
			return &r.Signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	return tx, nil
}
