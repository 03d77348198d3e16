package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// KeyLoader loads a signing keypair from an opaque key reference.
type KeyLoader interface {
	Load(ctx context.Context, ref string) (solana.PrivateKey, error)
}

// Request is one declarative transfer as read from configuration.
type Request struct {
	KeyRef string // locator of the sender's key material
	To     string // base58 destination address
	Amount string // decimal SOL
}

// Resolved holds everything needed to build one transfer transaction. The
// signer is owned by a single submission attempt.
type Resolved struct {
	Signer   solana.PrivateKey
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
}

// Resolver resolves requests. It holds no mutable state and is safe for
// concurrent use.
type Resolver struct {
	keys KeyLoader
}

// NewResolver creates a resolver backed by the given key loader.
func NewResolver(keys KeyLoader) *Resolver {
	return &Resolver{keys: keys}
}

// Resolve loads the signer, parses the destination and converts the amount.
// It performs no network I/O against the ledger.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	ref := strings.TrimSpace(req.KeyRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty key reference", ErrKeyLoad)
	}

	signer, err := r.keys.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyLoad, ref, err)
	}

	to, err := solana.PublicKeyFromBase58(strings.TrimSpace(req.To))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAddress, req.To, err)
	}

	lamports, err := ToLamports(req.Amount)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		Signer:   signer,
		From:     signer.PublicKey(),
		To:       to,
		Lamports: lamports,
	}, nil
}
