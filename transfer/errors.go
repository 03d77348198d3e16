// Package transfer turns declarative transfer requests into the concrete
// artifacts needed to build a Solana transaction.
package transfer

import "errors"

// Resolution errors.
var (
	ErrKeyLoad        = errors.New("key load error")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
)
