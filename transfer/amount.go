package transfer

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of decimal places between SOL and lamports.
const Decimals = 9

// maxIntegerDigits is the number of integer SOL digits in MaxUint64 lamports
// (18446744073.709551615 SOL).
const maxIntegerDigits = 11

var maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ToLamports converts a decimal SOL amount into lamports, rounding half away
// from zero to the nearest lamport.
func ToLamports(amount string) (uint64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}

	sol, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidAmount, s, err)
	}
	if sol.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, s)
	}

	if sol.IsZero() {
		return 0, nil
	}

	// rescaling materializes 10^exponent, so bound the magnitude first
	intDigits := sol.NumDigits() + int(sol.Exponent())
	if intDigits > maxIntegerDigits {
		return 0, fmt.Errorf("%w: %s overflows lamport range", ErrInvalidAmount, s)
	}
	// below 1e-10 SOL, which rounds to zero lamports
	if intDigits <= -Decimals-1 {
		return 0, fmt.Errorf("%w: %s is below one lamport", ErrInvalidAmount, s)
	}

	lamports := sol.Shift(Decimals).Round(0)
	if lamports.GreaterThan(maxLamports) {
		return 0, fmt.Errorf("%w: %s overflows lamport range", ErrInvalidAmount, s)
	}
	// a non-zero amount that vanishes at lamport scale would silently send nothing
	if lamports.IsZero() {
		return 0, fmt.Errorf("%w: %s is below one lamport", ErrInvalidAmount, s)
	}

	return lamports.BigInt().Uint64(), nil
}

// FormatLamports renders a lamport amount as decimal SOL.
func FormatLamports(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -Decimals).String()
}
