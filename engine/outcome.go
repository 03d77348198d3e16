package engine

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/okx/soltransfer/client"
	"github.com/okx/soltransfer/transfer"
)

// Failure kinds, used as log and metric labels.
const (
	KindKeyLoad             = "key_load"
	KindInvalidAddress      = "invalid_address"
	KindInvalidAmount       = "invalid_amount"
	KindEndpointUnavailable = "endpoint_unavailable"
	KindSubmissionRejected  = "submission_rejected"
	KindConfirmationTimeout = "confirmation_timeout"
	KindCanceled            = "canceled"
	KindInternal            = "internal"
)

// ErrPanic marks a transfer whose goroutine panicked.
var ErrPanic = errors.New("transfer panicked")

// Outcome is the terminal result of one transfer. Err is nil when the
// transaction reached the endpoint's commitment.
type Outcome struct {
	Index     int
	Request   transfer.Request
	From      solana.PublicKey // zero when resolution failed
	Lamports  uint64
	Signature solana.Signature // set once the node accepted the transaction
	Err       error
	Elapsed   time.Duration
}

func (o Outcome) Confirmed() bool {
	return o.Err == nil
}

// Cause is the human-readable failure reason, empty on success.
func (o Outcome) Cause() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func (o Outcome) ElapsedMs() int64 {
	return o.Elapsed.Milliseconds()
}

func (o Outcome) Kind() string {
	return Classify(o.Err)
}

// Classify maps an error onto its failure kind. It returns "" for nil.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, transfer.ErrKeyLoad):
		return KindKeyLoad
	case errors.Is(err, transfer.ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, transfer.ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, client.ErrEndpointUnavailable):
		return KindEndpointUnavailable
	case errors.Is(err, client.ErrSubmissionRejected):
		return KindSubmissionRejected
	case errors.Is(err, client.ErrConfirmationTimeout):
		return KindConfirmationTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
