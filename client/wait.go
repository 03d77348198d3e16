package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ConditionFunc is polled until it reports done or fails.
type ConditionFunc func(ctx context.Context) (done bool, err error)

// Poll retries the given condition with the given interval until it succeeds,
// fails, the deadline expires or ctx is done.
func Poll(ctx context.Context, interval, deadline time.Duration, condition ConditionFunc) error {
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return fmt.Errorf("%w: not reached after %v", ErrConfirmationTimeout, deadline)
		case <-tick.C:
			ok, err := condition(ctx)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
}

// SendAndConfirm submits tx and blocks until it reaches the endpoint's
// commitment, fails on chain, or its blockhash expires. The signature is
// returned whenever the node accepted the transaction, even on failure.
//
// Cancelling ctx only stops a transaction that has not been accepted yet.
// After acceptance the wait ignores cancellation and is bounded by the
// endpoint's ConfirmTimeout and the blockhash validity instead.
func SendAndConfirm(ctx context.Context, c Client, endpoint Endpoint, tx *solana.Transaction, lastValidBlockHeight uint64) (solana.Signature, error) {
	sig, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}

	err = Poll(context.WithoutCancel(ctx), endpoint.PollInterval, endpoint.ConfirmTimeout, func(ctx context.Context) (bool, error) {
		status, err := c.SignatureStatus(ctx, sig)
		if err != nil {
			return false, err
		}
		if status.Found {
			if status.Err != nil {
				return false, fmt.Errorf("%w: transaction %s failed: %s", ErrSubmissionRejected, sig, describeTxErr(status.Err))
			}
			return Reached(status.ConfirmationStatus, endpoint.Commitment), nil
		}
		if lastValidBlockHeight > 0 && status.BlockHeight > lastValidBlockHeight {
			return false, fmt.Errorf("%w: blockhash expired before %s was %s (block height %d > %d)",
				ErrConfirmationTimeout, sig, endpoint.Commitment, status.BlockHeight, lastValidBlockHeight)
		}
		return false, nil
	})
	if err != nil {
		return sig, err
	}
	return sig, nil
}

func describeTxErr(txErr interface{}) string {
	b, err := json.Marshal(txErr)
	if err != nil {
		return fmt.Sprintf("%v", txErr)
	}
	return string(b)
}
