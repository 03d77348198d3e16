// Package client talks to a Solana JSON-RPC node.
package client

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultConfirmTimeout = 90 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// Endpoint describes the node every transfer talks to. It is a plain value:
// never mutated after construction and safe to share between goroutines.
type Endpoint struct {
	URL            string
	Commitment     rpc.CommitmentType
	RequestTimeout time.Duration // per JSON-RPC round trip
	ConfirmTimeout time.Duration // upper bound on waiting for the commitment
	PollInterval   time.Duration
}

// NewEndpoint returns an endpoint with confirmed commitment and default timings.
func NewEndpoint(rawURL string) Endpoint {
	return Endpoint{
		URL:            rawURL,
		Commitment:     rpc.CommitmentConfirmed,
		RequestTimeout: DefaultRequestTimeout,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
	}
}

func (e Endpoint) Validate() error {
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("invalid rpc url %q: %w", e.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid rpc url %q: scheme must be http or https", e.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid rpc url %q: missing host", e.URL)
	}
	if _, ok := commitmentRank[e.Commitment]; !ok {
		return fmt.Errorf("invalid commitment %q: want processed, confirmed or finalized", e.Commitment)
	}
	if e.RequestTimeout <= 0 || e.ConfirmTimeout <= 0 || e.PollInterval <= 0 {
		return fmt.Errorf("timeouts and poll interval must be positive")
	}
	return nil
}

var commitmentRank = map[rpc.CommitmentType]int{
	rpc.CommitmentProcessed: 0,
	rpc.CommitmentConfirmed: 1,
	rpc.CommitmentFinalized: 2,
}

// Reached reports whether a signature status satisfies the commitment.
func Reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	have, ok := commitmentRank[rpc.CommitmentType(status)]
	if !ok {
		return false
	}
	return have >= commitmentRank[want]
}
