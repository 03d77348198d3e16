package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	_ Client = (*SolClient)(nil)
)

// Blockhash is the reference point a transaction is anchored to.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Status is a signature status together with the node's block height at the
// time of the query.
type Status struct {
	Found              bool
	Slot               uint64
	ConfirmationStatus rpc.ConfirmationStatusType
	Err                interface{} // on-chain failure, nil on success
	BlockHeight        uint64
}

// Client defines what a transfer needs from a node.
type Client interface {
	LatestBlockhash(ctx context.Context) (Blockhash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (Status, error)
	Close()
}

// SolClient speaks Solana JSON-RPC over a go-ethereum rpc client.
type SolClient struct {
	rpcClient  *gethrpc.Client
	httpClient *http.Client
	endpoint   Endpoint
}

type commitmentConfig struct {
	Commitment rpc.CommitmentType `json:"commitment,omitempty"`
}

type sendConfig struct {
	Encoding            string             `json:"encoding"`
	SkipPreflight       bool               `json:"skipPreflight"`
	PreflightCommitment rpc.CommitmentType `json:"preflightCommitment,omitempty"`
}

type statusConfig struct {
	SearchTransactionHistory bool `json:"searchTransactionHistory"`
}

// createHTTPClient creates an HTTP client tuned for many concurrent callers
// against a single host.
func createHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     30 * time.Second,
		DisableKeepAlives:   false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Dial creates a client for the endpoint. HTTP dialing is lazy, so this does
// not touch the network.
func Dial(ctx context.Context, endpoint Endpoint) (*SolClient, error) {
	httpClient := createHTTPClient(endpoint.RequestTimeout)
	rpcClient, err := gethrpc.DialOptions(ctx, endpoint.URL, gethrpc.WithHTTPClient(httpClient))
	if err != nil {
		httpClient.CloseIdleConnections()
		return nil, fmt.Errorf("%w: dial %s: %w", ErrEndpointUnavailable, endpoint.URL, err)
	}

	return &SolClient{
		rpcClient:  rpcClient,
		httpClient: httpClient,
		endpoint:   endpoint,
	}, nil
}

func (c *SolClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.endpoint.RequestTimeout)
	defer cancel()
	return c.rpcClient.CallContext(ctx, result, method, args...)
}

// LatestBlockhash fetches the most recent blockhash at the endpoint's commitment.
func (c *SolClient) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	var res rpc.GetLatestBlockhashResult
	if err := c.call(ctx, &res, "getLatestBlockhash", commitmentConfig{Commitment: c.endpoint.Commitment}); err != nil {
		return Blockhash{}, fmt.Errorf("%w: getLatestBlockhash: %w", ErrEndpointUnavailable, err)
	}
	if res.Value == nil || res.Value.Blockhash == (solana.Hash{}) {
		return Blockhash{}, fmt.Errorf("%w: getLatestBlockhash: empty result", ErrEndpointUnavailable)
	}

	return Blockhash{
		Hash:                 res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction submits a signed transaction with preflight simulation.
// JSON-RPC errors mean the node refused the transaction; anything else is a
// transport failure.
func (c *SolClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("encode transaction: %w", err)
	}

	var sig string
	err = c.call(ctx, &sig, "sendTransaction", base64.StdEncoding.EncodeToString(raw), sendConfig{
		Encoding:            "base64",
		PreflightCommitment: c.endpoint.Commitment,
	})
	if err != nil {
		var rpcErr gethrpc.Error
		if errors.As(err, &rpcErr) {
			return solana.Signature{}, fmt.Errorf("%w: %s", ErrSubmissionRejected, rpcErr.Error())
		}
		return solana.Signature{}, fmt.Errorf("%w: sendTransaction: %w", ErrEndpointUnavailable, err)
	}

	signature, err := solana.SignatureFromBase58(sig)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: sendTransaction returned %q: %w", ErrEndpointUnavailable, sig, err)
	}
	return signature, nil
}

// SignatureStatus queries the signature status and the current block height
// in a single batch round trip.
func (c *SolClient) SignatureStatus(ctx context.Context, sig solana.Signature) (Status, error) {
	var (
		statuses rpc.GetSignatureStatusesResult
		height   uint64
	)

	batch := []gethrpc.BatchElem{
		{
			Method: "getSignatureStatuses",
			Args:   []interface{}{[]string{sig.String()}, statusConfig{}},
			Result: &statuses,
		},
		{
			Method: "getBlockHeight",
			Args:   []interface{}{commitmentConfig{Commitment: c.endpoint.Commitment}},
			Result: &height,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.endpoint.RequestTimeout)
	defer cancel()
	if err := c.rpcClient.BatchCallContext(ctx, batch); err != nil {
		return Status{}, fmt.Errorf("%w: status batch: %w", ErrEndpointUnavailable, err)
	}
	for _, elem := range batch {
		if elem.Error != nil {
			return Status{}, fmt.Errorf("%w: %s: %w", ErrEndpointUnavailable, elem.Method, elem.Error)
		}
	}

	status := Status{BlockHeight: height}
	if len(statuses.Value) > 0 && statuses.Value[0] != nil {
		s := statuses.Value[0]
		status.Found = true
		status.Slot = s.Slot
		status.ConfirmationStatus = s.ConfirmationStatus
		status.Err = s.Err
	}
	return status, nil
}

// Close stops the rpc client and drops its keep-alive connections; the
// transport is private to this client.
func (c *SolClient) Close() {
	c.rpcClient.Close()
	c.httpClient.CloseIdleConnections()
}
