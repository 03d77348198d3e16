// Package mocknode implements a small in-memory Solana JSON-RPC node. It
// answers the methods the transfer engine uses and lets callers inject
// latency, rejections, on-chain failures and hangs per fee payer.
package mocknode

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeSimulation     = -32002
	codeSigVerify      = -32003

	// blocks a blockhash stays valid for, as on mainnet
	blockhashValidity = 150
)

// Config controls node behaviour. Maps are keyed by fee payer.
type Config struct {
	Latency         time.Duration // added to every HTTP request
	SendLatency     time.Duration // added to sendTransaction
	ConfirmAfter    int           // status polls answered as processed before finalized
	ExpireBlockhash bool          // report a block height past the blockhash validity once anything was sent
	Unavailable     bool          // answer every request with 503

	Reject map[solana.PublicKey]string      // preflight failure message
	Fail   map[solana.PublicKey]interface{} // on-chain error object
	Hang   map[solana.PublicKey]bool        // sendTransaction never answers
}

type txRecord struct {
	polls int
	err   interface{}
}

// Node is an http.Handler speaking Solana JSON-RPC.
type Node struct {
	cfg Config

	mu        sync.Mutex
	slot      uint64
	height    uint64
	blockhash solana.Hash
	txs       map[solana.Signature]*txRecord
	sent      []*solana.Transaction
	calls     map[string]int

	closed    chan struct{}
	closeOnce sync.Once
}

func New(cfg Config) *Node {
	n := &Node{
		cfg:    cfg,
		slot:   1000,
		height: 900,
		txs:    make(map[solana.Signature]*txRecord),
		calls:  make(map[string]int),
		closed: make(chan struct{}),
	}
	_, _ = rand.Read(n.blockhash[:])
	return n
}

// Close releases requests parked by the Hang behaviour.
func (n *Node) Close() {
	n.closeOnce.Do(func() { close(n.closed) })
}

// Calls returns how many times method was invoked.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// Sent returns the accepted transactions in arrival order.
func (n *Node) Sent() []*solana.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*solana.Transaction(nil), n.sent...)
}

func (n *Node) Blockhash() solana.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.blockhash
}

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if n.cfg.Unavailable {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if !sleep(r.Context(), n.cfg.Latency) {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var reqs []request
		if err := json.Unmarshal(body, &reqs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resps := make([]response, len(reqs))
		for i, req := range reqs {
			resp, ok := n.handle(r.Context(), req)
			if !ok {
				return
			}
			resps[i] = resp
		}
		writeJSON(w, resps)
		return
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, ok := n.handle(r.Context(), req)
	if !ok {
		return
	}
	writeJSON(w, resp)
}

// handle answers one call. ok is false when the request was abandoned.
func (n *Node) handle(ctx context.Context, req request) (response, bool) {
	n.mu.Lock()
	n.calls[req.Method]++
	n.mu.Unlock()

	var (
		result interface{}
		rerr   *rpcError
		ok     = true
	)
	switch req.Method {
	case "getLatestBlockhash":
		result = n.latestBlockhash()
	case "getBlockHeight":
		result = n.blockHeight()
	case "getSignatureStatuses":
		result, rerr = n.signatureStatuses(req.Params)
	case "sendTransaction":
		result, rerr, ok = n.sendTransaction(ctx, req.Params)
	default:
		rerr = &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}

	resp := response{JSONRPC: "2.0", ID: req.ID}
	if rerr != nil {
		resp.Error = rerr
		return resp, ok
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = &rpcError{Code: -32603, Message: err.Error()}
		return resp, ok
	}
	resp.Result = raw
	return resp, ok
}

func (n *Node) latestBlockhash() interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": n.slot},
		"value": map[string]interface{}{
			"blockhash":            n.blockhash.String(),
			"lastValidBlockHeight": n.height + blockhashValidity,
		},
	}
}

func (n *Node) blockHeight() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cfg.ExpireBlockhash && len(n.sent) > 0 {
		return n.height + blockhashValidity + 1
	}
	return n.height
}

func (n *Node) signatureStatuses(params []json.RawMessage) (interface{}, *rpcError) {
	var sigs []string
	if len(params) == 0 || json.Unmarshal(params[0], &sigs) != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	values := make([]interface{}, len(sigs))
	for i, s := range sigs {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid param: " + err.Error()}
		}
		rec, found := n.txs[sig]
		if !found {
			continue
		}
		rec.polls++
		status := "processed"
		if rec.polls > n.cfg.ConfirmAfter {
			status = "finalized"
		}
		values[i] = map[string]interface{}{
			"slot":               n.slot,
			"confirmations":      nil,
			"err":                rec.err,
			"confirmationStatus": status,
		}
	}
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": n.slot},
		"value":   values,
	}, nil
}

func (n *Node) sendTransaction(ctx context.Context, params []json.RawMessage) (interface{}, *rpcError, bool) {
	var encoded string
	if len(params) == 0 || json.Unmarshal(params[0], &encoded) != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "Invalid params"}, true
	}
	var opts struct {
		Encoding string `json:"encoding"`
	}
	if len(params) > 1 {
		_ = json.Unmarshal(params[1], &opts)
	}

	var (
		raw []byte
		err error
	)
	if opts.Encoding == "base64" {
		raw, err = base64.StdEncoding.DecodeString(encoded)
	} else {
		raw, err = base58.Decode(encoded)
	}
	if err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid transaction encoding: " + err.Error()}, true
	}

	tx := new(solana.Transaction)
	if err := tx.UnmarshalWithDecoder(bin.NewBinDecoder(raw)); err != nil {
		return nil, &rpcError{Code: codeInvalidParams, Message: "failed to deserialize transaction: " + err.Error()}, true
	}
	if len(tx.Signatures) == 0 || len(tx.Message.AccountKeys) == 0 {
		return nil, &rpcError{Code: codeInvalidParams, Message: "transaction has no signatures"}, true
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, &rpcError{Code: codeSigVerify, Message: "Transaction signature verification failure"}, true
	}

	payer := tx.Message.AccountKeys[0]
	if n.cfg.Hang[payer] {
		select {
		case <-ctx.Done():
		case <-n.closed:
		}
		return nil, nil, false
	}
	if !sleep(ctx, n.cfg.SendLatency) {
		return nil, nil, false
	}
	if msg, rejected := n.cfg.Reject[payer]; rejected {
		return nil, &rpcError{Code: codeSimulation, Message: "Transaction simulation failed: " + msg}, true
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if tx.Message.RecentBlockhash != n.blockhash {
		return nil, &rpcError{Code: codeSimulation, Message: "Transaction simulation failed: Blockhash not found"}, true
	}
	sig := tx.Signatures[0]
	if _, dup := n.txs[sig]; dup {
		return nil, &rpcError{Code: codeSimulation, Message: "Transaction simulation failed: This transaction has already been processed"}, true
	}
	n.txs[sig] = &txRecord{err: n.cfg.Fail[payer]}
	n.sent = append(n.sent, tx)
	return sig.String(), nil, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
