package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/okx/soltransfer/mocknode"
	"github.com/okx/soltransfer/report"
)

func writeKey(t *testing.T, dir string) (string, solana.PrivateKey) {
	t.Helper()
	key := solana.NewWallet().PrivateKey
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(dir, key.PublicKey().String()+".json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path, key
}

func startNode(t *testing.T) (*mocknode.Node, string) {
	t.Helper()
	node := mocknode.New(mocknode.Config{ConfirmAfter: 1})
	srv := httptest.NewServer(node)
	t.Cleanup(func() {
		node.Close()
		srv.Close()
	})
	return node, srv.URL
}

// writeBatch writes a config with one valid transfer and one with a bad amount.
func writeBatch(t *testing.T, rpcURL string) string {
	t.Helper()
	dir := t.TempDir()
	keyPath, _ := writeKey(t, dir)
	to := solana.NewWallet().PublicKey()

	content := fmt.Sprintf(`rpc_url: %s
poll_interval: 10ms
confirm_timeout: 5s
transfers:
  - from_keypair: %s
    to: %s
    amount: "0.25"
  - from_keypair: %s
    to: %s
    amount: "-3"
`, rpcURL, keyPath, to, keyPath, to)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func quietLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func TestSend(t *testing.T) {
	node, url := startNode(t)
	var out bytes.Buffer

	summary, err := Send(context.Background(), Options{
		ConfigPath: writeBatch(t, url),
		Stdout:     &out,
		Logger:     quietLogger(),
	})
	require.ErrorIs(t, err, ErrTransfersFailed)
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.Confirmed)
	require.Equal(t, uint64(250_000_000), summary.Lamports)
	require.Len(t, node.Sent(), 1)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "✅ Tx sent: "+node.Sent()[0].Signatures[0].String())
	require.Contains(t, lines[1], "❌ Error: invalid amount")
}

func TestSendJSONAndPush(t *testing.T) {
	_, url := startNode(t)

	var pushes int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pushes, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	var out bytes.Buffer
	_, err := Send(context.Background(), Options{
		ConfigPath:  writeBatch(t, url),
		Output:      report.FormatJSON,
		Pushgateway: gateway.URL,
		Stdout:      &out,
		Logger:      quietLogger(),
	})
	require.ErrorIs(t, err, ErrTransfersFailed)
	require.EqualValues(t, 1, atomic.LoadInt32(&pushes))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		require.True(t, json.Valid([]byte(line)), line)
	}
}

func TestSendInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transfers: []\n"), 0o600))

	_, err := Send(context.Background(), Options{ConfigPath: path, Stdout: &bytes.Buffer{}, Logger: quietLogger()})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTransfersFailed)
}

func TestCheckMakesNoRPCCalls(t *testing.T) {
	node, url := startNode(t)
	var out bytes.Buffer

	err := Check(context.Background(), Options{
		ConfigPath: writeBatch(t, url),
		Stdout:     &out,
		Logger:     quietLogger(),
	})
	require.ErrorIs(t, err, ErrTransfersFailed)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "0.25 SOL (250000000 lamports)")
	require.Contains(t, lines[1], "invalid_amount")

	for _, method := range []string{"getLatestBlockhash", "sendTransaction", "getSignatureStatuses"} {
		require.Zero(t, node.Calls(method), method)
	}
}
