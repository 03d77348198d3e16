package keys

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// keygenJSON encodes a key the way solana-keygen writes it.
func keygenJSON(t *testing.T, key solana.PrivateKey) []byte {
	t.Helper()
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)
	return data
}

func writeKeyFile(t *testing.T, dir string, key solana.PrivateKey) string {
	t.Helper()
	path := filepath.Join(dir, key.PublicKey().String()+".json")
	require.NoError(t, os.WriteFile(path, keygenJSON(t, key), 0o600))
	return path
}

func TestParseKeypair(t *testing.T) {
	key := solana.NewWallet().PrivateKey

	got, err := ParseKeypair(keygenJSON(t, key))
	require.NoError(t, err)
	require.Equal(t, key, got)

	got, err = ParseKeypair([]byte("  " + key.String() + "\n"))
	require.NoError(t, err)
	require.Equal(t, key, got)
}

func TestParseKeypairMalformed(t *testing.T) {
	key := solana.NewWallet().PrivateKey

	tampered := make(solana.PrivateKey, len(key))
	copy(tampered, key)
	tampered[63] ^= 0xff

	tests := map[string][]byte{
		"empty":        nil,
		"not json":     []byte("[1,2,"),
		"out of range": []byte("[256]"),
		"short":        keygenJSON(t, key[:32]),
		"bad base58":   []byte("0OIl"),
		"pubkey drift": keygenJSON(t, tampered),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseKeypair(data)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	key := solana.NewWallet().PrivateKey
	path := writeKeyFile(t, dir, key)

	r := NewRouter()
	for _, ref := range []string{path, "file://" + path} {
		got, err := r.Load(context.Background(), ref)
		require.NoError(t, err)
		require.Equal(t, key.PublicKey(), got.PublicKey())
	}

	_, err := r.Load(context.Background(), filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRouterUnsupportedScheme(t *testing.T) {
	_, err := NewRouter().Load(context.Background(), "vault://secret/alice")
	require.ErrorIs(t, err, ErrUnsupportedScheme)

	// remote schemes are opt-in
	_, err = NewRouter().Load(context.Background(), "s3://bucket/alice.json")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

type memSource map[string][]byte

func (m memSource) Fetch(_ context.Context, location string) ([]byte, error) {
	data, ok := m[location]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func TestRouterWithSource(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	r := NewRouter(WithSource("mem", memSource{"alice": []byte(key.String())}))

	got, err := r.Load(context.Background(), "MEM://alice")
	require.NoError(t, err)
	require.Equal(t, key, got)

	_, err = r.Load(context.Background(), "mem://bob")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSplitRef(t *testing.T) {
	tests := []struct {
		ref, scheme, location string
	}{
		{"/keys/a.json", SchemeFile, "/keys/a.json"},
		{"keys/a.json", SchemeFile, "keys/a.json"},
		{"file:///keys/a.json", SchemeFile, "/keys/a.json"},
		{"s3://bucket/a.json", SchemeS3, "bucket/a.json"},
		{"aws-sm://prod/alice", SchemeSecretsManager, "prod/alice"},
	}
	for _, tt := range tests {
		scheme, location := SplitRef(tt.ref)
		require.Equal(t, tt.scheme, scheme, tt.ref)
		require.Equal(t, tt.location, location, tt.ref)
	}
}

func TestSplitObjectLocation(t *testing.T) {
	bucket, object, err := splitObjectLocation("keys/team/alice.json")
	require.NoError(t, err)
	require.Equal(t, "keys", bucket)
	require.Equal(t, "team/alice.json", object)

	for _, bad := range []string{"keys", "keys/", "/alice.json"} {
		_, _, err := splitObjectLocation(bad)
		require.ErrorIs(t, err, ErrMalformed, bad)
	}
}
