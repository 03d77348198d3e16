// Package keys loads Solana signing keypairs from key references.
//
// A key reference is either a plain filesystem path or a URL-like locator
// whose scheme selects the source:
//
//	/home/alice/.config/solana/id.json   local keygen file
//	file:///etc/keys/alice.json          same, explicit scheme
//	s3://bucket/path/alice.json          S3-compatible object store
//	aws-sm://prod/alice                  AWS Secrets Manager secret id
//
// Key material is either the JSON byte array written by solana-keygen or a
// base58-encoded 64-byte secret key.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("key material not found")
	ErrMalformed         = errors.New("malformed key material")
	ErrUnsupportedScheme = errors.New("unsupported key reference scheme")
)

// maxKeySize bounds how much is read from any source.
const maxKeySize = 64 << 10

// readKeyMaterial reads r fully, failing once it exceeds maxKeySize.
func readKeyMaterial(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxKeySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxKeySize {
		return nil, errors.Wrapf(ErrMalformed, "key material larger than %d bytes", maxKeySize)
	}
	return data, nil
}

// ParseKeypair decodes and validates key material.
func ParseKeypair(data []byte) (solana.PrivateKey, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.Wrap(ErrMalformed, "empty")
	}

	var raw []byte
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "keygen json: %v", err)
		}
	} else {
		key, err := solana.PrivateKeyFromBase58(string(data))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "base58: %v", err)
		}
		raw = key
	}

	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrMalformed, "expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	// keygen files carry seed || pubkey; a corrupted file would sign for a different account
	if !bytes.Equal(ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize]), raw) {
		return nil, errors.Wrap(ErrMalformed, "public key does not match seed")
	}

	return solana.PrivateKey(raw), nil
}
