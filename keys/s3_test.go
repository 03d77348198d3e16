package keys

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key><BucketName>%s</BucketName><RequestId>1</RequestId></Error>`

// fakeS3 serves path-style GET /bucket/object from an in-memory map.
func fakeS3(t *testing.T, objects map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		data, ok := objects[key]
		if !ok {
			bucket, object, _ := strings.Cut(key, "/")
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, noSuchKeyXML, object, bucket)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestObjectSource(t *testing.T, srv *httptest.Server) *ObjectSource {
	t.Helper()
	src, err := NewObjectSource(S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Region:    "us-east-1",
		AccessKey: "minio",
		SecretKey: "minio123",
		Insecure:  true,
	})
	require.NoError(t, err)
	return src
}

func TestObjectSourceFetch(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	srv := fakeS3(t, map[string][]byte{
		"wallets/alice.json": keygenJSON(t, key),
		"wallets/huge.json":  bytes.Repeat([]byte{'1'}, maxKeySize+1),
	})
	src := newTestObjectSource(t, srv)
	ctx := context.Background()

	data, err := src.Fetch(ctx, "wallets/alice.json")
	require.NoError(t, err)
	got, err := ParseKeypair(data)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), got.PublicKey())

	_, err = src.Fetch(ctx, "wallets/missing.json")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(ctx, "wallets/huge.json")
	require.ErrorIs(t, err, ErrMalformed)

	_, err = src.Fetch(ctx, "no-object")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestRouterS3(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	srv := fakeS3(t, map[string][]byte{"wallets/bob.json": []byte(key.String())})

	router := NewRouter(WithS3(S3Config{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Region:   "us-east-1",
		Insecure: true,
	}))
	got, err := router.Load(context.Background(), "s3://wallets/bob.json")
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), got.PublicKey())
}

func TestFileSourceTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.json")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'1'}, maxKeySize+1), 0o600))
	_, err := FileSource{}.Fetch(context.Background(), path)
	require.ErrorIs(t, err, ErrMalformed)
}
