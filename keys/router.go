package keys

import (
	"context"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Key reference schemes.
const (
	SchemeFile           = "file"
	SchemeS3             = "s3"
	SchemeSecretsManager = "aws-sm"
)

// Source fetches raw key material from a location within its scheme.
type Source interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// SourceFactory builds a Source on first use.
type SourceFactory func(ctx context.Context) (Source, error)

type lazySource struct {
	once    sync.Once
	factory SourceFactory
	src     Source
	err     error
}

func (l *lazySource) get(ctx context.Context) (Source, error) {
	l.once.Do(func() {
		l.src, l.err = l.factory(ctx)
	})
	return l.src, l.err
}

// Router dispatches key references to sources by scheme. Remote sources are
// only constructed when a reference uses them.
type Router struct {
	sources map[string]*lazySource
}

type Option func(*Router)

// WithSource registers a ready-made source for scheme.
func WithSource(scheme string, src Source) Option {
	return func(r *Router) {
		r.sources[scheme] = &lazySource{factory: func(context.Context) (Source, error) { return src, nil }}
	}
}

// WithS3 enables s3:// references.
func WithS3(cfg S3Config) Option {
	return func(r *Router) {
		r.sources[SchemeS3] = &lazySource{factory: func(context.Context) (Source, error) {
			return NewObjectSource(cfg)
		}}
	}
}

// WithSecretsManager enables aws-sm:// references.
func WithSecretsManager(cfg SecretsConfig) Option {
	return func(r *Router) {
		r.sources[SchemeSecretsManager] = &lazySource{factory: func(ctx context.Context) (Source, error) {
			return NewSecretSource(ctx, cfg)
		}}
	}
}

// NewRouter returns a router that understands local files plus whatever the
// options add.
func NewRouter(opts ...Option) *Router {
	r := &Router{sources: make(map[string]*lazySource)}
	WithSource(SchemeFile, FileSource{})(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load resolves ref to a validated keypair.
func (r *Router) Load(ctx context.Context, ref string) (solana.PrivateKey, error) {
	scheme, location := SplitRef(ref)

	lazy, ok := r.sources[scheme]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", scheme)
	}
	src, err := lazy.get(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "init %s source", scheme)
	}

	data, err := src.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	return ParseKeypair(data)
}

// SplitRef separates the scheme from the location. References without a
// scheme are file paths.
func SplitRef(ref string) (scheme, location string) {
	if i := strings.Index(ref, "://"); i > 0 {
		return strings.ToLower(ref[:i]), ref[i+len("://"):]
	}
	return SchemeFile, ref
}
