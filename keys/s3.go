package keys

import (
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

const defaultS3Endpoint = "s3.amazonaws.com"

// S3Config configures the s3:// source. Empty credentials fall back to the
// standard AWS_* environment variables.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Insecure  bool   `mapstructure:"insecure"`
}

// ObjectSource reads key material from an S3-compatible object store.
type ObjectSource struct {
	client *minio.Client
}

func NewObjectSource(cfg S3Config) (*ObjectSource, error) {
	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init s3 client")
	}
	return &ObjectSource{client: client}, nil
}

// Fetch reads the object at bucket/object.
func (s *ObjectSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	bucket, object, err := splitObjectLocation(location)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get s3://%s", location)
	}
	defer obj.Close()

	data, err := readKeyMaterial(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.Wrapf(ErrNotFound, "s3://%s", location)
		}
		return nil, errors.Wrapf(err, "read s3://%s", location)
	}
	return data, nil
}

func splitObjectLocation(location string) (string, string, error) {
	bucket, object, ok := strings.Cut(location, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", errors.Wrapf(ErrMalformed, "s3 location %q is not bucket/object", location)
	}
	return bucket, object, nil
}
