package keys

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/pkg/errors"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsConfig configures the aws-sm:// source. Endpoint overrides the
// service URL, e.g. for LocalStack.
type SecretsConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// SecretSource reads key material from AWS Secrets Manager.
type SecretSource struct {
	api SecretsManagerAPI
}

func NewSecretSource(ctx context.Context, cfg SecretsConfig) (*SecretSource, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewSecretSourceWithAPI(client), nil
}

// NewSecretSourceWithAPI wraps an existing client.
func NewSecretSourceWithAPI(api SecretsManagerAPI) *SecretSource {
	return &SecretSource{api: api}
}

// Fetch returns the secret string, or the binary payload when no string is set.
func (s *SecretSource) Fetch(ctx context.Context, secretID string) ([]byte, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, errors.Wrapf(ErrNotFound, "aws-sm://%s", secretID)
		}
		return nil, errors.Wrapf(err, "get secret %s", secretID)
	}

	if out.SecretString != nil {
		return []byte(aws.ToString(out.SecretString)), nil
	}
	return out.SecretBinary, nil
}
