package keys

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	values map[string]*secretsmanager.GetSecretValueOutput
	err    error
}

func (f *fakeSecrets) GetSecretValue(
	_ context.Context,
	params *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out, ok := f.values[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return out, nil
}

func TestSecretSource(t *testing.T) {
	alice := solana.NewWallet().PrivateKey
	bob := solana.NewWallet().PrivateKey
	api := &fakeSecrets{values: map[string]*secretsmanager.GetSecretValueOutput{
		"prod/alice": {SecretString: aws.String(alice.String())},
		"prod/bob":   {SecretBinary: keygenJSON(t, bob)},
	}}
	r := NewRouter(WithSource(SchemeSecretsManager, NewSecretSourceWithAPI(api)))

	got, err := r.Load(context.Background(), "aws-sm://prod/alice")
	require.NoError(t, err)
	require.Equal(t, alice, got)

	got, err = r.Load(context.Background(), "aws-sm://prod/bob")
	require.NoError(t, err)
	require.Equal(t, bob, got)

	_, err = r.Load(context.Background(), "aws-sm://prod/carol")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSecretSourceError(t *testing.T) {
	boom := errors.New("access denied")
	src := NewSecretSourceWithAPI(&fakeSecrets{err: boom})

	_, err := src.Fetch(context.Background(), "prod/alice")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrNotFound)
}
