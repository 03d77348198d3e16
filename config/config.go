// Package config loads the transfer batch description.
package config

import (
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/okx/soltransfer/client"
	"github.com/okx/soltransfer/keys"
	"github.com/okx/soltransfer/transfer"
)

const (
	DefaultFile = "config.yaml"
	EnvPrefix   = "SOLTRANSFER"
)

var ErrInvalidConfig = errors.New("invalid config")

// Transfer is one entry of the transfers list. Fields are kept as written so
// that a bad entry fails on its own instead of rejecting the whole file.
type Transfer struct {
	FromKeypair string `mapstructure:"from_keypair"`
	To          string `mapstructure:"to"`
	Amount      string `mapstructure:"amount"`
}

type KeySources struct {
	S3             keys.S3Config      `mapstructure:"s3"`
	SecretsManager keys.SecretsConfig `mapstructure:"aws_sm"`
}

type Config struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	Commitment     string        `mapstructure:"commitment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Transfers      []Transfer    `mapstructure:"transfers"`
	KeySources     KeySources    `mapstructure:"key_sources"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "")
	v.SetDefault("commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("request_timeout", client.DefaultRequestTimeout)
	v.SetDefault("confirm_timeout", client.DefaultConfirmTimeout)
	v.SetDefault("poll_interval", client.DefaultPollInterval)
	v.SetDefault("key_sources.s3.endpoint", "")
	v.SetDefault("key_sources.s3.region", "")
	v.SetDefault("key_sources.s3.access_key", "")
	v.SetDefault("key_sources.s3.secret_key", "")
	v.SetDefault("key_sources.s3.insecure", false)
	v.SetDefault("key_sources.aws_sm.region", "")
	v.SetDefault("key_sources.aws_sm.endpoint", "")
}

// Load reads path (YAML, JSON or TOML by extension), applies SOLTRANSFER_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every transfer depends on. Per-transfer fields
// are left to the resolver.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.Wrap(ErrInvalidConfig, "rpc_url is required")
	}
	if len(c.Transfers) == 0 {
		return errors.Wrap(ErrInvalidConfig, "at least one transfer is required")
	}
	if err := c.Endpoint().Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

func (c *Config) Endpoint() client.Endpoint {
	return client.Endpoint{
		URL:            c.RPCURL,
		Commitment:     rpc.CommitmentType(strings.ToLower(c.Commitment)),
		RequestTimeout: c.RequestTimeout,
		ConfirmTimeout: c.ConfirmTimeout,
		PollInterval:   c.PollInterval,
	}
}

func (c *Config) Requests() []transfer.Request {
	reqs := make([]transfer.Request, len(c.Transfers))
	for i, t := range c.Transfers {
		reqs[i] = transfer.Request{
			KeyRef: t.FromKeypair,
			To:     t.To,
			Amount: t.Amount,
		}
	}
	return reqs
}

// KeyOptions enables the remote key sources. They stay unused until a
// reference names their scheme.
func (c *Config) KeyOptions() []keys.Option {
	return []keys.Option{
		keys.WithS3(c.KeySources.S3),
		keys.WithSecretsManager(c.KeySources.SecretsManager),
	}
}
