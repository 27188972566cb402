// Package config loads ledgerd settings from an optional YAML file.
// Command-line flags and environment variables override file values in the
// binaries; this package only knows the file layout and its defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
	"powtoken/internal/domain"
	"powtoken/internal/mining"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Auth modes of the HTTP API.
const (
	AuthSignature = "signature" // ed25519-signed requests
	AuthHeader    = "header"    // trust X-Account, for local development only
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the full ledgerd configuration.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Ledger  Ledger  `yaml:"ledger"`
	Mining  Mining  `yaml:"mining"`
	Log     Log     `yaml:"log"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr    string        `yaml:"addr"`
	Auth    string        `yaml:"auth"`
	MaxSkew time.Duration `yaml:"max_skew"`
}

// Storage selects the table backend and the optional event journals.
type Storage struct {
	Backend       string `yaml:"backend"`
	BoltPath      string `yaml:"bolt_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	Migrate       bool   `yaml:"migrate"`
}

// Ledger configures the token contract.
type Ledger struct {
	Owner domain.AccountName `yaml:"owner"`
	// InitialDifficulty is a hex target. When empty InitialZeroBits is used.
	InitialDifficulty string `yaml:"initial_difficulty"`
	InitialZeroBits   uint   `yaml:"initial_zero_bits"`
	// Accounts registered at startup, name -> base58 public key (may be empty).
	Accounts map[domain.AccountName]string `yaml:"accounts"`
}

// Mining configures the proof-of-work gate.
type Mining struct {
	RewardTokens     int64         `yaml:"reward_tokens"`
	RetargetInterval uint64        `yaml:"retarget_interval"`
	TargetBlockTime  time.Duration `yaml:"target_block_time"`
	Hasher           string        `yaml:"hasher"`
}

// Log configures zap.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:    ":8080",
			Auth:    AuthSignature,
			MaxSkew: 5 * time.Minute,
		},
		Storage: Storage{
			Backend:  BackendMemory,
			BoltPath: "ledger.db",
			Migrate:  true,
		},
		Ledger: Ledger{
			Owner:           "powtoken",
			InitialZeroBits: 16,
		},
		Mining: Mining{
			RewardTokens:     mining.DefaultRewardTokens,
			RetargetInterval: mining.DefaultRetargetInterval,
			TargetBlockTime:  mining.DefaultTargetBlockTime,
			Hasher:           digest.SHA256,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping values the document does not set.
// Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.Validate()
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Storage.BoltPath == "" {
			return fmt.Errorf("%w: storage.bolt_path is required for bolt", ErrInvalid)
		}
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn is required for postgres", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend)
	}

	switch c.Server.Auth {
	case AuthSignature, AuthHeader:
	default:
		return fmt.Errorf("%w: server.auth %q", ErrInvalid, c.Server.Auth)
	}

	if !c.Ledger.Owner.IsValid() {
		return fmt.Errorf("%w: ledger.owner %q", ErrInvalid, c.Ledger.Owner)
	}
	for name := range c.Ledger.Accounts {
		if !name.IsValid() {
			return fmt.Errorf("%w: ledger.accounts name %q", ErrInvalid, name)
		}
	}
	if _, err := c.InitialDifficulty(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Mining.RewardTokens <= 0 {
		return fmt.Errorf("%w: mining.reward_tokens must be positive", ErrInvalid)
	}
	if c.Mining.RewardTokens > domain.MaxWholeAmount {
		return fmt.Errorf("%w: mining.reward_tokens above %d", ErrInvalid, domain.MaxWholeAmount)
	}
	if c.Mining.RetargetInterval == 0 {
		return fmt.Errorf("%w: mining.retarget_interval must be positive", ErrInvalid)
	}
	if c.Mining.TargetBlockTime <= 0 {
		return fmt.Errorf("%w: mining.target_block_time must be positive", ErrInvalid)
	}
	if _, err := digest.New(c.Mining.Hasher); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// InitialDifficulty resolves the starting target of new tokens.
func (c *Config) InitialDifficulty() (difficulty.Target, error) {
	if c.Ledger.InitialDifficulty != "" {
		return difficulty.Parse(c.Ledger.InitialDifficulty)
	}
	return difficulty.FromLeadingZeroBits(c.Ledger.InitialZeroBits)
}

// MiningConfig converts the mining section for the mining engine.
func (c *Config) MiningConfig() (mining.Config, error) {
	hasher, err := digest.New(c.Mining.Hasher)
	if err != nil {
		return mining.Config{}, err
	}
	return mining.Config{
		RewardTokens:     c.Mining.RewardTokens,
		RetargetInterval: c.Mining.RetargetInterval,
		TargetBlockTime:  c.Mining.TargetBlockTime,
		Hasher:           hasher,
	}, nil
}
