// Package config carries the verifier's configuration. There is no
// hidden global state: callers build a Config (or load one from file)
// and pass it to the verifier constructor.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/uptane/go-uptane/trust"
)

// TLSConfig names the mutual TLS material used to authenticate against
// the repository server. Empty fields leave the corresponding part of
// the TLS handshake at its library default.
type TLSConfig struct {
	CACert     string `mapstructure:"ca_cert"`
	ClientCert string `mapstructure:"client_cert"`
	ClientKey  string `mapstructure:"client_key"`
	ServerName string `mapstructure:"server_name"`
}

// Config is the verifier configuration.
type Config struct {
	// MetadataRoot is the directory per-repository stores live under.
	MetadataRoot string `mapstructure:"metadata_root"`

	// Byte caps for role document downloads.
	RootMaxLength      int64 `mapstructure:"root_max_length"`
	TimestampMaxLength int64 `mapstructure:"timestamp_max_length"`
	SnapshotMaxLength  int64 `mapstructure:"snapshot_max_length"`
	TargetsMaxLength   int64 `mapstructure:"targets_max_length"`

	// Bounds on role signature thresholds a root may declare.
	MinSignatures int `mapstructure:"min_signatures"`
	MaxSignatures int `mapstructure:"max_signatures"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	TLS TLSConfig `mapstructure:"tls"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		MetadataRoot:       "uptane-metadata",
		RootMaxLength:      512000,  // bytes
		TimestampMaxLength: 16384,   // bytes
		SnapshotMaxLength:  2000000, // bytes
		TargetsMaxLength:   5000000, // bytes
		MinSignatures:      trust.MinSignatures,
		MaxSignatures:      trust.MaxSignatures,
		RequestTimeout:     30 * time.Second,
	}
}

// Load reads a configuration file (yaml, json, or toml, decided by the
// extension) and overlays it on the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
