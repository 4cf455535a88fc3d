package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptane/go-uptane/trust"
)

func TestDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, "uptane-metadata", cfg.MetadataRoot)
	assert.Equal(t, int64(512000), cfg.RootMaxLength)
	assert.Equal(t, int64(16384), cfg.TimestampMaxLength)
	assert.Equal(t, int64(2000000), cfg.SnapshotMaxLength)
	assert.Equal(t, int64(5000000), cfg.TargetsMaxLength)
	assert.Equal(t, trust.MinSignatures, cfg.MinSignatures)
	assert.Equal(t, trust.MaxSignatures, cfg.MaxSignatures)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	content := []byte(`
metadata_root: /var/sota/metadata
timestamp_max_length: 4096
tls:
  ca_cert: /var/sota/root.crt
  client_cert: /var/sota/client.pem
  client_key: /var/sota/client.key
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/sota/metadata", cfg.MetadataRoot)
	assert.Equal(t, int64(4096), cfg.TimestampMaxLength)
	assert.Equal(t, "/var/sota/root.crt", cfg.TLS.CACert)
	assert.Equal(t, "/var/sota/client.pem", cfg.TLS.ClientCert)
	assert.Equal(t, "/var/sota/client.key", cfg.TLS.ClientKey)
	// untouched fields keep their defaults
	assert.Equal(t, int64(512000), cfg.RootMaxLength)
	assert.Equal(t, trust.MaxSignatures, cfg.MaxSignatures)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
