package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadFromFile_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultd.yaml")
	content := `
server:
  listenAddr: ":7443"
  quicMaxIdleTimeout: 90s
database:
  inMemory: true
ledger:
  decimals: 6
  unlimitedCredit: true
  faucet:
    "0x00000000000000000000000000000000000000a1": "100.5"
auth:
  maxClockSkew: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7443", cfg.Server.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.Server.QUICMaxIdleTimeout)
	assert.True(t, cfg.Database.InMemory)
	assert.Equal(t, int32(6), cfg.Ledger.Decimals)
	assert.True(t, cfg.Ledger.UnlimitedCredit)
	assert.Equal(t, "100.5", cfg.Ledger.Faucet["0x00000000000000000000000000000000000000a1"])
	assert.Equal(t, time.Minute, cfg.Auth.MaxClockSkew)
	// 未出现的字段保留默认值
	assert.Equal(t, 10*time.Second, cfg.Server.QUICKeepAlivePeriod)
	assert.Equal(t, 1024, cfg.Registry.VaultCacheSize)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry:\n  vaultCacheSize: 0\n"), 0o600))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "vaultCacheSize")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = ""
	assert.Error(t, cfg.Validate())
	cfg.Database.InMemory = true
	assert.NoError(t, cfg.Validate())

	cfg.Ledger.Decimals = 80
	assert.Error(t, cfg.Validate())
}
