package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "shelfkeep.db", cfg.DBPath)
	assert.Equal(t, "127.0.0.1:8787", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Reachability.Interval)
	assert.Equal(t, 7, cfg.Backup.Keep)
	assert.Zero(t, cfg.Backup.Interval)
	assert.Empty(t, cfg.ProbeURL())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shelfkeep.yaml")
	yaml := `
db_path: /data/inventory.db
log_format: json
remote:
  base_url: https://api.example.com
  timeout: 5s
reachability:
  interval: 10s
backup:
  interval: 24h
  s3:
    bucket: snapshots
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("SHELFKEEP_LOG_LEVEL", "debug")
	t.Setenv("SHELFKEEP_BACKUP_S3_ACCESS_KEY", "AKIA")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/inventory.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Reachability.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Backup.Interval)
	assert.Equal(t, "snapshots", cfg.Backup.S3.Bucket)
	assert.Equal(t, "AKIA", cfg.Backup.S3.AccessKey)
	assert.Equal(t, "https://api.example.com", cfg.ProbeURL())
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shelfkeep.yaml"), []byte("listen_addr: 127.0.0.1:9000\n"), 0o600))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("SHELFKEEP_REMOTE_TIMEOUT", "0s")
	_, err := Load("")
	assert.ErrorContains(t, err, "remote.timeout")
}

func TestProbeURLOverride(t *testing.T) {
	cfg := Config{
		Remote:       Remote{BaseURL: "https://api.example.com"},
		Reachability: Reachability{ProbeURL: "https://api.example.com/health"},
	}
	assert.Equal(t, "https://api.example.com/health", cfg.ProbeURL())
}
