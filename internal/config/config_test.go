package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eme.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// no eme.yaml here (equivalent of t.Chdir, which needs Go 1.24)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "eme-data/snapshots", cfg.Snapshot.Dir)
	assert.Equal(t, filepath.Join("eme-data/logs", "experiments.jsonl"), cfg.RecordsPath())
	assert.Equal(t, filepath.Join("eme-data/logs", "events.log"), cfg.EventsPath())
	assert.Equal(t, filepath.Join("eme-data/logs", "crashes.log"), cfg.CrashPath())
	assert.Equal(t, 0.25, cfg.Causality.MaxExpectedChange)
	assert.Equal(t, "synthetic", cfg.Source.Kind)
	assert.Equal(t, 640, cfg.Source.Width)
	assert.Equal(t, 480, cfg.Source.Height)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
snapshot:
  dir: /var/lib/eme/snapshots
log:
  dir: /var/log/eme
  crash: /tmp/crash.log
source:
  kind: fbdev
  device: /dev/fb1
causality:
  max_expected_change: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/eme/snapshots", cfg.Snapshot.Dir)
	assert.Equal(t, "/var/log/eme/experiments.jsonl", cfg.RecordsPath())
	assert.Equal(t, "/tmp/crash.log", cfg.CrashPath(), "absolute names are kept")
	assert.Equal(t, "fbdev", cfg.Source.Kind)
	assert.Equal(t, "/dev/fb1", cfg.Source.Device)
	assert.Equal(t, 0.5, cfg.Causality.MaxExpectedChange)
	assert.Equal(t, 640, cfg.Source.Width, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "source:\n  width: 100\n")
	t.Setenv("EME_SOURCE__WIDTH", "320")
	t.Setenv("EME_METRICS__ADDR", ":9464")
	t.Setenv("EME_CAUSALITY__MAX_EXPECTED_CHANGE", "0.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 320, cfg.Source.Width)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
	assert.Equal(t, 0.1, cfg.Causality.MaxExpectedChange)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_SchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown source", "source:\n  kind: webcam\n"},
		{"zero width", "source:\n  width: 0\n"},
		{"threshold above one", "causality:\n  max_expected_change: 1.5\n"},
		{"threshold zero", "causality:\n  max_expected_change: 0\n"},
		{"empty snapshot dir", "snapshot:\n  dir: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "source: [unterminated\n"))
	assert.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		Snapshot: SnapshotConfig{Dir: filepath.Join(root, "snaps")},
		Log:      LogConfig{Dir: filepath.Join(root, "logs")},
		Ledger:   LedgerConfig{Path: filepath.Join(root, "db", "ledger.db")},
	}

	cfg.EnsureDirs()

	for _, dir := range []string{"snaps", "logs", "db"} {
		info, err := os.Stat(filepath.Join(root, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
