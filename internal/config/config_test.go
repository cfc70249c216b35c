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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.ThreadingPort)
	assert.Equal(t, 8081, cfg.ForkingPort)
	assert.Equal(t, 8082, cfg.ControlPort)
	assert.Equal(t, "public", cfg.PublicDir)
	assert.Equal(t, 100, cfg.Bench.MaxWorkers)
	assert.Equal(t, 60*time.Second, cfg.Bench.RequestTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SOCKBENCH_THREADING_PORT", "9090")
	t.Setenv("SOCKBENCH_PUBLIC_DIR", "/srv/files")
	t.Setenv("SOCKBENCH_BENCH_MAX_WORKERS", "7")
	t.Setenv("SOCKBENCH_BENCH_REQUEST_TIMEOUT", "5s")
	t.Setenv("SOCKBENCH_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ThreadingPort)
	assert.Equal(t, "/srv/files", cfg.PublicDir)
	assert.Equal(t, 7, cfg.Bench.MaxWorkers)
	assert.Equal(t, 5*time.Second, cfg.Bench.RequestTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched fields keep their defaults.
	assert.Equal(t, 8081, cfg.ForkingPort)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "socketbench.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
host = "127.0.0.1"
control_port = 9999

[bench]
max_workers = 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9999, cfg.ControlPort)
	assert.Equal(t, 3, cfg.Bench.MaxWorkers)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "socketbench.toml")
	require.NoError(t, os.WriteFile(path, []byte("threading_port = 7000\n"), 0o644))

	t.Setenv("SOCKBENCH_THREADING_PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.ThreadingPort)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SOCKBENCH_CONTROL_PORT", "70000")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("SOCKBENCH_CONTROL_PORT", "8082")
	t.Setenv("SOCKBENCH_BENCH_MAX_WORKERS", "0")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
