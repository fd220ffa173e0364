package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PORT":                 "9090",
		"DATABASE_URL":         "postgres://x",
		"VRPTW_SOLVER":         " highs ",
		"VRPTW_TIME_LIMIT":     "1.5",
		"RATE_RPS":             "20",
		"RATE_BURST":           "40",
		"WEBHOOK_MAX_ATTEMPTS": "3",
		"VRPTW_TIGHT_BIG_M":    "true",
		"AUTH_MODE":            "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, "highs", cfg.Solver.Default)
	assert.Equal(t, 1500*time.Millisecond, cfg.Solver.Options.TimeLimit)
	assert.Equal(t, 20.0, cfg.Rate.RPS)
	assert.Equal(t, 40, cfg.Rate.Burst)
	assert.Equal(t, 3, cfg.Webhooks.MaxAttempts)
	assert.True(t, cfg.Solver.TightBigM)
	assert.Equal(t, "dev", cfg.Auth.Mode)
}

func TestApplyEnvErrorsNameKey(t *testing.T) {
	for key, val := range map[string]string{
		"VRPTW_TIME_LIMIT":     "soon",
		"RATE_RPS":             "fast",
		"RATE_BURST":           "1.5",
		"WEBHOOK_MAX_ATTEMPTS": "x",
		"VRPTW_TIGHT_BIG_M":    "maybe",
	} {
		cfg := Default()
		err := cfg.applyEnv(env(map[string]string{key: val}))
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestParseSeconds(t *testing.T) {
	d, err := parseSeconds("2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
	d, err = parseSeconds("30")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"PORT":                 func(c *Config) { c.Port = "" },
		"VRPTW_SOLVER":         func(c *Config) { c.Solver.Default = "" },
		"VRPTW_TIME_LIMIT":     func(c *Config) { c.Solver.Options.TimeLimit = -time.Second },
		"RATE_BURST":           func(c *Config) { c.Rate.RPS, c.Rate.Burst = 5, 0 },
		"WEBHOOK_MAX_ATTEMPTS": func(c *Config) { c.Webhooks.MaxAttempts = 0 },
		"AUTH_HMAC_SECRET":     func(c *Config) { c.Auth.Mode = "hmac" },
		"AUTH_MODE":            func(c *Config) { c.Auth.Mode = "ldap" },
		"VRPTW_WORKERS":        func(c *Config) { c.Workers.Count = 0 },
	}
	for key, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		err := cfg.Validate()
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "vrptw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
solver:
  default: glpk
  tightBigM: true
  options:
    timeLimit: 45s
    gap: 0.01
    threads: 2
workers:
  count: 4
  queue: 8
`), 0o600))
	t.Setenv("PORT", "")
	t.Setenv("VRPTW_SOLVER", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "glpk", cfg.Solver.Default)
	assert.True(t, cfg.Solver.TightBigM)
	assert.Equal(t, 45*time.Second, cfg.Solver.Options.TimeLimit)
	assert.Equal(t, 0.01, cfg.Solver.Options.Gap)
	assert.Equal(t, 4, cfg.Workers.Count)

	t.Setenv("VRPTW_SOLVER", "highs")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "highs", cfg.Solver.Default)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VRPTW_WORKERS=6\n"), 0o600))
	t.Setenv("VRPTW_WORKERS", "")
	os.Unsetenv("VRPTW_WORKERS")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers.Count)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solvr: cbc\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
