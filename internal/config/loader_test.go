package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsApply(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)

	check.NoError(t, err)
	check.Equal(t, "full", cfg.Mode)
	check.Equal(t, "auctionhouse", cfg.Database.Database)
	check.Equal(t, 8000, cfg.Server.Port)
	check.Equal(t, 15*time.Second, cfg.Lifecycle.SweepInterval.Duration)
	check.Equal(t, 10, cfg.Bids.RateLimit)
	check.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "sweep"
log_level = "debug"

[server]
port = 9001

[lifecycle]
sweep_interval = "1m"
sweep_batch = 25

[bids]
rate_limit = 50
rate_window = "2s"
`)

	cfg, err := Load(path)

	check.NoError(t, err)
	check.Equal(t, "sweep", cfg.Mode)
	check.Equal(t, "debug", cfg.LogLevel)
	check.Equal(t, 9001, cfg.Server.Port)
	check.Equal(t, time.Minute, cfg.Lifecycle.SweepInterval.Duration)
	check.Equal(t, 25, cfg.Lifecycle.SweepBatch)
	check.Equal(t, 50, cfg.Bids.RateLimit)
	check.Equal(t, 2*time.Second, cfg.Bids.RateWindow.Duration)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9001
`)

	t.Setenv("AUCTIOND_SERVER_PORT", "9002")
	t.Setenv("AUCTIOND_DATABASE_PASSWORD", "hunter2")
	t.Setenv("AUCTIOND_MODE", "serve")
	t.Setenv("AUCTIOND_LIFECYCLE_SWEEP_INTERVAL", "30s")
	t.Setenv("AUCTIOND_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("AUCTIOND_S3_ENABLED", "true")

	cfg, err := Load(path)

	check.NoError(t, err)
	check.Equal(t, 9002, cfg.Server.Port)
	check.Equal(t, "hunter2", cfg.Database.Password)
	check.Equal(t, "serve", cfg.Mode)
	check.Equal(t, 30*time.Second, cfg.Lifecycle.SweepInterval.Duration)
	check.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	check.True(t, cfg.S3.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	check.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	bad := func(mutate func(*Config)) error {
		cfg := Defaults()
		mutate(&cfg)
		return cfg.Validate()
	}

	check.Error(t, bad(func(c *Config) { c.Mode = "turbo" }))
	check.Error(t, bad(func(c *Config) { c.LogLevel = "loud" }))
	check.Error(t, bad(func(c *Config) { c.Server.Port = 0 }))
	check.Error(t, bad(func(c *Config) { c.Database.PoolMinConns = 99 }))
	check.Error(t, bad(func(c *Config) { c.Redis.Addr = "" }))
	check.Error(t, bad(func(c *Config) { c.Lifecycle.SweepInterval.Duration = 0 }))
	check.Error(t, bad(func(c *Config) { c.Bids.MaxRetries = 0 }))
	check.Error(t, bad(func(c *Config) {
		c.S3.Enabled = true
		c.S3.Bucket = ""
	}))
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "secret"
	cfg.Redis.Password = "secret"
	cfg.Server.APIKey = "secret"
	cfg.Notify.TelegramToken = "secret"

	red := RedactedConfig(&cfg)

	check.Equal(t, "***", red.Database.Password)
	check.Equal(t, "***", red.Redis.Password)
	check.Equal(t, "***", red.Server.APIKey)
	check.Equal(t, "***", red.Notify.TelegramToken)
	// The original is untouched.
	check.Equal(t, "secret", cfg.Database.Password)
	// Empty secrets stay empty rather than becoming placeholders.
	check.Equal(t, "", red.S3.SecretKey)
}
