package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "culefilo.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "badger", cfg.Storage.Type)
	assert.Equal(t, 3, cfg.Search.TargetPlaces)
	assert.Equal(t, 4, cfg.Search.MaxPhotos)
	assert.Equal(t, 0, cfg.LLM.MaxRetries)
	assert.Equal(t, "you are a culinary expert assistant", cfg.LLM.SystemInstruction)
	assert.Equal(t, 200, cfg.PlacesAPI.PhotoMaxWidthPx)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfig(t, `
[server]
port = 9000

[search]
max_synonyms = 2
lease_ttl = "30s"
`)
	override := writeConfig(t, `
[server]
port = 9100

[storage]
type = "redis"
`)

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Search.MaxSynonyms)
	assert.Equal(t, 30*time.Second, cfg.Search.LeaseTTL)
	assert.Equal(t, "redis", cfg.Storage.Type)
	// untouched defaults survive
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
`)
	t.Setenv("CULEFILO_SERVER_PORT", "7000")
	t.Setenv("CULEFILO_LOG_OUTPUT", "stdout, ")
	t.Setenv("CULEFILO_LLM_PROVIDER", "CLAUDE")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"stdout"}, cfg.Logging.Output)
	assert.Equal(t, LLMProviderClaude, cfg.LLM.DefaultProvider)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	bad := writeConfig(t, `[server`)
	_, err = LoadFromFiles(bad)
	assert.Error(t, err)

	invalid := writeConfig(t, `
[storage]
type = "sqlite"
`)
	_, err = LoadFromFiles(invalid)
	assert.ErrorContains(t, err, "unsupported storage type")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero target", func(c *Config) { c.Search.TargetPlaces = 0 }, true},
		{"target above place limit", func(c *Config) { c.Search.TargetPlaces = 4 }, true},
		{"negative photos", func(c *Config) { c.Search.MaxPhotos = -1 }, true},
		{"zero lease", func(c *Config) { c.Search.LeaseTTL = 0 }, true},
		{"bad provider", func(c *Config) { c.LLM.DefaultProvider = "openai" }, true},
		{"bad schedule", func(c *Config) { c.Scheduler.SweepSchedule = "every minute" }, true},
		{"bad schedule ignored when disabled", func(c *Config) {
			c.Scheduler.Enabled = false
			c.Scheduler.SweepSchedule = "every minute"
		}, false},
		{"cron expression", func(c *Config) { c.Scheduler.SweepSchedule = "*/5 * * * *" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8080, cfg.Server.Port)

	ApplyFlagOverrides(cfg, 9999, "0.0.0.0")
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("config fallback", func(t *testing.T) {
		t.Setenv("CULEFILO_GEMINI_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "")
		key, err := ResolveAPIKey(ctx, nil, "gemini_api_key", "from-config")
		require.NoError(t, err)
		assert.Equal(t, "from-config", key)
	})

	t.Run("env wins", func(t *testing.T) {
		t.Setenv("GOOGLE_PLACES_API_KEY", "from-env")
		key, err := ResolveAPIKey(ctx, nil, "google_places_api_key", "from-config")
		require.NoError(t, err)
		assert.Equal(t, "from-env", key)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("CULEFILO_CLAUDE_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")
		_, err := ResolveAPIKey(ctx, nil, "anthropic_api_key", "")
		assert.Error(t, err)
	})
}
