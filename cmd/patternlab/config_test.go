package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"PATTERNLAB_LISTEN_ADDR",
	"PATTERNLAB_BASE_URL",
	"PATTERNLAB_LOG_LEVEL",
	"PATTERNLAB_LOG_FORMAT",
	"PATTERNLAB_TICK",
	"PATTERNLAB_MAX_VIEWS",
	"PATTERNLAB_VIEW_IDLE_TIMEOUT",
	"PATTERNLAB_TOPICS_DIR",
}

// isolateConfig points HOME at a temp dir and clears PATTERNLAB_* vars,
// including any a .env load sets during the test.
func isolateConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range configEnvKeys {
		if v, ok := os.LookupEnv(k); ok {
			t.Setenv(k, v)
		}
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range configEnvKeys {
			os.Unsetenv(k)
		}
	})
	return home
}

func writeSettings(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, ".patternlab")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json"), []byte(body), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateConfig(t)
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	cfg.resolveBaseURL()
	assert.Equal(t, "http://localhost:4200", cfg.BaseURL)
}

func TestLoadConfig_Layers(t *testing.T) {
	home := isolateConfig(t)
	writeSettings(t, home, `{"listen_addr": ":9000", "log_level": "warn", "tick": "2s", "max_views": 10}`)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PATTERNLAB_TICK=3s\nPATTERNLAB_LOG_FORMAT=json\n"), 0o644))
	t.Setenv("PATTERNLAB_LOG_FORMAT", "pretty")
	t.Setenv("PATTERNLAB_MAX_VIEWS", "32")
	t.Setenv("PATTERNLAB_VIEW_IDLE_TIMEOUT", "30s")

	cfg, err := loadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr, "settings.json over defaults")
	assert.Equal(t, "warn", cfg.LogLevel, "settings.json over defaults")
	assert.Equal(t, "3s", cfg.Tick, ".env over settings.json")
	assert.Equal(t, "pretty", cfg.LogFormat, "environment over .env")
	assert.Equal(t, 32, cfg.MaxViews, "environment over settings.json")
	idle, err := cfg.idleTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, idle)
}

func TestConfig_IdleTimeout(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"2m", 2 * time.Minute, false},
		{"0", 0, false},
		{"", 0, false},
		{"soon", 0, true},
		{"-5s", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := Config{ViewIdleTimeout: tt.in}
			got, err := cfg.idleTimeout()
			if tt.wantErr {
				assert.ErrorContains(t, err, "view_idle_timeout")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig_MissingEnvFile(t *testing.T) {
	isolateConfig(t)
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("malformed settings", func(t *testing.T) {
		home := isolateConfig(t)
		writeSettings(t, home, `{"listen_addr":`)
		_, err := loadConfig("")
		assert.ErrorContains(t, err, "settings.json")
	})

	t.Run("bad max views", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv("PATTERNLAB_MAX_VIEWS", "lots")
		_, err := loadConfig("")
		assert.ErrorContains(t, err, "PATTERNLAB_MAX_VIEWS")
	})
}

func TestDiffConfigs(t *testing.T) {
	old := defaultConfig()

	d := diffConfigs(old, old)
	assert.False(t, d.LogChanged)
	assert.False(t, d.TopicsChanged)
	assert.Empty(t, d.RestartNeeded)

	next := old
	next.LogLevel = "debug"
	next.TopicsDir = "./topics"
	next.ListenAddr = ":1"
	next.Tick = "1s"
	next.MaxViews = 1
	next.ViewIdleTimeout = "0"
	d = diffConfigs(old, next)
	assert.True(t, d.LogChanged)
	assert.True(t, d.TopicsChanged)
	assert.Equal(t, []string{"listen_addr", "tick", "max_views", "view_idle_timeout"}, d.RestartNeeded)
}
