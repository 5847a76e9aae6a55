package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all patternlab configuration.
// Priority: flags > env vars > .env file > settings.json > defaults.
type Config struct {
	ListenAddr      string `json:"listen_addr"`
	BaseURL         string `json:"base_url"`
	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
	Tick            string `json:"tick"`
	MaxViews        int    `json:"max_views"`
	ViewIdleTimeout string `json:"view_idle_timeout"`
	TopicsDir       string `json:"topics_dir"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":4200",
		LogLevel:        "info",
		LogFormat:       "text",
		Tick:            "1500ms",
		MaxViews:        256,
		ViewIdleTimeout: "2m",
	}
}

func patternlabDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".patternlab"
	}
	return filepath.Join(home, ".patternlab")
}

func settingsPath() string {
	return filepath.Join(patternlabDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(patternlabDir(), "patternlab.pid")
}

// loadConfig layers defaults, settings.json, envFile and PATTERNLAB_* vars.
// A missing settings.json or envFile is not an error; a malformed one is.
// Flags are applied by the caller.
func loadConfig(envFile string) (Config, error) {
	cfg := defaultConfig()

	// Layer 2: settings.json.
	if data, err := os.ReadFile(settingsPath()); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", settingsPath(), err)
		}
	}

	// Layer 3: .env. godotenv never overrides variables already set, so
	// the real environment keeps precedence.
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return cfg, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	// Layer 4: env vars override.
	if v := os.Getenv("PATTERNLAB_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PATTERNLAB_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PATTERNLAB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PATTERNLAB_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("PATTERNLAB_TICK"); v != "" {
		cfg.Tick = v
	}
	if v := os.Getenv("PATTERNLAB_MAX_VIEWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("PATTERNLAB_MAX_VIEWS: %w", err)
		}
		cfg.MaxViews = n
	}
	if v := os.Getenv("PATTERNLAB_VIEW_IDLE_TIMEOUT"); v != "" {
		cfg.ViewIdleTimeout = v
	}
	if v := os.Getenv("PATTERNLAB_TOPICS_DIR"); v != "" {
		cfg.TopicsDir = v
	}

	return cfg, nil
}

// idleTimeout parses view_idle_timeout. Zero disables closing idle views.
func (c *Config) idleTimeout() (time.Duration, error) {
	if c.ViewIdleTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ViewIdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("view_idle_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("view_idle_timeout: %s is negative", c.ViewIdleTimeout)
	}
	return d, nil
}

// resolveBaseURL derives base_url from listen_addr if empty.
func (c *Config) resolveBaseURL() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost" + c.ListenAddr
	}
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogChanged    bool
	TopicsChanged bool
	RestartNeeded []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel || old.LogFormat != new.LogFormat {
		d.LogChanged = true
	}
	if old.TopicsDir != new.TopicsDir {
		d.TopicsChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.BaseURL != new.BaseURL {
		d.RestartNeeded = append(d.RestartNeeded, "base_url")
	}
	if old.Tick != new.Tick {
		d.RestartNeeded = append(d.RestartNeeded, "tick")
	}
	if old.MaxViews != new.MaxViews {
		d.RestartNeeded = append(d.RestartNeeded, "max_views")
	}
	if old.ViewIdleTimeout != new.ViewIdleTimeout {
		d.RestartNeeded = append(d.RestartNeeded, "view_idle_timeout")
	}
	return d
}
