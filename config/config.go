// Package config loads bot configuration from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process-level configuration. Account email is the one
// required field; everything else has workable defaults.
type Config struct {
	Email        string `yaml:"email"`
	DashboardURL string `yaml:"dashboard_url"`
	Mobile       bool   `yaml:"mobile"`
	Headless     bool   `yaml:"headless"`

	LedgerEnabled bool   `yaml:"ledger_enabled"`
	RedisAddr     string `yaml:"redis_addr"`

	NATSURL     string `yaml:"nats_url"`
	MonitorAddr string `yaml:"monitor_addr"`

	DiagnosticsDir string `yaml:"diagnostics_dir"`

	HandlerTimeoutSec int `yaml:"handler_timeout_sec"`
	HandlerRetries    int `yaml:"handler_retries"`
	ClickAttempts     int `yaml:"click_attempts"`
	MaxTabs           int `yaml:"max_tabs"`
	MaxCandidates     int `yaml:"max_candidates"`

	CronSpec string `yaml:"cron_spec"`
}

// Default returns a config with workable defaults for everything optional.
func Default() Config {
	return Config{
		DashboardURL:      "https://rewards.bing.com",
		Headless:          true,
		LedgerEnabled:     true,
		RedisAddr:         "localhost:6379",
		DiagnosticsDir:    "/tmp/rewardsbot",
		HandlerTimeoutSec: 120,
		HandlerRetries:    2,
		ClickAttempts:     3,
		MaxTabs:           3,
		MaxCandidates:     6,
		CronSpec:          "0 9 * * *",
	}
}

// Load reads the YAML file at path (optional), overlays environment
// variables, and validates. A missing account email is the one fatal
// configuration error.
func Load(path string) (Config, error) {
	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load(".env")

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if cfg.Email == "" {
		return cfg, errors.New("account email is required (config email or REWARDS_EMAIL)")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("REWARDS_EMAIL", &cfg.Email)
	setString("REWARDS_DASHBOARD_URL", &cfg.DashboardURL)
	setBool("REWARDS_MOBILE", &cfg.Mobile)
	setBool("REWARDS_HEADLESS", &cfg.Headless)
	setBool("REWARDS_LEDGER_ENABLED", &cfg.LedgerEnabled)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("NATS_URL", &cfg.NATSURL)
	setString("MONITOR_ADDR", &cfg.MonitorAddr)
	setString("REWARDS_DIAGNOSTICS_DIR", &cfg.DiagnosticsDir)
	setInt("REWARDS_HANDLER_TIMEOUT_SEC", &cfg.HandlerTimeoutSec)
	setInt("REWARDS_HANDLER_RETRIES", &cfg.HandlerRetries)
	setInt("REWARDS_CLICK_ATTEMPTS", &cfg.ClickAttempts)
	setInt("REWARDS_MAX_TABS", &cfg.MaxTabs)
	setInt("REWARDS_MAX_CANDIDATES", &cfg.MaxCandidates)
	setString("REWARDS_CRON", &cfg.CronSpec)
}

// HandlerTimeout returns the handler timeout as a duration.
func (c Config) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutSec) * time.Second
}
