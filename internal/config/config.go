// Package config loads the timeledger configuration from a TOML file
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/timedock/timeledger/internal/payroll"
)

type Config struct {
	DataDir  string         `toml:"data_dir"`
	LogLevel string         `toml:"log_level"`
	Identity IdentityConfig `toml:"identity"`
	Payroll  PayrollConfig  `toml:"payroll"`
}

// IdentityConfig identifies the CLI user. The CLI is a single-user shell
// over the library, so the acting user comes from here.
type IdentityConfig struct {
	UserID    string `toml:"user_id"`
	CompanyID string `toml:"company_id"`
	Role      string `toml:"role"`
}

type PayrollConfig struct {
	WeeklyThreshold    float64 `toml:"weekly_threshold_hours"`
	OvertimeMultiplier float64 `toml:"overtime_multiplier"`
	Currency           string  `toml:"currency"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Identity: IdentityConfig{
			UserID:    "local",
			CompanyID: "local",
			Role:      "admin",
		},
		Payroll: PayrollConfig{
			WeeklyThreshold:    payroll.DefaultWeeklyThreshold,
			OvertimeMultiplier: payroll.DefaultOvertimeMultiplier,
			Currency:           "USD",
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "timeledger"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, falling back to defaults when it does not
// exist, and applies environment overrides on top.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if cfg.DataDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIMELEDGER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TIMELEDGER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TIMELEDGER_USER_ID"); v != "" {
		cfg.Identity.UserID = v
	}
	if v := os.Getenv("TIMELEDGER_COMPANY_ID"); v != "" {
		cfg.Identity.CompanyID = v
	}
	if v := os.Getenv("TIMELEDGER_CURRENCY"); v != "" {
		cfg.Payroll.Currency = v
	}
	if v := os.Getenv("TIMELEDGER_WEEKLY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Payroll.WeeklyThreshold = f
		}
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// Save writes the config back to disk, creating the directory if needed.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0644)
}
