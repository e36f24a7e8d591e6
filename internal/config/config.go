// Package config loads and saves fpd settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/MichelOvalle/fpd-daily-mk/internal/model"
	"github.com/MichelOvalle/fpd-daily-mk/internal/source"
)

// Config holds all fpd configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Columns    source.Columns   `toml:"columns"`
	Parsing    ParsingConfig    `toml:"parsing"`
	Risk       RiskConfig       `toml:"risk"`
	Server     ServerConfig     `toml:"server"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds dataset location and query defaults.
type GeneralConfig struct {
	Dataset        string `toml:"dataset"`
	MaturityMonths int    `toml:"maturity_months"`
	ExcludeLatest  bool   `toml:"exclude_latest"`
	MinVolume      int    `toml:"min_volume"`
}

// ParsingConfig controls normalization of raw extract values.
type ParsingConfig struct {
	DateLayout       string `toml:"date_layout"`
	Delimiter        string `toml:"delimiter"`
	DecimalSeparator string `toml:"decimal_separator"`
	OutcomeMode      string `toml:"outcome_mode"`
	OutcomeMarker    string `toml:"outcome_marker,omitempty"`
	// Empty non_payment_mode reads the secondary column with the outcome rule.
	NonPaymentMode   string `toml:"non_payment_mode,omitempty"`
	NonPaymentMarker string `toml:"non_payment_marker,omitempty"`
}

// RiskConfig holds the rate thresholds used for highlighting.
type RiskConfig struct {
	WatchRate float64 `toml:"watch_rate"`
	HighRate  float64 `toml:"high_rate"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr            string `toml:"addr"`
	PollIntervalSec int    `toml:"poll_interval_sec"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	opts := source.DefaultOptions()
	risk := model.DefaultRiskThresholds()
	return Config{
		General: GeneralConfig{
			MaturityMonths: 2,
			MinVolume:      5,
		},
		Columns: opts.Columns,
		Parsing: ParsingConfig{
			DateLayout:       opts.DateLayout,
			Delimiter:        opts.Delimiter,
			DecimalSeparator: opts.Decimal,
			OutcomeMode:      string(opts.Outcome.Mode),
		},
		Risk: RiskConfig{
			WatchRate: risk.Watch,
			HighRate:  risk.High,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8787",
			PollIntervalSec: 15,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fpd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fpd")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
// Environment overrides are applied on top.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides config values from FPD_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("FPD_DATASET"); v != "" {
		cfg.General.Dataset = v
	}
	if v := os.Getenv("FPD_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FPD_MATURITY_MONTHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FPD_MATURITY_MONTHS: %w", err)
		}
		cfg.General.MaturityMonths = n
	}
	if v := os.Getenv("FPD_OUTCOME_MODE"); v != "" {
		cfg.Parsing.OutcomeMode = v
	}
	return nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// SourceOptions converts the parsing settings for the loader.
func (c Config) SourceOptions() source.Options {
	return source.Options{
		Columns:    c.Columns,
		DateLayout: c.Parsing.DateLayout,
		Delimiter:  c.Parsing.Delimiter,
		Decimal:    c.Parsing.DecimalSeparator,
		Outcome: source.OutcomeRule{
			Mode:   source.OutcomeMode(c.Parsing.OutcomeMode),
			Marker: c.Parsing.OutcomeMarker,
		},
		NonPayment: source.OutcomeRule{
			Mode:   source.OutcomeMode(c.Parsing.NonPaymentMode),
			Marker: c.Parsing.NonPaymentMarker,
		},
	}
}

// Thresholds returns the configured risk thresholds.
func (c Config) Thresholds() model.RiskThresholds {
	return model.RiskThresholds{Watch: c.Risk.WatchRate, High: c.Risk.HighRate}
}

// Validate reports settings that would make every query fail.
func (c Config) Validate() error {
	if err := c.SourceOptions().Validate(); err != nil {
		return err
	}
	if c.Columns.ID == "" || c.Columns.Origination == "" || c.Columns.Outcome == "" {
		return fmt.Errorf("columns id, origination and outcome must be set")
	}
	if c.General.MaturityMonths < 0 {
		return fmt.Errorf("maturity_months must be >= 0, got %d", c.General.MaturityMonths)
	}
	if c.General.MinVolume < 0 {
		return fmt.Errorf("min_volume must be >= 0, got %d", c.General.MinVolume)
	}
	return nil
}
