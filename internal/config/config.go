package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file at the root of a ledger directory.
const FileName = "ledger.yaml"

// Config represents the top-level ledger.yaml configuration.
type Config struct {
	Business       BusinessConfig       `yaml:"business"`
	Ledger         LedgerConfig         `yaml:"ledger"`
	Storage        StorageConfig        `yaml:"storage"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Log            LogConfig            `yaml:"log"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`   // selects the default chart of accounts
	Locale string `yaml:"locale"` // display labels: "en" or "id"
}

// LedgerConfig controls posting.
type LedgerConfig struct {
	CurrencyPrecision   int32  `yaml:"currency_precision"`
	DefaultDocumentType string `yaml:"default_document_type"`
}

// StorageConfig selects the ledger store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "bolt" or "postgres"
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// ReconciliationConfig tunes auto-matching.
type ReconciliationConfig struct {
	FuzzyDateDays    int     `yaml:"fuzzy_date_days"`
	KeywordThreshold float64 `yaml:"keyword_threshold"`
	MinTokenLength   int     `yaml:"min_token_length"`
	LookbackDays     int     `yaml:"lookback_days"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Storage drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Load reads a ledger.yaml file from disk. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("", "")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default(businessName, businessType string) *Config {
	if businessType == "" {
		businessType = "trading"
	}
	return &Config{
		Business: BusinessConfig{
			Name:   businessName,
			Type:   businessType,
			Locale: "en",
		},
		Ledger: LedgerConfig{
			CurrencyPrecision:   2,
			DefaultDocumentType: "JV",
		},
		Storage: StorageConfig{
			Driver: DriverBolt,
			Path:   "ledger.db",
		},
		Reconciliation: ReconciliationConfig{
			FuzzyDateDays:    3,
			KeywordThreshold: 0.5,
			MinTokenLength:   3,
			LookbackDays:     60,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment. Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from LEDGER_* environment variables.
func ApplyEnv(cfg *Config) error {
	cfg.Storage.Driver = getEnv("LEDGER_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Path = getEnv("LEDGER_DB_PATH", cfg.Storage.Path)
	cfg.Storage.DSN = getEnv("LEDGER_DB_DSN", cfg.Storage.DSN)
	cfg.Log.Level = getEnv("LEDGER_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LEDGER_LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.Reconciliation.FuzzyDateDays, err = getEnvAsInt("LEDGER_FUZZY_DATE_DAYS", cfg.Reconciliation.FuzzyDateDays); err != nil {
		return err
	}
	if cfg.Reconciliation.KeywordThreshold, err = getEnvAsFloat("LEDGER_KEYWORD_THRESHOLD", cfg.Reconciliation.KeywordThreshold); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the ledger cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if p := c.Ledger.CurrencyPrecision; p < 0 || p > 8 {
		problems = append(problems, fmt.Sprintf("ledger.currency_precision %d outside 0..8", p))
	}
	if c.Ledger.DefaultDocumentType == "" {
		problems = append(problems, "ledger.default_document_type is required")
	}
	switch c.Storage.Driver {
	case DriverBolt:
		if c.Storage.Path == "" {
			problems = append(problems, "storage.path is required for the bolt driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			problems = append(problems, "storage.dsn is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q is not bolt or postgres", c.Storage.Driver))
	}
	r := c.Reconciliation
	if r.FuzzyDateDays < 0 {
		problems = append(problems, "reconciliation.fuzzy_date_days must not be negative")
	}
	if r.KeywordThreshold <= 0 || r.KeywordThreshold > 1 {
		problems = append(problems, fmt.Sprintf("reconciliation.keyword_threshold %g outside (0, 1]", r.KeywordThreshold))
	}
	if r.MinTokenLength < 1 {
		problems = append(problems, "reconciliation.min_token_length must be at least 1")
	}
	if r.LookbackDays < 0 {
		problems = append(problems, "reconciliation.lookback_days must not be negative")
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		problems = append(problems, fmt.Sprintf("log.format %q is not console or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return f, nil
}
