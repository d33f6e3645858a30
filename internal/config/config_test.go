package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default("Test Biz", "trading")
	cfg.Storage.Driver = DriverPostgres
	cfg.Storage.DSN = "postgres://ledger@localhost/ledger"
	cfg.Reconciliation.FuzzyDateDays = 5

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default("My Company", "")

	assert.Equal(t, "My Company", cfg.Business.Name)
	assert.Equal(t, "trading", cfg.Business.Type)
	assert.Equal(t, "en", cfg.Business.Locale)
	assert.Equal(t, int32(2), cfg.Ledger.CurrencyPrecision)
	assert.Equal(t, "JV", cfg.Ledger.DefaultDocumentType)
	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, "ledger.db", cfg.Storage.Path)
	assert.Equal(t, 3, cfg.Reconciliation.FuzzyDateDays)
	assert.InDelta(t, 0.5, cfg.Reconciliation.KeywordThreshold, 0.001)
	assert.Equal(t, 3, cfg.Reconciliation.MinTokenLength)
	assert.Equal(t, 60, cfg.Reconciliation.LookbackDays)
	assert.NoError(t, cfg.Validate())
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("business:\n  name: Toko Maju\nreconciliation:\n  fuzzy_date_days: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Toko Maju", cfg.Business.Name)
	assert.Equal(t, 7, cfg.Reconciliation.FuzzyDateDays)
	assert.InDelta(t, 0.5, cfg.Reconciliation.KeywordThreshold, 0.001)
	assert.Equal(t, int32(2), cfg.Ledger.CurrencyPrecision)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default("Test Biz", "trading")
	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "name: Test Biz")
	assert.Contains(t, contents, "currency_precision: 2")
	assert.Contains(t, contents, "driver: bolt")
	assert.Contains(t, contents, "keyword_threshold: 0.5")
	assert.NotContains(t, contents, "dsn:", "empty dsn is omitted")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LEDGER_STORAGE_DRIVER", "postgres")
	t.Setenv("LEDGER_DB_DSN", "postgres://localhost/ledger")
	t.Setenv("LEDGER_LOG_LEVEL", "debug")
	t.Setenv("LEDGER_FUZZY_DATE_DAYS", "4")
	t.Setenv("LEDGER_KEYWORD_THRESHOLD", "0.75")

	cfg := Default("x", "")
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/ledger", cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Reconciliation.FuzzyDateDays)
	assert.InDelta(t, 0.75, cfg.Reconciliation.KeywordThreshold, 0.001)
	assert.Equal(t, "ledger.db", cfg.Storage.Path, "unset variables leave values alone")
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	t.Setenv("LEDGER_FUZZY_DATE_DAYS", "three")
	err := ApplyEnv(Default("x", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_FUZZY_DATE_DAYS")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, ".env")), "missing file is fine")

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_TEST_ONLY_VALUE=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LEDGER_TEST_ONLY_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("LEDGER_TEST_ONLY_VALUE"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"precision", func(c *Config) { c.Ledger.CurrencyPrecision = 9 }, "currency_precision"},
		{"driver", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "storage.dsn"},
		{"bolt without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"negative tolerance", func(c *Config) { c.Reconciliation.FuzzyDateDays = -1 }, "fuzzy_date_days"},
		{"threshold zero", func(c *Config) { c.Reconciliation.KeywordThreshold = 0 }, "keyword_threshold"},
		{"threshold above one", func(c *Config) { c.Reconciliation.KeywordThreshold = 1.5 }, "keyword_threshold"},
		{"token length", func(c *Config) { c.Reconciliation.MinTokenLength = 0 }, "min_token_length"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("x", "")
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
