package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-converter/internal/models"
	"github.com/insightdelivered/statement-converter/internal/writer"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "converter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, writer.FormatCSV, cfg.Format())
	assert.True(t, cfg.Output.SeparateDates)
	assert.True(t, cfg.Output.IncludeTimeZoneInDates)
	assert.False(t, cfg.Output.ExcludeAccountBalance)

	_, ok := cfg.BankType()
	assert.False(t, ok)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", loc.String())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
bank: commbank
timezone: Australia/Perth
output:
  format: json
  exclude_account_balance: true
  separate_dates: false
server:
  addr: ":9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	bank, ok := cfg.BankType()
	require.True(t, ok)
	assert.Equal(t, models.BankCommBank, bank)
	assert.Equal(t, writer.FormatJSON, cfg.Format())
	assert.True(t, cfg.Output.ExcludeAccountBalance)
	assert.False(t, cfg.Output.SeparateDates)
	// Keys not in the file keep their defaults.
	assert.True(t, cfg.Output.IncludeTimeZoneInDates)
	assert.Equal(t, 32, cfg.Server.BodyLimitMB)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeFile(t, `
bank: westpac
timezone: Mars/Olympus
output:
  format: pdf
server:
  body_limit_mb: 0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown bank "westpac"`)
	assert.Contains(t, err.Error(), "pdf")
	assert.Contains(t, err.Error(), "Mars/Olympus")
	assert.Contains(t, err.Error(), "body_limit_mb")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")

	_, err = Load(writeFile(t, "output: [not, a, map]"))
	assert.ErrorContains(t, err, "parsing config")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converter.yaml")
	cfg := Default()
	cfg.Bank = "ing_au"
	cfg.Output.Format = "xlsx"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
