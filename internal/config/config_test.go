package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allocator.yaml")
	data := `
server:
  addr: ":9090"
columns:
  id_number: "ID NO"
  paid: "AMOUNT PAID"
tolerance: 0.001
retention:
  days: 7
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("OUTPUT_DIR", "/tmp/allocations")
	t.Setenv("RETENTION_DAYS", "14")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "ID NO", cfg.Columns.IDNumber)
	assert.Equal(t, "AMOUNT PAID", cfg.Columns.Paid)
	assert.Equal(t, "EMPLOYEE NUMBER", cfg.Columns.EmployeeNumber, "unset columns keep defaults")
	assert.Equal(t, 0.001, cfg.Tolerance)
	assert.Equal(t, "/tmp/allocations", cfg.OutputDir)
	assert.Equal(t, 14, cfg.Retention.Days)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("ALLOCATION_TOLERANCE", "tiny")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero tolerance", mutate: func(c *Config) { c.Tolerance = 0 }, errMsg: "tolerance"},
		{name: "blank column", mutate: func(c *Config) { c.Columns.InstalmentAmount = " " }, errMsg: "columns.instalment_amount"},
		{name: "paid equals diff", mutate: func(c *Config) { c.Columns.Diff = "paid" }, errMsg: "columns.paid and columns.diff"},
		{name: "negative retention", mutate: func(c *Config) { c.Retention.Days = -1 }, errMsg: "retention.days"},
		{name: "no output dir", mutate: func(c *Config) { c.OutputDir = "" }, errMsg: "output_dir"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=require", d.DSN())
}

func TestPath(t *testing.T) {
	t.Setenv("ALLOCATOR_CONFIG", "")
	assert.Equal(t, DefaultPath, Path())

	t.Setenv("ALLOCATOR_CONFIG", " /etc/allocator/prod.yaml ")
	assert.Equal(t, "/etc/allocator/prod.yaml", Path())
}
