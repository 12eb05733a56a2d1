package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sartorproj/stockarima/arima"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTempConfig writes content to a config file in a temp dir and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STOCKARIMA_INPUT", "STOCKARIMA_STEPS", "STOCKARIMA_CRON",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION",
		"S3_BUCKET", "S3_ENDPOINT", "DATABASE_DRIVER", "DATABASE_DSN",
	} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "3,0,1", cfg.Model.Order)
	assert.Equal(t, 2, cfg.Model.Steps)
	assert.Equal(t, arima.MethodMLE, cfg.Model.Method)
	assert.Equal(t, "c", cfg.Analysis.ADFRegression)
	assert.Equal(t, "aic", cfg.Analysis.ADFAutolag)
	assert.Equal(t, "W", cfg.Resample.Frequency)
	assert.Equal(t, "mean", cfg.Resample.Aggregation)

	// Only the input is missing.
	assert.EqualError(t, cfg.Validate(), "input.uri is required")
	cfg.Input.URI = "prices.csv"
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `input:
  uri: "s3://market-data/prices/AAPL.csv"
  http:
    timeout: 5s
resample:
  week_end: friday
model:
  order: "2,0,1"
  steps: 4
storage:
  s3:
    bucket: " market-data "
    region: us-east-1
database:
  driver: sqlite
  dsn: runs.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "s3://market-data/prices/AAPL.csv", cfg.Input.URI)
	assert.Equal(t, 5*time.Second, cfg.Input.HTTP.Timeout)
	assert.Equal(t, 2.0, cfg.Input.HTTP.RequestsPerSecond, "unset keys keep defaults")
	assert.Equal(t, "2,0,1", cfg.Model.Order)
	assert.Equal(t, 4, cfg.Model.Steps)
	assert.Equal(t, "market-data", cfg.Storage.S3.Bucket)
	assert.Equal(t, "close", cfg.Input.ValueColumn)

	rule, err := cfg.ResampleRule()
	require.NoError(t, err)
	assert.Equal(t, time.Friday, rule.WeekEnd)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOCKARIMA_INPUT", "https://example.com/prices.csv")
	t.Setenv("STOCKARIMA_STEPS", "6")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("DATABASE_DSN", "postgres://localhost/runs")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/prices.csv", cfg.Input.URI)
	assert.Equal(t, 6, cfg.Model.Steps)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3.Region)
	assert.Equal(t, "postgres://localhost/runs", cfg.Database.DSN)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Load(writeTempConfig(t, "model: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad format", func(c *Config) { c.Input.Format = "json" }, "input.format"},
		{"bad delimiter", func(c *Config) { c.Input.Delimiter = ";;" }, "input.delimiter"},
		{"bad frequency", func(c *Config) { c.Resample.Frequency = "hourly" }, "resample.frequency"},
		{"bad week end", func(c *Config) { c.Resample.WeekEnd = "someday" }, "resample.week_end"},
		{"bad aggregation", func(c *Config) { c.Resample.Aggregation = "median" }, "resample.aggregation"},
		{"bad regression", func(c *Config) { c.Analysis.ADFRegression = "ctt" }, "analysis.adf_regression"},
		{"bad autolag", func(c *Config) { c.Analysis.ADFAutolag = "hqic" }, "analysis.adf_autolag"},
		{"bad order", func(c *Config) { c.Model.Order = "3,0" }, "model.order"},
		{"bad method", func(c *Config) { c.Model.Method = "ols" }, "model.method"},
		{"zero steps", func(c *Config) { c.Model.Steps = 0 }, "model.steps"},
		{"bad alpha", func(c *Config) { c.Model.Alpha = 1 }, "model.alpha"},
		{"bad compression", func(c *Config) { c.Output.Compression = "brotli" }, "output.compression"},
		{"upload without bucket", func(c *Config) {
			c.Output.Upload = true
			c.Storage.S3.Region = "us-east-1"
		}, "storage.s3.bucket"},
		{"invalid bucket", func(c *Config) {
			c.Output.Upload = true
			c.Storage.S3.Region = "us-east-1"
			c.Storage.S3.Bucket = "Bad_Bucket"
		}, "is invalid"},
		{"s3 input without region", func(c *Config) { c.Input.URI = "s3://bucket/key.csv" }, "storage.s3.region"},
		{"database without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"unknown driver", func(c *Config) {
			c.Database.Driver = "mysql"
			c.Database.DSN = "x"
		}, "database.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Input.URI = "prices.csv"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAutoSkipsOrder(t *testing.T) {
	cfg := Default()
	cfg.Input.URI = "prices.csv"
	cfg.Model.Order = ""
	cfg.Model.Auto = true
	assert.NoError(t, cfg.Validate())
}

func TestCSVOptions(t *testing.T) {
	cfg := Default()
	cfg.Input.ValueColumn = "Adj Close"
	cfg.Input.Delimiter = ";"

	opts := cfg.CSVOptions()
	assert.Equal(t, "date", opts.DateColumn)
	assert.Equal(t, "Adj Close", opts.ValueColumn)
	assert.Equal(t, ';', opts.Delimiter)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STOCKARIMA_TEST_VAR=from-file\n"), 0o644))

	t.Setenv("STOCKARIMA_TEST_VAR", "")
	os.Unsetenv("STOCKARIMA_TEST_VAR")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("STOCKARIMA_TEST_VAR"))
}
