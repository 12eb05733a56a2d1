package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sartorproj/stockarima/arima"
	"github.com/sartorproj/stockarima/timeseries"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Resample ResampleConfig `yaml:"resample"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Model    ModelConfig    `yaml:"model"`
	Output   OutputConfig   `yaml:"output"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type InputConfig struct {
	URI         string     `yaml:"uri"`
	Format      string     `yaml:"format"` // csv, xlsx or empty to detect from the URI
	DateColumn  string     `yaml:"date_column"`
	ValueColumn string     `yaml:"value_column"`
	DateFormat  string     `yaml:"date_format"`
	Delimiter   string     `yaml:"delimiter"`
	Sheet       string     `yaml:"sheet"`
	HTTP        HTTPConfig `yaml:"http"`
}

type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	MaxElapsed        time.Duration `yaml:"max_elapsed"`
}

type ResampleConfig struct {
	Frequency   string `yaml:"frequency"`
	WeekEnd     string `yaml:"week_end"`
	Aggregation string `yaml:"aggregation"`
}

type AnalysisConfig struct {
	ADFRegression string  `yaml:"adf_regression"`
	ADFAutolag    string  `yaml:"adf_autolag"`
	ADFMaxLag     int     `yaml:"adf_max_lag"` // negative selects the default
	ACFLags       int     `yaml:"acf_lags"`    // 0 selects the default
	Alpha         float64 `yaml:"alpha"`
}

type ModelConfig struct {
	Order     string  `yaml:"order"`
	Method    string  `yaml:"method"`
	Auto      bool    `yaml:"auto"`
	MaxP      int     `yaml:"max_p"`
	MaxQ      int     `yaml:"max_q"`
	Criterion string  `yaml:"criterion"`
	Stepwise  bool    `yaml:"stepwise"`
	Steps     int     `yaml:"steps"`
	Alpha     float64 `yaml:"alpha"`
	Holdout   int     `yaml:"holdout"`
	MaxIter   int     `yaml:"max_iter"`
}

type OutputConfig struct {
	PlotsDir    string `yaml:"plots_dir"`
	JSONPath    string `yaml:"json"`
	ParquetPath string `yaml:"parquet"`
	CSVPath     string `yaml:"csv"`
	Compression string `yaml:"compression"`
	Upload      bool   `yaml:"upload"`
	S3Prefix    string `yaml:"s3_prefix"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres or empty to disable
	DSN    string `yaml:"dsn"`
}

type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration of the weekly ARIMA(3,0,1) analysis.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			DateColumn:  "date",
			ValueColumn: "close",
			DateFormat:  "2006-01-02",
			Delimiter:   ",",
			HTTP: HTTPConfig{
				Timeout:           30 * time.Second,
				RequestsPerSecond: 2,
				BurstSize:         1,
				MaxElapsed:        time.Minute,
			},
		},
		Resample: ResampleConfig{
			Frequency:   "W",
			WeekEnd:     "sunday",
			Aggregation: "mean",
		},
		Analysis: AnalysisConfig{
			ADFRegression: "c",
			ADFAutolag:    "aic",
			ADFMaxLag:     -1,
			Alpha:         0.05,
		},
		Model: ModelConfig{
			Order:     "3,0,1",
			Method:    arima.MethodMLE,
			MaxP:      5,
			MaxQ:      5,
			Criterion: "aic",
			Stepwise:  true,
			Steps:     2,
			Alpha:     0.05,
			MaxIter:   2000,
		},
		Output: OutputConfig{
			Compression: "snappy",
		},
		Schedule: ScheduleConfig{
			Cron: "0 0 6 * * 1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. An empty path uses the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	cfg.Storage.S3.Bucket = strings.TrimSpace(cfg.Storage.S3.Bucket)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STOCKARIMA_INPUT"); v != "" {
		cfg.Input.URI = strings.TrimSpace(v)
	}
	if v := os.Getenv("STOCKARIMA_STEPS"); v != "" {
		if steps, err := strconv.Atoi(v); err == nil {
			cfg.Model.Steps = steps
		}
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.S3.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.S3.Region = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("STOCKARIMA_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
}

// Validate returns the first configuration problem found.
func (c *Config) Validate() error {
	if c.Input.URI == "" {
		return fmt.Errorf("input.uri is required")
	}
	switch strings.ToLower(c.Input.Format) {
	case "", "csv", "xlsx":
	default:
		return fmt.Errorf("input.format must be csv or xlsx, got %q", c.Input.Format)
	}
	if len([]rune(c.Input.Delimiter)) > 1 {
		return fmt.Errorf("input.delimiter must be a single character")
	}

	if _, err := c.ResampleRule(); err != nil {
		return err
	}
	if _, err := timeseries.ParseAggregation(c.Resample.Aggregation); err != nil {
		return fmt.Errorf("resample.aggregation: %w", err)
	}

	switch c.Analysis.ADFRegression {
	case "c", "ct", "n":
	default:
		return fmt.Errorf("analysis.adf_regression must be c, ct or n")
	}
	switch strings.ToLower(c.Analysis.ADFAutolag) {
	case "", "aic", "bic", "t-stat":
	default:
		return fmt.Errorf("analysis.adf_autolag must be aic, bic, t-stat or empty")
	}
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		return fmt.Errorf("analysis.alpha must be in (0, 1)")
	}

	if !c.Model.Auto {
		if _, err := arima.ParseOrder(c.Model.Order); err != nil {
			return fmt.Errorf("model.order: %w", err)
		}
	}
	switch c.Model.Method {
	case arima.MethodMLE, arima.MethodCSS:
	default:
		return fmt.Errorf("model.method must be mle or css")
	}
	switch strings.ToLower(c.Model.Criterion) {
	case "aic", "aicc", "bic":
	default:
		return fmt.Errorf("model.criterion must be aic, aicc or bic")
	}
	if c.Model.Steps < 1 {
		return fmt.Errorf("model.steps must be greater than 0")
	}
	if c.Model.Alpha <= 0 || c.Model.Alpha >= 1 {
		return fmt.Errorf("model.alpha must be in (0, 1)")
	}
	if c.Model.Holdout < 0 {
		return fmt.Errorf("model.holdout must not be negative")
	}

	switch c.Output.Compression {
	case "", "none", "snappy", "gzip", "zstd":
	default:
		return fmt.Errorf("output.compression %q is not supported", c.Output.Compression)
	}

	needsS3 := c.Output.Upload || strings.HasPrefix(c.Input.URI, "s3://")
	if needsS3 && c.Storage.S3.Region == "" {
		return fmt.Errorf("storage.s3.region is required for s3 input or upload")
	}
	if c.Output.Upload {
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when output.upload is set")
		}
		if !isValidS3Bucket(c.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", c.Storage.S3.Bucket)
		}
	}

	switch c.Database.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when database.driver is set")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}

	return nil
}

// ResampleRule converts the resample section into a timeseries.Rule.
func (c *Config) ResampleRule() (timeseries.Rule, error) {
	freq, err := timeseries.ParseFrequency(c.Resample.Frequency)
	if err != nil {
		return timeseries.Rule{}, fmt.Errorf("resample.frequency: %w", err)
	}
	rule := timeseries.Rule{Frequency: freq, WeekEnd: time.Sunday}
	if c.Resample.WeekEnd != "" {
		day, ok := weekdays[strings.ToLower(c.Resample.WeekEnd)]
		if !ok {
			return timeseries.Rule{}, fmt.Errorf("resample.week_end: unknown weekday %q", c.Resample.WeekEnd)
		}
		rule.WeekEnd = day
	}
	return rule, nil
}

// CSVOptions converts the input section into loader options.
func (c *Config) CSVOptions() *timeseries.CSVOptions {
	opts := timeseries.DefaultCSVOptions()
	if c.Input.DateColumn != "" {
		opts.DateColumn = c.Input.DateColumn
	}
	if c.Input.ValueColumn != "" {
		opts.ValueColumn = c.Input.ValueColumn
	}
	if c.Input.DateFormat != "" {
		opts.DateFormat = c.Input.DateFormat
	}
	if r := []rune(c.Input.Delimiter); len(r) == 1 {
		opts.Delimiter = r[0]
	}
	return opts
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
