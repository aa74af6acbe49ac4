// Package config loads pipeline configuration from .env, environment
// variables (prefix BANKDATA_) and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/bankdata-pipeline/internal/categorize"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
	"github.com/dvloznov/bankdata-pipeline/internal/trend"
	"github.com/dvloznov/bankdata-pipeline/internal/warehouse"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// BANKDATA_STORAGE_BUCKET for storage.bucket.
const EnvPrefix = "BANKDATA"

// Classifier kinds.
const (
	ClassifierNaiveBayes = "naive_bayes"
	ClassifierGemini     = "gemini"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type GCPConfig struct {
	Project string `mapstructure:"project"`
}

type StorageConfig struct {
	Bucket          string   `mapstructure:"bucket"`
	SourceFiles     []string `mapstructure:"source_files"`
	ProcessedPrefix string   `mapstructure:"processed_prefix"`
}

type WarehouseConfig struct {
	Dataset          string `mapstructure:"dataset"`
	MainTable        string `mapstructure:"main_table"`
	TrendTable       string `mapstructure:"trend_table"`
	MainDisposition  string `mapstructure:"main_disposition"`
	TrendDisposition string `mapstructure:"trend_disposition"`
}

type CategorizeConfig struct {
	Strategy string            `mapstructure:"strategy"`
	Rules    []categorize.Rule `mapstructure:"rules"`
}

type ClassifierConfig struct {
	Kind        string        `mapstructure:"kind"`
	Artifact    string        `mapstructure:"artifact"`
	GeminiModel string        `mapstructure:"gemini_model"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type InstitutionsConfig struct {
	Known    []string `mapstructure:"known"`
	Fallback string   `mapstructure:"fallback"`
}

type TrendConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type NotionConfig struct {
	Token           string `mapstructure:"token"`
	TrendDatabaseID string `mapstructure:"trend_database_id"`
	DryRun          bool   `mapstructure:"dry_run"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type APIConfig struct {
	Port      string `mapstructure:"port"`
	QueueSize int    `mapstructure:"queue_size"`
}

// Config is the full application configuration.
type Config struct {
	GCP          GCPConfig          `mapstructure:"gcp"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Warehouse    WarehouseConfig    `mapstructure:"warehouse"`
	Categorize   CategorizeConfig   `mapstructure:"categorize"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Institutions InstitutionsConfig `mapstructure:"institutions"`
	Trend        TrendConfig        `mapstructure:"trend"`
	Notion       NotionConfig       `mapstructure:"notion"`
	Log          LogConfig          `mapstructure:"log"`
	API          APIConfig          `mapstructure:"api"`
}

// SetDefaults registers every key with its default so environment variables
// are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gcp.project", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.source_files", []string{})
	v.SetDefault("storage.processed_prefix", "")
	v.SetDefault("warehouse.dataset", "")
	v.SetDefault("warehouse.main_table", "bank_data")
	v.SetDefault("warehouse.trend_table", "category_trend")
	v.SetDefault("warehouse.main_disposition", string(warehouse.Truncate))
	v.SetDefault("warehouse.trend_disposition", string(warehouse.Append))
	v.SetDefault("categorize.strategy", categorize.StrategyRules)
	v.SetDefault("classifier.kind", ClassifierNaiveBayes)
	v.SetDefault("classifier.artifact", "")
	v.SetDefault("classifier.gemini_model", "gemini-2.5-flash")
	v.SetDefault("classifier.cache_ttl", 6*time.Hour)
	v.SetDefault("institutions.known", []string{"PKO_BPKOPLPW", "MBANK_RETAIL_BREXPLPW"})
	v.SetDefault("institutions.fallback", "")
	v.SetDefault("trend.timezone", trend.DefaultTimezone)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.trend_database_id", "")
	v.SetDefault("notion.dry_run", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatConsole)
	v.SetDefault("api.port", "8080")
	v.SetDefault("api.queue_size", 16)
}

// Load reads .env (if present), the environment and configFile into v and
// returns the decoded configuration. An empty configFile searches for
// config.yaml in the working directory; a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Load: reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding config: %w", err)
	}
	cfg.Storage.SourceFiles = splitList(cfg.Storage.SourceFiles)
	cfg.Institutions.Known = splitList(cfg.Institutions.Known)

	return &cfg, nil
}

// splitList trims entries and expands comma-separated values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate checks the configuration for a pipeline run. Every problem is
// reported, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.GCP.Project == "" {
		invalid("gcp.project is required")
	}
	if c.Storage.Bucket == "" {
		invalid("storage.bucket is required")
	}
	if c.Warehouse.Dataset == "" {
		invalid("warehouse.dataset is required")
	}
	if _, err := c.MainDisposition(); err != nil {
		invalid("warehouse.main_disposition: %v", err)
	}
	if _, err := c.TrendDisposition(); err != nil {
		invalid("warehouse.trend_disposition: %v", err)
	}

	switch strings.ToLower(c.Categorize.Strategy) {
	case categorize.StrategyRules:
		if c.Categorize.Rules != nil {
			if _, err := categorize.NewRuleStrategy(c.Categorize.Rules); err != nil {
				invalid("categorize.rules: %v", err)
			}
		}
	case categorize.StrategyModel:
		switch c.Classifier.Kind {
		case ClassifierNaiveBayes:
			if c.Classifier.Artifact == "" {
				invalid("classifier.artifact is required for the %s classifier", ClassifierNaiveBayes)
			}
		case ClassifierGemini:
		default:
			invalid("unknown classifier.kind %q", c.Classifier.Kind)
		}
	default:
		invalid("unknown categorize.strategy %q", c.Categorize.Strategy)
	}

	if _, err := time.LoadLocation(c.Trend.Timezone); err != nil {
		invalid("trend.timezone: %v", err)
	}

	if c.API.QueueSize < 0 {
		invalid("api.queue_size must not be negative")
	}

	switch c.Log.Format {
	case logger.FormatConsole, logger.FormatJSON:
	default:
		invalid("unknown log.format %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// MainDisposition parses warehouse.main_disposition.
func (c *Config) MainDisposition() (warehouse.WriteDisposition, error) {
	return warehouse.ParseWriteDisposition(c.Warehouse.MainDisposition)
}

// TrendDisposition parses warehouse.trend_disposition.
func (c *Config) TrendDisposition() (warehouse.WriteDisposition, error) {
	return warehouse.ParseWriteDisposition(c.Warehouse.TrendDisposition)
}

// NotionEnabled reports whether trend rows are mirrored to Notion.
func (c *Config) NotionEnabled() bool {
	return c.Notion.Token != "" && c.Notion.TrendDatabaseID != ""
}

// LoggerOptions converts the log section for logger.NewWithOptions.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.Log.Level, Format: c.Log.Format}
}
