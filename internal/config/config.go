// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/journal-harvester/internal/logging"
)

// Storage backends.
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendMemory   = "memory"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Archive   ArchiveConfig   `mapstructure:"archive"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	DB        DBConfig        `mapstructure:"db"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Logging   logging.Config  `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ArchiveConfig locates the archive listing.
type ArchiveConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Pages   int    `mapstructure:"pages"`
}

// HTTPConfig configures the fetcher and its retry policy.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	BackoffMs      int    `mapstructure:"backoff_ms"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	RespectRobots  bool   `mapstructure:"respect_robots"`

	// RequestsPerSecond caps requests per host; 0 disables the limiter.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Backend      string `mapstructure:"backend"`
	ArticlesFile string `mapstructure:"articles_file"`
	IssuesFile   string `mapstructure:"issues_file"`
}

// DBConfig controls access to the relational record store.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	ArticlesTable string `mapstructure:"articles_table"`
	IssuesTable   string `mapstructure:"issues_table"`
	MaxConns      int32  `mapstructure:"max_conns"`
}

// ArtifactsConfig selects where downloaded files go.
type ArtifactsConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment. An empty path skips the file.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith is Load on a caller-provided Viper instance, so CLI flags bound to
// it take precedence over file and environment values.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("archive.base_url", "https://firstmonday.org/ojs/index.php/fm/issue/archive")
	v.SetDefault("archive.pages", 8)
	v.SetDefault("http.user_agent", "Mozilla/5.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.backoff_ms", 1000)
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("store.backend", BackendCSV)
	v.SetDefault("store.articles_file", "articles.csv")
	v.SetDefault("store.issues_file", "issues.csv")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.articles_table", "articles")
	v.SetDefault("db.issues_table", "issues")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("artifacts.backend", BackendLocal)
	v.SetDefault("artifacts.dir", "pdfs")
	v.SetDefault("artifacts.gcs_bucket", "")
	v.SetDefault("artifacts.prefix", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Archive.BaseURL) == "" {
		return fmt.Errorf("archive.base_url is required")
	}
	if c.Archive.Pages <= 0 {
		return fmt.Errorf("archive.pages must be > 0")
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.BackoffMs < 0 {
		return fmt.Errorf("http.backoff_ms must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	switch c.Store.Backend {
	case BackendCSV:
		if c.Store.ArticlesFile == "" || c.Store.IssuesFile == "" {
			return fmt.Errorf("store.articles_file and store.issues_file are required for the csv backend")
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	switch c.Artifacts.Backend {
	case BackendLocal:
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir is required for the local backend")
		}
	case BackendGCS:
		if c.Artifacts.GCSBucket == "" {
			return fmt.Errorf("artifacts.gcs_bucket must be set when artifacts.backend is gcs")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("artifacts.backend %q is not supported", c.Artifacts.Backend)
	}
	return nil
}

// Timeout is the per-request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Backoff is the base wait between fetch attempts.
func (c Config) Backoff() time.Duration {
	return time.Duration(c.HTTP.BackoffMs) * time.Millisecond
}
