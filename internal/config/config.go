// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/JakeFAU/webcrawler/internal/crawler"
	"github.com/JakeFAU/webcrawler/internal/report"
)

// AppName names the XDG config directory.
const AppName = "webcrawler"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	DB      DBConfig      `mapstructure:"db"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// CrawlerConfig holds the defaults for one crawl run.
type CrawlerConfig struct {
	StartPages       []string      `mapstructure:"start_pages"`
	MaxDepth         int           `mapstructure:"max_depth"`
	Timeout          time.Duration `mapstructure:"timeout"`
	PopularWordCount int           `mapstructure:"popular_word_count"`
	Parallelism      int           `mapstructure:"parallelism"`
	IgnoredURLs      []string      `mapstructure:"ignored_urls"`
	IgnoredWords     []string      `mapstructure:"ignored_words"`
}

// FetcherConfig configures the HTTP page fetcher.
type FetcherConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
	FileRoot       string        `mapstructure:"file_root"`
}

// OutputConfig says where the crawl result and profile data go.
type OutputConfig struct {
	ResultPath  string `mapstructure:"result_path"`
	ProfilePath string `mapstructure:"profile_path"`
	Format      string `mapstructure:"format"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	Workers        int           `mapstructure:"workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig controls access to the run archive database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig sets where the service stores rendered run reports.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TracingConfig controls OpenTelemetry spans. Spans are exported to Cloud
// Trace only when ProjectID is set.
type TracingConfig struct {
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. With an empty path,
// ./config.yaml and the XDG config directory are searched.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
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

// Dir returns the XDG config directory for the crawler.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.start_pages", []string{})
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.timeout", 10*time.Second)
	v.SetDefault("crawler.popular_word_count", 10)
	v.SetDefault("crawler.parallelism", runtime.NumCPU())
	v.SetDefault("crawler.ignored_urls", []string{})
	v.SetDefault("crawler.ignored_words", []string{})
	v.SetDefault("fetcher.user_agent", "webcrawler/0.1")
	v.SetDefault("fetcher.request_timeout", 15*time.Second)
	v.SetDefault("fetcher.max_body_bytes", 10<<20)
	v.SetDefault("fetcher.file_root", "/")
	v.SetDefault("output.result_path", "")
	v.SetDefault("output.profile_path", "")
	v.SetDefault("output.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.queue_depth", 64)
	v.SetDefault("server.workers", 2)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "crawl_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("tracing.project_id", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch {
	case c.Crawler.MaxDepth < 0:
		return invalid("crawler.max_depth", "must be >= 0")
	case c.Crawler.Timeout < 0:
		return invalid("crawler.timeout", "must be >= 0")
	case c.Crawler.PopularWordCount < 0:
		return invalid("crawler.popular_word_count", "must be >= 0")
	case c.Crawler.Parallelism <= 0:
		return invalid("crawler.parallelism", "must be > 0")
	case c.Fetcher.RequestTimeout <= 0:
		return invalid("fetcher.request_timeout", "must be > 0")
	case c.Fetcher.MaxBodyBytes < 0:
		return invalid("fetcher.max_body_bytes", "must be >= 0")
	case c.Server.Port <= 0:
		return invalid("server.port", "must be > 0")
	case c.Server.QueueDepth <= 0:
		return invalid("server.queue_depth", "must be > 0")
	case c.Server.Workers <= 0:
		return invalid("server.workers", "must be > 0")
	case c.Auth.Enabled && c.Auth.APIKey == "":
		return invalid("auth.api_key", "must be set when auth is enabled")
	case c.PubSub.TopicName != "" && c.PubSub.ProjectID == "":
		return invalid("pubsub.project_id", "must be set when pubsub.topic_name is set")
	case c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1:
		return invalid("tracing.sample_ratio", "must be between 0 and 1")
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if _, err := crawler.CompilePatterns("crawler.ignored_urls", c.Crawler.IgnoredURLs); err != nil {
		return err
	}
	if _, err := crawler.CompilePatterns("crawler.ignored_words", c.Crawler.IgnoredWords); err != nil {
		return err
	}
	return nil
}

// CrawlRequest compiles the crawler section into a validated request.
func (c Config) CrawlRequest() (crawler.Request, error) {
	req, err := c.RunParameters().Request()
	if err != nil {
		return crawler.Request{}, err
	}
	// The float wire form can drift by a nanosecond; keep the configured value.
	req.Timeout = c.Crawler.Timeout
	return req, nil
}

// RunParameters renders the crawler section in wire form. Service
// submissions start from these and override what the client sends.
func (c Config) RunParameters() crawler.RunParameters {
	return crawler.RunParameters{
		StartPages:       append([]string(nil), c.Crawler.StartPages...),
		MaxDepth:         c.Crawler.MaxDepth,
		TimeoutSeconds:   c.Crawler.Timeout.Seconds(),
		PopularWordCount: c.Crawler.PopularWordCount,
		Parallelism:      c.Crawler.Parallelism,
		IgnoredURLs:      append([]string(nil), c.Crawler.IgnoredURLs...),
	}
}

// IgnoredWords compiles the ignored-word patterns for the parser.
func (c Config) IgnoredWords() ([]*regexp.Regexp, error) {
	return crawler.CompilePatterns("crawler.ignored_words", c.Crawler.IgnoredWords)
}

func invalid(field, reason string) error {
	return &crawler.ConfigurationError{Field: field, Reason: reason}
}
