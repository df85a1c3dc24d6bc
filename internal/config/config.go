// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Headless HeadlessConfig `mapstructure:"headless"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScraperConfig governs the crawl pipeline.
type ScraperConfig struct {
	BaseURL          string   `mapstructure:"base_url"`
	UserAgent        string   `mapstructure:"user_agent"`
	Countries        []string `mapstructure:"countries"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	StoryConcurrency int      `mapstructure:"story_concurrency"`
}

// ProxyConfig holds the credentials injected into every proxy endpoint.
type ProxyConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DBConfig controls access to the document store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	TopicTable   string `mapstructure:"topic_table"`
	ArticleTable string `mapstructure:"article_table"`
}

// PubSubConfig identifies the task queue endpoints.
type PubSubConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

// ScheduleConfig sets the orchestrator tick cadence.
type ScheduleConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// ArchiveConfig configures the per-country scrape journal.
type ArchiveConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Bucket       string `mapstructure:"bucket"`
	FlushSeconds int    `mapstructure:"flush_seconds"`
}

// HeadlessConfig configures the rendered-fetch fallback.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSCRAWLER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("scraper.base_url", "https://news.google.com")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	v.SetDefault("scraper.countries", []string{"Canada", "USA", "UK"})
	v.SetDefault("scraper.timeout_seconds", 30)
	v.SetDefault("scraper.story_concurrency", 16)
	v.SetDefault("db.topic_table", "news_topics")
	v.SetDefault("db.article_table", "news_articles")
	v.SetDefault("schedule.interval_minutes", 60)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.flush_seconds", 60)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 25)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if len(c.Scraper.Countries) == 0 {
		return fmt.Errorf("scraper.countries must not be empty")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.StoryConcurrency <= 0 {
		return fmt.Errorf("scraper.story_concurrency must be > 0")
	}
	if c.Schedule.IntervalMinutes <= 0 {
		return fmt.Errorf("schedule.interval_minutes must be > 0")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket must be set when archive is enabled")
	}
	return nil
}

// FetchTimeout converts the scraper timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// TickInterval converts the schedule cadence into a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}
