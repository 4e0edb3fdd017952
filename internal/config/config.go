// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Dump     DumpConfig     `mapstructure:"dump"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SiteConfig points the scraper at the target classifieds site.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	SearchURL string `mapstructure:"search_url"`
}

// ScrapeConfig governs pagination depth and request pacing.
type ScrapeConfig struct {
	MaxPages      int `mapstructure:"max_pages"`
	MaxConcurrent int `mapstructure:"max_concurrent"`
	DelayMs       int `mapstructure:"delay_ms"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ScheduleConfig sets the daily job times, as HH:MM in the given zone.
type ScheduleConfig struct {
	ScrapeTime string `mapstructure:"scrape_time"`
	DumpTime   string `mapstructure:"dump_time"`
	Timezone   string `mapstructure:"timezone"`
}

// DumpConfig controls database dump output and retention.
type DumpConfig struct {
	Dir  string `mapstructure:"dir"`
	Keep int    `mapstructure:"keep"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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
	v.SetDefault("site.base_url", "https://auto.ria.com")
	v.SetDefault("site.search_url", "https://auto.ria.com/uk/car/used/")
	v.SetDefault("scrape.max_pages", 10)
	v.SetDefault("scrape.max_concurrent", 3)
	v.SetDefault("scrape.delay_ms", 1500)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "")
	// Empty defaults still register the keys, so environment overrides
	// reach Unmarshal.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("schedule.scrape_time", "12:00")
	v.SetDefault("schedule.dump_time", "12:00")
	v.SetDefault("schedule.timezone", "Europe/Kyiv")
	v.SetDefault("dump.dir", "dumps")
	v.SetDefault("dump.keep", 7)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if c.Site.SearchURL == "" {
		return fmt.Errorf("site.search_url must be set")
	}
	if c.Scrape.MaxPages <= 0 {
		return fmt.Errorf("scrape.max_pages must be > 0")
	}
	if c.Scrape.MaxConcurrent <= 0 {
		return fmt.Errorf("scrape.max_concurrent must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if _, _, err := ParseClock(c.Schedule.ScrapeTime); err != nil {
		return fmt.Errorf("schedule.scrape_time: %w", err)
	}
	if _, _, err := ParseClock(c.Schedule.DumpTime); err != nil {
		return fmt.Errorf("schedule.dump_time: %w", err)
	}
	return nil
}

// Timeout converts the HTTP timeout config into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Delay converts the per-request pacing config into a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scrape.DelayMs) * time.Millisecond
}

// ParseClock parses an "HH:MM" wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
