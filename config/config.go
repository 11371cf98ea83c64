// Package config handles coursewatch configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level coursewatch configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	Timetable TimetableConfig `yaml:"timetable"`
	Cache     CacheConfig     `yaml:"cache"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	SMTP      SMTPConfig      `yaml:"smtp"`
}

// TimetableConfig controls the browser-automation client.
type TimetableConfig struct {
	BrowserBin     string        `yaml:"browser_bin"`
	EntryURL       string        `yaml:"entry_url"`
	Term           string        `yaml:"term"`
	StepTimeout    time.Duration `yaml:"step_timeout"`
	ResultsTimeout time.Duration `yaml:"results_timeout"`
}

// CacheConfig controls the catalog cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// WatcherConfig controls the enrollment watcher.
type WatcherConfig struct {
	Interval        time.Duration `yaml:"interval"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	ExpireUnmatched time.Duration `yaml:"expire_unmatched"`
}

// SMTPConfig holds outbound email settings. Credentials normally arrive via
// SMTP_USERNAME / SMTP_PASSWORD rather than the file.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LoadFile reads a YAML configuration file and applies defaults. SMTP
// credentials in the environment override the file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8086"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Watcher.Interval <= 0 {
		c.Watcher.Interval = 5 * time.Minute
	}
	if c.Watcher.MaxConcurrent <= 0 {
		c.Watcher.MaxConcurrent = 2
	}
	if c.Timetable.StepTimeout <= 0 {
		c.Timetable.StepTimeout = 45 * time.Second
	}
	if c.Timetable.ResultsTimeout <= 0 {
		c.Timetable.ResultsTimeout = 120 * time.Second
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	if c.Timetable.EntryURL == "" {
		return fmt.Errorf("config: timetable.entry_url is required")
	}
	if c.Timetable.Term == "" {
		return fmt.Errorf("config: timetable.term is required")
	}
	return nil
}
