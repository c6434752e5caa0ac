package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/viper"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Scheduler modes: the in-process timer, or a periodic asynq task picked up by workers.
const (
	SchedulerModeInProcess = "inprocess"
	SchedulerModeQueue     = "queue"
)

// Config holds application configuration loaded from config.yaml and environment variables
type Config struct {
	Env     string
	Port    string
	BaseURL string

	DatabaseURL string
	RedisURL    string

	LogLevel  string
	LogFormat string

	SchedulerEnabled       bool
	SchedulerMode          string
	SchedulerCheckInterval time.Duration
	ExternalCallTimeout    time.Duration
	FeedbackTTL            time.Duration

	CatalogPath    string
	FeedCacheTTL   time.Duration
	ScrapeFullText bool

	SummarizerURL    string
	SummarizerSecret string
	SummarizerStub   bool

	TTSURL    string
	TTSSecret string
	TTSVoice  string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	OperatorAPIKey    string
	EventsEnabled     bool
	FeedbackRateLimit float64
}

// keys maps viper keys to the environment variables that override them.
var keys = map[string]string{
	"env":                      "ENV",
	"port":                     "PORT",
	"base_url":                 "BASE_URL",
	"database.url":             "DATABASE_URL",
	"redis.url":                "REDIS_URL",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
	"scheduler.enabled":        "SCHEDULER_ENABLED",
	"scheduler.mode":           "SCHEDULER_MODE",
	"scheduler.check_interval": "SCHEDULER_CHECK_INTERVAL",
	"scheduler.call_timeout":   "EXTERNAL_CALL_TIMEOUT",
	"feedback.ttl":             "FEEDBACK_TTL",
	"feedback.rate_limit":      "FEEDBACK_RATE_LIMIT",
	"feeds.catalog_path":       "FEEDS_CATALOG_PATH",
	"feeds.cache_ttl":          "FEEDS_CACHE_TTL",
	"feeds.scrape_full_text":   "FEEDS_SCRAPE_FULL_TEXT",
	"summarizer.url":           "SUMMARIZER_URL",
	"summarizer.secret":        "SUMMARIZER_SECRET",
	"summarizer.stub":          "SUMMARIZER_STUB",
	"tts.url":                  "TTS_URL",
	"tts.secret":               "TTS_SECRET",
	"tts.voice":                "TTS_VOICE",
	"smtp.host":                "SMTP_HOST",
	"smtp.port":                "SMTP_PORT",
	"smtp.user":                "SMTP_USER",
	"smtp.password":            "SMTP_PASSWORD",
	"smtp.from":                "SMTP_FROM",
	"operator.api_key":         "OPERATOR_API_KEY",
	"events.enabled":           "EVENTS_ENABLED",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.mode", SchedulerModeInProcess)
	v.SetDefault("scheduler.check_interval", time.Hour)
	v.SetDefault("scheduler.call_timeout", 60*time.Second)
	v.SetDefault("feedback.ttl", 7*24*time.Hour)
	v.SetDefault("feedback.rate_limit", 5.0)
	v.SetDefault("feeds.cache_ttl", 15*time.Minute)
	v.SetDefault("feeds.scrape_full_text", false)
	v.SetDefault("summarizer.stub", false)
	v.SetDefault("tts.voice", "nova")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("events.enabled", false)
}

// Load reads configuration using the global viper instance, which cobra flags bind into.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v: defaults, then config.yaml if present, then env.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Env:     v.GetString("env"),
		Port:    v.GetString("port"),
		BaseURL: v.GetString("base_url"),

		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),

		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),

		SchedulerEnabled:       v.GetBool("scheduler.enabled"),
		SchedulerMode:          v.GetString("scheduler.mode"),
		SchedulerCheckInterval: v.GetDuration("scheduler.check_interval"),
		ExternalCallTimeout:    v.GetDuration("scheduler.call_timeout"),
		FeedbackTTL:            v.GetDuration("feedback.ttl"),

		CatalogPath:    v.GetString("feeds.catalog_path"),
		FeedCacheTTL:   v.GetDuration("feeds.cache_ttl"),
		ScrapeFullText: v.GetBool("feeds.scrape_full_text"),

		SummarizerURL:    v.GetString("summarizer.url"),
		SummarizerSecret: v.GetString("summarizer.secret"),
		SummarizerStub:   v.GetBool("summarizer.stub"),

		TTSURL:    v.GetString("tts.url"),
		TTSSecret: v.GetString("tts.secret"),
		TTSVoice:  v.GetString("tts.voice"),

		SMTPHost:     v.GetString("smtp.host"),
		SMTPPort:     v.GetInt("smtp.port"),
		SMTPUser:     v.GetString("smtp.user"),
		SMTPPassword: v.GetString("smtp.password"),
		SMTPFrom:     v.GetString("smtp.from"),

		OperatorAPIKey:    v.GetString("operator.api_key"),
		EventsEnabled:     v.GetBool("events.enabled"),
		FeedbackRateLimit: v.GetFloat64("feedback.rate_limit"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Warn about insecure or incomplete setups instead of refusing to start
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}

	return cfg, nil
}

// Warnings lists settings that let the service start but leave part of it unusable.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.OperatorAPIKey == "" {
		warnings = append(warnings, "OPERATOR_API_KEY not set, operator routes are disabled")
	}
	if c.SummarizerURL == "" && !c.SummarizerStub {
		warnings = append(warnings, "SUMMARIZER_URL not set and stub mode off, every digest will fail at the summarize step")
	}
	if c.TTSURL == "" {
		warnings = append(warnings, "TTS_URL not set, digests for premium users will fail at the render_audio step")
	}
	return warnings
}

// Validate checks values that would make the service misbehave at runtime.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.Port == "" || c.Port == "0" {
		return errors.New("invalid port provided")
	}
	if c.SchedulerMode != SchedulerModeInProcess && c.SchedulerMode != SchedulerModeQueue {
		return fmt.Errorf("invalid scheduler mode %q", c.SchedulerMode)
	}
	if c.SchedulerMode == SchedulerModeQueue && c.RedisURL == "" {
		return errors.New("scheduler mode queue requires REDIS_URL")
	}
	if c.SchedulerCheckInterval < time.Minute {
		return fmt.Errorf("scheduler check interval must be at least 1m, got %s", c.SchedulerCheckInterval)
	}
	if c.ExternalCallTimeout <= 0 {
		return errors.New("external call timeout must be positive")
	}
	if c.FeedbackTTL <= 0 {
		return errors.New("feedback ttl must be positive")
	}
	return nil
}
