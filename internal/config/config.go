// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration with precedence
// ENV > config file > defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	DataDir    string `yaml:"dataDir"`
	APIKey     string `yaml:"apiKey"`
	LogLevel   string `yaml:"logLevel"`

	// Store backend: "file" or "badger".
	StoreBackend string `yaml:"storeBackend"`

	// Search cache.
	RedisAddr      string        `yaml:"redisAddr"`
	SearchCacheTTL time.Duration `yaml:"searchCacheTTL"`
	SearchCacheMax int           `yaml:"searchCacheMax"`

	// Museum API keys; the matching source is skipped when empty.
	RijksKey       string `yaml:"-"`
	HarvardKey     string `yaml:"-"`
	SmithsonianKey string `yaml:"-"`

	// Image pipeline.
	PipelineWorkers int `yaml:"pipelineWorkers"`

	// Device defaults.
	DefaultDeviceID string `yaml:"defaultDeviceId"`
	WebhookURL      string `yaml:"webhookUrl"`

	// OTA.
	FirmwarePath    string `yaml:"firmwarePath"`
	FirmwareVersion string `yaml:"firmwareVersion"`
	BuildDate       string `yaml:"buildDate"`

	// Night sleep timezone (IANA name; empty means local time).
	Timezone string `yaml:"timezone"`

	// Rate limiting.
	RateLimitEnabled bool `yaml:"rateLimitEnabled"`
	RateLimitRPM     int  `yaml:"rateLimitRpm"`

	// Tracing (OTLP HTTP endpoint; empty disables tracing).
	TracingEndpoint string `yaml:"tracingEndpoint"`

	// AI generation (optional).
	OpenAIKey string `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:       ":8080",
		DataDir:          "./data",
		LogLevel:         "info",
		StoreBackend:     "file",
		SearchCacheTTL:   time.Hour,
		SearchCacheMax:   500,
		PipelineWorkers:  2,
		FirmwarePath:     "./firmware/firmware.bin",
		FirmwareVersion:  "dev",
		BuildDate:        "unknown",
		RateLimitEnabled: true,
		RateLimitRPM:     600,
	}
}

// Load resolves the configuration. path may be empty; a missing file is not
// an error unless it was requested explicitly.
func Load(path string, explicit bool) (AppConfig, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return AppConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// auto-discovered path, fine to skip
		default:
			return AppConfig{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if port := ParseString("PORT", ""); port != "" {
		cfg.ListenAddr = ":" + port
	}
	cfg.DataDir = ParseString("INKFRAME_DATA", cfg.DataDir)
	cfg.APIKey = ParseString("API_KEY", cfg.APIKey)
	cfg.LogLevel = ParseString("LOG_LEVEL", cfg.LogLevel)
	cfg.StoreBackend = ParseString("INKFRAME_STORE", cfg.StoreBackend)
	cfg.RedisAddr = ParseString("INKFRAME_REDIS_ADDR", cfg.RedisAddr)
	cfg.SearchCacheTTL = ParseDuration("INKFRAME_SEARCH_CACHE_TTL", cfg.SearchCacheTTL)
	cfg.SearchCacheMax = ParseInt("INKFRAME_SEARCH_CACHE_MAX", cfg.SearchCacheMax)
	cfg.PipelineWorkers = ParseInt("INKFRAME_PIPELINE_WORKERS", cfg.PipelineWorkers)
	cfg.DefaultDeviceID = ParseString("DEVICE_ID", cfg.DefaultDeviceID)
	cfg.WebhookURL = ParseString("INKFRAME_WEBHOOK_URL", cfg.WebhookURL)
	cfg.FirmwarePath = ParseString("INKFRAME_FIRMWARE_PATH", cfg.FirmwarePath)
	cfg.FirmwareVersion = ParseString("FIRMWARE_VERSION", cfg.FirmwareVersion)
	cfg.BuildDate = ParseString("BUILD_DATE", cfg.BuildDate)
	cfg.Timezone = ParseString("INKFRAME_TIMEZONE", cfg.Timezone)
	cfg.RateLimitEnabled = ParseBool("INKFRAME_RATE_LIMIT", cfg.RateLimitEnabled)
	cfg.RateLimitRPM = ParseInt("INKFRAME_RATE_LIMIT_RPM", cfg.RateLimitRPM)
	cfg.TracingEndpoint = ParseString("INKFRAME_TRACING_ENDPOINT", cfg.TracingEndpoint)
	cfg.OpenAIKey = ParseString("OPENAI_API_KEY", cfg.OpenAIKey)
	cfg.RijksKey = ParseString("RIJKSMUSEUM_API_KEY", cfg.RijksKey)
	cfg.HarvardKey = ParseString("HARVARD_API_KEY", cfg.HarvardKey)
	cfg.SmithsonianKey = ParseString("SMITHSONIAN_API_KEY", cfg.SmithsonianKey)
}

// Validate rejects configurations the daemon cannot start with.
func (c AppConfig) Validate() error {
	switch c.StoreBackend {
	case "file", "badger":
	default:
		return fmt.Errorf("invalid store backend %q (want file or badger)", c.StoreBackend)
	}
	if c.PipelineWorkers < 1 {
		return fmt.Errorf("pipeline workers must be >= 1, got %d", c.PipelineWorkers)
	}
	if c.SearchCacheMax < 1 {
		return fmt.Errorf("search cache max must be >= 1, got %d", c.SearchCacheMax)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location resolves the configured night-sleep timezone.
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
