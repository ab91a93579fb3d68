package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDiscordWebhookURL = "DISCORD_WEBHOOK_URL"
	EnvTeamsWebhookURL   = "TEAMS_WEBHOOK_URL"
	EnvAddr              = "NCRECEIVER_ADDR"
	EnvLogLevel          = "NCRECEIVER_LOG_LEVEL"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Receiver  ReceiverConfig  `json:"receiver" yaml:"receiver"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize"`
	Dispatch  DispatchConfig  `json:"dispatch" yaml:"dispatch"`
	Kafka     KafkaConfig     `json:"kafka" yaml:"kafka"`
	API       APIConfig       `json:"api" yaml:"api"`
	History   HistoryConfig   `json:"history" yaml:"history"`
}

type ReceiverConfig struct {
	Addr               string `json:"addr" yaml:"addr"`
	Title              string `json:"title" yaml:"title"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxBodyBytes       int64  `json:"max_body_bytes" yaml:"max_body_bytes"`

	// LegacyTeamsStatus answers failed Teams relays with HTTP 200.
	LegacyTeamsStatus bool `json:"legacy_teams_status" yaml:"legacy_teams_status"`
}

type NormalizeConfig struct {
	Timezone string `json:"timezone" yaml:"timezone"`
}

type DispatchConfig struct {
	DiscordWebhookURL string        `json:"discord_webhook_url" yaml:"discord_webhook_url"`
	TeamsWebhookURL   string        `json:"teams_webhook_url" yaml:"teams_webhook_url"`
	Timeout           Duration      `json:"timeout" yaml:"timeout"`
	Username          string        `json:"username" yaml:"username"`
	FooterURL         string        `json:"footer_url" yaml:"footer_url"`
	EmbedColor        int           `json:"embed_color" yaml:"embed_color"`
}

type KafkaConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Brokers     []string `json:"brokers" yaml:"brokers"`
	Topic       string   `json:"topic" yaml:"topic"`
	GroupID     string   `json:"group_id" yaml:"group_id"`
	Destination string   `json:"destination" yaml:"destination"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type HistoryConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Receiver: ReceiverConfig{
			Addr:               ":5000",
			Title:              "NC_XML_Receiver",
			RateLimitPerMinute: 5,
			MaxBodyBytes:       2 << 20,
		},
		Normalize: NormalizeConfig{Timezone: "UTC"},
		Dispatch: DispatchConfig{
			Timeout:    Duration(10 * time.Second),
			Username:   "NC Receiver",
			FooterURL:  "https://nc.syschimp.com",
			EmbedColor: 2368548,
		},
		Kafka:   KafkaConfig{Enabled: false, Destination: "discord"},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		History: HistoryConfig{StoreLimit: 500},
	}
}

// Load reads a YAML or JSON config file. An empty path yields the defaults.
// Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(string(content))
		if len(trimmed) == 0 {
			return nil, errors.New("config file is empty")
		}
		var decodeErr error
		if looksLikeJSON(trimmed) {
			decodeErr = json.Unmarshal([]byte(trimmed), cfg)
		} else {
			decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
		}
		if decodeErr != nil {
			return nil, decodeErr
		}
	}
	ApplyEnv(cfg, os.LookupEnv)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment values onto cfg. Set variables win over the file.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDiscordWebhookURL); ok {
		cfg.Dispatch.DiscordWebhookURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTeamsWebhookURL); ok {
		cfg.Dispatch.TeamsWebhookURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAddr); ok && strings.TrimSpace(v) != "" {
		cfg.Receiver.Addr = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Receiver.Title == "" {
		cfg.Receiver.Title = "NC_XML_Receiver"
	}
	if cfg.Receiver.MaxBodyBytes <= 0 {
		cfg.Receiver.MaxBodyBytes = 2 << 20
	}
	if cfg.Normalize.Timezone == "" {
		cfg.Normalize.Timezone = "UTC"
	}
	if cfg.Dispatch.Timeout <= 0 {
		cfg.Dispatch.Timeout = Duration(10 * time.Second)
	}
	if cfg.History.StoreLimit <= 0 {
		cfg.History.StoreLimit = 500
	}
}

func Validate(cfg *Config) error {
	if cfg.Receiver.Addr == "" {
		return errors.New("receiver.addr is required")
	}
	if cfg.Receiver.RateLimitPerMinute <= 0 {
		return errors.New("receiver.rate_limit_per_minute must be > 0")
	}
	if _, err := time.LoadLocation(cfg.Normalize.Timezone); err != nil {
		return fmt.Errorf("normalize.timezone: %w", err)
	}
	if err := validateWebhookURL("dispatch.discord_webhook_url", cfg.Dispatch.DiscordWebhookURL); err != nil {
		return err
	}
	if err := validateWebhookURL("dispatch.teams_webhook_url", cfg.Dispatch.TeamsWebhookURL); err != nil {
		return err
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" || cfg.Kafka.GroupID == "" {
			return errors.New("kafka requires brokers, topic, group_id")
		}
		switch cfg.Kafka.Destination {
		case "discord", "teams":
		default:
			return fmt.Errorf("kafka.destination must be discord or teams, got %q", cfg.Kafka.Destination)
		}
	}
	return nil
}

// validateWebhookURL accepts an empty value; the destination is then unconfigured.
func validateWebhookURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: must use http or https scheme, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: must include a host", field)
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Normalize.Timezone != "" {
		if l, err := time.LoadLocation(c.Normalize.Timezone); err == nil {
			return l
		}
	}
	return time.UTC
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
