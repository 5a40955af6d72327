// Package config provides YAML-based configuration loading for Alfred.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Alfred configuration, loaded from alfred.yaml.
type Config struct {
	DB       DBConfig       `yaml:"db"`
	Provider ProviderConfig `yaml:"provider"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Notify   NotifyConfig   `yaml:"notify"`
	Loops    LoopsConfig    `yaml:"loops"`
}

// DBConfig holds connection settings for the MySQL call store.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ProviderConfig holds settings for the outbound voice provider API.
type ProviderConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	AgentID           string `yaml:"agent_id"`
	AgentPhoneID      string `yaml:"agent_phone_id"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

// RequestTimeout returns the per-request provider timeout.
func (p ProviderConfig) RequestTimeout() time.Duration {
	return time.Duration(p.RequestTimeoutSec) * time.Second
}

// WebhookConfig holds settings for the inbound webhook receiver.
type WebhookConfig struct {
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
}

// NotifyConfig holds notification delivery settings. Platform selects the
// sink; Channels maps a group id to its delivery channel, with
// DefaultChannel as the fallback for groups without an explicit entry.
type NotifyConfig struct {
	Platform       string            `yaml:"platform"` // "slack" or "discord"
	SlackToken     string            `yaml:"slack_token"`
	DiscordToken   string            `yaml:"discord_token"`
	DefaultChannel string            `yaml:"default_channel"`
	Channels       map[string]string `yaml:"channels"`
}

// LoopsConfig holds intervals and thresholds for the background loops.
type LoopsConfig struct {
	ReconcileIntervalSec int `yaml:"reconcile_interval_sec"`
	StaleAfterMin        int `yaml:"stale_after_min"`
	DispatchIntervalSec  int `yaml:"dispatch_interval_sec"`
}

// ReconcileInterval returns how often the reconciliation poller runs.
func (l LoopsConfig) ReconcileInterval() time.Duration {
	return time.Duration(l.ReconcileIntervalSec) * time.Second
}

// StaleAfter returns the age past which an in-flight call is checked.
func (l LoopsConfig) StaleAfter() time.Duration {
	return time.Duration(l.StaleAfterMin) * time.Minute
}

// DispatchInterval returns how often the notification dispatcher runs.
func (l LoopsConfig) DispatchInterval() time.Duration {
	return time.Duration(l.DispatchIntervalSec) * time.Second
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" {
		c.DB.Database = "alfred"
	}
	if c.Webhook.Port == 0 {
		c.Webhook.Port = 8080
	}
	if c.Provider.RequestTimeoutSec == 0 {
		c.Provider.RequestTimeoutSec = 30
	}
	if c.Loops.ReconcileIntervalSec == 0 {
		c.Loops.ReconcileIntervalSec = 300
	}
	if c.Loops.StaleAfterMin == 0 {
		c.Loops.StaleAfterMin = 30
	}
	if c.Loops.DispatchIntervalSec == 0 {
		c.Loops.DispatchIntervalSec = 30
	}
}

// applyEnv overrides secrets from the environment so they can stay out of
// the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("ALFRED_WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
	if v := os.Getenv("ALFRED_PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("ALFRED_SLACK_TOKEN"); v != "" {
		c.Notify.SlackToken = v
	}
	if v := os.Getenv("ALFRED_DISCORD_TOKEN"); v != "" {
		c.Notify.DiscordToken = v
	}
	if v := os.Getenv("ALFRED_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Provider.BaseURL == "" {
		errs = append(errs, "provider.base_url is required")
	}
	if c.Provider.AgentID == "" {
		errs = append(errs, "provider.agent_id is required")
	}
	if c.Webhook.Secret == "" {
		errs = append(errs, "webhook.secret is required (or ALFRED_WEBHOOK_SECRET)")
	}
	switch c.Notify.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("notify.platform %q is not supported (slack, discord)", c.Notify.Platform))
	}
	if c.Notify.Platform == "slack" && c.Notify.SlackToken == "" {
		errs = append(errs, "notify.slack_token is required for the slack platform")
	}
	if c.Notify.Platform == "discord" && c.Notify.DiscordToken == "" {
		errs = append(errs, "notify.discord_token is required for the discord platform")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ChannelFor resolves the delivery channel for a group id. Returns the
// group's mapped channel, the default channel, or "" when neither is set.
func (n NotifyConfig) ChannelFor(groupID string) string {
	if ch, ok := n.Channels[groupID]; ok && ch != "" {
		return ch
	}
	return n.DefaultChannel
}
