package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Hubs    HubsConfig    `mapstructure:"hubs"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIConfig points at the lead-management REST backend.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
	// Mock switches the whole client to the in-memory backend. Development
	// convenience, mirrors the dashboard's mock-API toggle.
	Mock bool `mapstructure:"mock"`
}

// GetTimeout returns the request timeout as a duration, defaulting to 30s.
func (a APIConfig) GetTimeout() time.Duration {
	if a.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.Timeout) * time.Millisecond
}

// AuthConfig holds the client-credentials settings used to mint bearer
// tokens for both the REST API and the hubs.
type AuthConfig struct {
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// StaticToken short-circuits the token endpoint, mostly for local dev.
	StaticToken string `mapstructure:"static_token"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HubsConfig names the pub/sub channels the realtime hubs ride on and the
// reconnect backoff envelope.
type HubsConfig struct {
	LeadsChannel     string `mapstructure:"leads_channel"`
	MessagingChannel string `mapstructure:"messaging_channel"`
	BackoffInitial   int    `mapstructure:"backoff_initial"` // milliseconds
	BackoffMax       int    `mapstructure:"backoff_max"`     // milliseconds
}

// GetBackoffInitial defaults to the 1s starting delay.
func (h HubsConfig) GetBackoffInitial() time.Duration {
	if h.BackoffInitial <= 0 {
		return time.Second
	}
	return time.Duration(h.BackoffInitial) * time.Millisecond
}

// GetBackoffMax defaults to the 30s cap.
func (h HubsConfig) GetBackoffMax() time.Duration {
	if h.BackoffMax <= 0 {
		return 30 * time.Second
	}
	return time.Duration(h.BackoffMax) * time.Millisecond
}

// QueueConfig tunes the lead queue cache.
type QueueConfig struct {
	PageSize int `mapstructure:"page_size"`
	// HighlightTTL is how long a hub-created lead keeps its "new" flag,
	// in milliseconds.
	HighlightTTL int `mapstructure:"highlight_ttl"`
}

func (q QueueConfig) GetPageSize() int {
	if q.PageSize <= 0 {
		return 25
	}
	return q.PageSize
}

func (q QueueConfig) GetHighlightTTL() time.Duration {
	if q.HighlightTTL <= 0 {
		return 2 * time.Second
	}
	return time.Duration(q.HighlightTTL) * time.Millisecond
}

// AlertsConfig controls operator notifications for newly arrived leads.
type AlertsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MinScore suppresses alerts for leads scoring below it.
	MinScore int `mapstructure:"min_score"`
	// CatalogPath points at a template catalog file; empty uses the
	// built-in catalog.
	CatalogPath string           `mapstructure:"catalog_path"`
	SMS         SMSAlertConfig   `mapstructure:"sms"`
	Email       EmailAlertConfig `mapstructure:"email"`
}

type SMSAlertConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Region      string `mapstructure:"region"`
	PhoneNumber string `mapstructure:"phone_number"`
}

type EmailAlertConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	From    string `mapstructure:"from"`
	To      string `mapstructure:"to"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks the fields the daemon cannot run without.
func (c *Config) Validate() error {
	if !c.API.Mock && c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required unless api.mock is set")
	}
	if c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}
	if c.Hubs.LeadsChannel == "" || c.Hubs.MessagingChannel == "" {
		return fmt.Errorf("hubs.leads_channel and hubs.messaging_channel are required")
	}
	return nil
}
