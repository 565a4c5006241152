// Package config loads service configuration from environment variables with
// hardcoded fallbacks.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config aggregates every configurable surface of the service.
type Config struct {
	Server  ServerConfig
	Site    SiteConfig
	Chatbot ChatbotConfig
	AI      AIConfig
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"APP_ENV" envDefault:"development"`
}

// Addr returns a listen address, accepting either a bare port or a full
// host:port value in PORT.
func (c ServerConfig) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Production reports whether the service runs with production policy
// (fail-closed origin checks, no dev origins).
func (c ServerConfig) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// SiteConfig names the origins the widget is served from.
type SiteConfig struct {
	SiteURL       string `env:"SITE_URL" envDefault:"https://www.pensador.ai"`
	PublicSiteURL string `env:"PUBLIC_SITE_URL"`
}

// ChatbotConfig bounds the admission layer: rate limits, spike alerts, body
// and history caps, and session cookie lifetime.
type ChatbotConfig struct {
	RateLimitWindow     time.Duration `env:"CHATBOT_RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitPerIP      int           `env:"CHATBOT_RATE_LIMIT_PER_IP" envDefault:"30"`
	RateLimitPerSession int           `env:"CHATBOT_RATE_LIMIT_PER_SESSION" envDefault:"20"`

	SpikeAlertPerMinute    int `env:"CHATBOT_SPIKE_ALERT_PER_MINUTE" envDefault:"120"`
	SpikeAlertPerIPPerMin  int `env:"CHATBOT_SPIKE_ALERT_PER_IP_PER_MINUTE" envDefault:"40"`
	MaxRequestBytes        int `env:"CHATBOT_MAX_REQUEST_BYTES" envDefault:"20000"`
	HistoryMaxMessages     int `env:"CHATBOT_HISTORY_MAX_MESSAGES" envDefault:"12"`
	MessageMaxChars        int `env:"CHATBOT_MESSAGE_MAX_CHARS" envDefault:"5000"`
	HistoryMaxPayloadBytes int `env:"CHATBOT_HISTORY_MAX_BYTES" envDefault:"40000"`

	SessionCookieName string        `env:"CHATBOT_SESSION_COOKIE" envDefault:"pensador_chat_session_v1"`
	SessionMaxAge     time.Duration `env:"CHATBOT_SESSION_MAX_AGE" envDefault:"720h"`
	SweepInterval     time.Duration `env:"CHATBOT_SWEEP_INTERVAL" envDefault:"5m"`
}

// AIConfig describes the model boundary.
type AIConfig struct {
	APIKey               string        `env:"OPENAI_API_KEY"`
	BaseURL              string        `env:"OPENAI_BASE_URL"`
	Model                string        `env:"OPENAI_MODEL" envDefault:"gpt-5-nano"`
	UseTemperature       bool          `env:"OPENAI_USE_TEMPERATURE" envDefault:"false"`
	Temperature          float64       `env:"OPENAI_TEMPERATURE" envDefault:"0.35"`
	UseTopP              bool          `env:"OPENAI_USE_TOP_P" envDefault:"false"`
	TopP                 float64       `env:"OPENAI_TOP_P" envDefault:"1"`
	MaxOutputTokens      int           `env:"OPENAI_MAX_OUTPUT_TOKENS" envDefault:"2500"`
	RetryMaxOutputTokens int           `env:"OPENAI_RETRY_MAX_OUTPUT_TOKENS" envDefault:"3500"`
	Timeout              time.Duration `env:"OPENAI_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether the boundary credential is present.
func (c AIConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (cfg *Config) validate() error {
	if strings.Contains(cfg.Server.Port, " ") {
		return fmt.Errorf("invalid PORT value: %q", cfg.Server.Port)
	}

	if _, err := url.Parse(cfg.Site.SiteURL); err != nil {
		return fmt.Errorf("invalid SITE_URL value %q: %w", cfg.Site.SiteURL, err)
	}

	positives := map[string]int{
		"CHATBOT_RATE_LIMIT_PER_IP":             cfg.Chatbot.RateLimitPerIP,
		"CHATBOT_RATE_LIMIT_PER_SESSION":        cfg.Chatbot.RateLimitPerSession,
		"CHATBOT_SPIKE_ALERT_PER_MINUTE":        cfg.Chatbot.SpikeAlertPerMinute,
		"CHATBOT_SPIKE_ALERT_PER_IP_PER_MINUTE": cfg.Chatbot.SpikeAlertPerIPPerMin,
		"CHATBOT_MAX_REQUEST_BYTES":             cfg.Chatbot.MaxRequestBytes,
		"CHATBOT_HISTORY_MAX_MESSAGES":          cfg.Chatbot.HistoryMaxMessages,
		"CHATBOT_MESSAGE_MAX_CHARS":             cfg.Chatbot.MessageMaxChars,
		"CHATBOT_HISTORY_MAX_BYTES":             cfg.Chatbot.HistoryMaxPayloadBytes,
		"OPENAI_MAX_OUTPUT_TOKENS":              cfg.AI.MaxOutputTokens,
		"OPENAI_RETRY_MAX_OUTPUT_TOKENS":        cfg.AI.RetryMaxOutputTokens,
	}
	for name, value := range positives {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	durations := map[string]time.Duration{
		"CHATBOT_RATE_LIMIT_WINDOW": cfg.Chatbot.RateLimitWindow,
		"CHATBOT_SESSION_MAX_AGE":   cfg.Chatbot.SessionMaxAge,
		"CHATBOT_SWEEP_INTERVAL":    cfg.Chatbot.SweepInterval,
		"OPENAI_TIMEOUT":            cfg.AI.Timeout,
	}
	for name, value := range durations {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	return nil
}
