package config

import (
	"fmt"

	_ "time/tzdata" // timezone lookups must work in minimal containers
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultPort          = 3000
	DefaultWebhookPath   = "/whatsapp"
	DefaultSender        = "whatsapp:+14155238886"
	DefaultTwilioAPIBase = "https://api.twilio.com/2010-04-01"
	DefaultModel         = "gpt-3.5-turbo-0125"
	DefaultTemperature   = 0.7
	DefaultWhisperModel  = "whisper-1"
	DefaultLanguage      = "pt"
	DefaultTimeoutSecs   = 10
	DefaultMaxMediaBytes = 25 << 20
	DefaultTimezone      = "America/Sao_Paulo"
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "lan"
	}
	if cfg.Gateway.WebhookPath == "" {
		cfg.Gateway.WebhookPath = DefaultWebhookPath
	}
	if cfg.WhatsApp.From == "" {
		cfg.WhatsApp.From = DefaultSender
	}
	if cfg.WhatsApp.APIBase == "" {
		cfg.WhatsApp.APIBase = DefaultTwilioAPIBase
	}
	if cfg.WhatsApp.TimeoutSeconds == 0 {
		cfg.WhatsApp.TimeoutSeconds = DefaultTimeoutSecs
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = DefaultModel
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = DefaultTemperature
	}
	if cfg.OpenAI.TranscriptionModel == "" {
		cfg.OpenAI.TranscriptionModel = DefaultWhisperModel
	}
	if cfg.OpenAI.Language == "" {
		cfg.OpenAI.Language = DefaultLanguage
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = DefaultTimeoutSecs
	}
	if cfg.OpenAI.MaxMediaBytes == 0 {
		cfg.OpenAI.MaxMediaBytes = DefaultMaxMediaBytes
	}
	if cfg.Policy.Timezone == "" {
		cfg.Policy.Timezone = DefaultTimezone
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}
