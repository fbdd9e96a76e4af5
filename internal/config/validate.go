package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Weekdays maps the accepted day names to time.Weekday.
var Weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, &ConfigError{Message: fmt.Sprintf("invalid clock time %q, want HH:MM", s)}
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}

	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		add("gateway.bind", "must be one of %v, got %q", validBinds, cfg.Gateway.Bind)
	}
	if cfg.Gateway.WebhookPath != "" && !strings.HasPrefix(cfg.Gateway.WebhookPath, "/") {
		add("gateway.webhookPath", "must start with /, got %q", cfg.Gateway.WebhookPath)
	}

	if cfg.WhatsApp.TimeoutSeconds < 0 {
		add("whatsapp.timeoutSeconds", "must not be negative")
	}
	if cfg.OpenAI.TimeoutSeconds < 0 {
		add("openai.timeoutSeconds", "must not be negative")
	}
	if cfg.OpenAI.Temperature < 0 || cfg.OpenAI.Temperature > 2 {
		add("openai.temperature", "must be between 0 and 2, got %v", cfg.OpenAI.Temperature)
	}

	p := cfg.Policy
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			add("policy.timezone", "unknown timezone %q", p.Timezone)
		}
	}
	for _, d := range p.HumanHours.Days {
		if _, ok := Weekdays[strings.ToLower(d)]; !ok {
			add("policy.humanHours.days", "unknown weekday %q", d)
		}
	}
	var start, end int
	var clockErr bool
	if p.HumanHours.Start != "" {
		var err error
		if start, err = ParseClock(p.HumanHours.Start); err != nil {
			add("policy.humanHours.start", "%s", err.Error())
			clockErr = true
		}
	}
	if p.HumanHours.End != "" {
		var err error
		if end, err = ParseClock(p.HumanHours.End); err != nil {
			add("policy.humanHours.end", "%s", err.Error())
			clockErr = true
		}
	}
	if !clockErr && p.HumanHours.Start != "" && p.HumanHours.End != "" && end <= start {
		add("policy.humanHours", "end %s must be after start %s", p.HumanHours.End, p.HumanHours.Start)
	}
	if p.IdleMinutes < 0 {
		add("policy.idleMinutes", "must not be negative")
	}
	if p.GreetingPauseMs < 0 {
		add("policy.greetingPauseMs", "must not be negative")
	}
	if p.ReplyPauseMs < 0 {
		add("policy.replyPauseMs", "must not be negative")
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
