package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so secrets can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.OpenAI.APIKey = expandEnvVars(cfg.OpenAI.APIKey)
	cfg.WhatsApp.AccountSID = expandEnvVars(cfg.WhatsApp.AccountSID)
	cfg.WhatsApp.AuthToken = expandEnvVars(cfg.WhatsApp.AuthToken)
	cfg.Operator.Token = expandEnvVars(cfg.Operator.Token)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
	case os.IsNotExist(err):
	default:
		return Defaults(), err
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// applyEnvOverrides reads NERDSON_* and provider environment variables.
// Provider credentials only fill values the file left empty.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NERDSON_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("NERDSON_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("NERDSON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("NERDSON_TIMEZONE"); v != "" {
		cfg.Policy.Timezone = v
	}
	if v := os.Getenv("NERDSON_OPERATOR_TOKEN"); v != "" && cfg.Operator.Token == "" {
		cfg.Operator.Token = v
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.WhatsApp.AccountSID == "" {
		cfg.WhatsApp.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.WhatsApp.AuthToken == "" {
		cfg.WhatsApp.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	c.OpenAI.APIKey = mask(c.OpenAI.APIKey)
	c.WhatsApp.AuthToken = mask(c.WhatsApp.AuthToken)
	c.Operator.Token = mask(c.Operator.Token)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 8)
}
