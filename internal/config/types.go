package config

// Config is the root configuration for the relay.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp,omitempty"`
	OpenAI   OpenAIConfig   `yaml:"openai,omitempty"`
	Policy   PolicyConfig   `yaml:"policy,omitempty"`
	Persona  PersonaConfig  `yaml:"persona,omitempty"`
	Operator OperatorConfig `yaml:"operator,omitempty"`
	Archive  ArchiveConfig  `yaml:"archive,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// GatewayConfig controls the webhook HTTP server.
type GatewayConfig struct {
	Port           int    `yaml:"port,omitempty"`
	Bind           string `yaml:"bind,omitempty"` // "auto" | "lan" | "loopback" | "custom"
	CustomBindHost string `yaml:"customBindHost,omitempty"`
	WebhookPath    string `yaml:"webhookPath,omitempty"`
}

// WhatsAppConfig holds the Twilio messaging credentials and sender.
type WhatsAppConfig struct {
	AccountSID     string `yaml:"accountSid,omitempty"`
	AuthToken      string `yaml:"authToken,omitempty"`
	From           string `yaml:"from,omitempty"` // e.g. "whatsapp:+14155238886"
	APIBase        string `yaml:"apiBase,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// OpenAIConfig configures the completion and transcription provider.
type OpenAIConfig struct {
	APIKey             string  `yaml:"apiKey,omitempty"`
	BaseURL            string  `yaml:"baseUrl,omitempty"`
	Model              string  `yaml:"model,omitempty"`
	Temperature        float64 `yaml:"temperature,omitempty"`
	TranscriptionModel string  `yaml:"transcriptionModel,omitempty"`
	Language           string  `yaml:"language,omitempty"`
	TimeoutSeconds     int     `yaml:"timeoutSeconds,omitempty"`
	MaxMediaBytes      int64   `yaml:"maxMediaBytes,omitempty"`
}

// PolicyConfig overrides the routing policy table. Empty fields keep the
// built-in defaults.
type PolicyConfig struct {
	Timezone         string           `yaml:"timezone,omitempty"`
	HandoffKeyword   string           `yaml:"handoffKeyword,omitempty"`
	HumanHours       HumanHoursConfig `yaml:"humanHours,omitempty"`
	IdleMinutes      int              `yaml:"idleMinutes,omitempty"`
	GreetingPauseMs  int              `yaml:"greetingPauseMs,omitempty"`
	ReplyPauseMs     int              `yaml:"replyPauseMs,omitempty"`
	Greetings        []string         `yaml:"greetings,omitempty"`
	ForbiddenPhrases []string         `yaml:"forbiddenPhrases,omitempty"`
	Messages         MessagesConfig   `yaml:"messages,omitempty"`
}

// HumanHoursConfig is the window in which human staff answer instead of the bot.
type HumanHoursConfig struct {
	Days  []string `yaml:"days,omitempty"`  // "mon" .. "sun"
	Start string   `yaml:"start,omitempty"` // "09:00"
	End   string   `yaml:"end,omitempty"`   // "19:00", exclusive
}

// MessagesConfig overrides the scripted texts the bot sends.
type MessagesConfig struct {
	HandoffAck     string `yaml:"handoffAck,omitempty"`
	GreetingFirst  string `yaml:"greetingFirst,omitempty"`
	GreetingSecond string `yaml:"greetingSecond,omitempty"`
	AudioAck       string `yaml:"audioAck,omitempty"`
	AudioFallback  string `yaml:"audioFallback,omitempty"`
}

// PersonaConfig points at the system prompt file.
type PersonaConfig struct {
	PromptFile string `yaml:"promptFile,omitempty"` // empty = embedded default persona
}

// OperatorConfig protects the operator event feed.
type OperatorConfig struct {
	Token          string   `yaml:"token,omitempty"` // empty disables the feed
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// ArchiveConfig controls the SQLite message archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"` // default <data>/archive.db
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
