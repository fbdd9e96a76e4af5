package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/soyeahso/nerdson/internal/domain"
	"github.com/soyeahso/nerdson/internal/logging"
	"github.com/soyeahso/nerdson/internal/version"
)

const providerName = "openai"

// DefaultErrorDetail is used when a 4xx response carries no message.
const DefaultErrorDetail = "Erro na requisição"

// OpenAIConfig configures the OpenAI clients.
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string // empty = api.openai.com
	Model              string
	Temperature        float64
	TranscriptionModel string
	Language           string
	Timeout            time.Duration
	HTTPClient         *http.Client
}

// OpenAIClient requests chat completions. Calls are never retried so a slow
// provider costs at most one timeout per event.
type OpenAIClient struct {
	api    openai.Client
	cfg    OpenAIConfig
	hasKey bool
	log    *logging.Logger
}

// NewOpenAIClient creates a completion client. A missing API key is not an
// error here; every call then fails with KindConfig.
func NewOpenAIClient(cfg OpenAIConfig, log *logging.Logger) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &OpenAIClient{
		api:    openai.NewClient(requestOptions(cfg)...),
		cfg:    cfg,
		hasKey: cfg.APIKey != "",
		log:    log.Sub("openai"),
	}
}

func requestOptions(cfg OpenAIConfig) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", version.UserAgent()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return opts
}

// Complete sends the full history and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, history []domain.Turn) (string, error) {
	if !c.hasKey {
		return "", &ProviderError{Provider: providerName, Kind: KindConfig, Message: "OPENAI_API_KEY is not set"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       c.cfg.Model,
		Messages:    toOpenAIMessages(history),
		Temperature: openai.Float(c.cfg.Temperature),
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		pe := classify(err)
		c.log.Warn().Err(err).Str("kind", string(pe.Kind)).Int("status", pe.Code).
			Dur("duration", time.Since(start)).Msg("completion failed")
		return "", pe
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: providerName, Kind: KindUnexpected, Message: "no choices in response"}
	}

	c.log.Debug().
		Str("model", resp.Model).
		Int64("promptTokens", resp.Usage.PromptTokens).
		Int64("completionTokens", resp.Usage.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("completion done")

	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(history []domain.Turn) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, t := range history {
		switch t.Role {
		case domain.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(t.Content))
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	return msgs
}

// classify converts an SDK or transport error into a *ProviderError.
func classify(err error) *ProviderError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider: providerName,
			Kind:     KindForStatus(apiErr.StatusCode),
			Code:     apiErr.StatusCode,
			Message:  errorDetail(apiErr),
			Err:      err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: providerName, Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Provider: providerName, Kind: KindTimeout, Message: "request timed out", Err: err}
	}

	return &ProviderError{Provider: providerName, Kind: KindTransport, Message: err.Error(), Err: err}
}

// errorDetail extracts error.message from an API error body.
func errorDetail(apiErr *openai.Error) string {
	if apiErr.Message != "" {
		return apiErr.Message
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if raw := apiErr.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &body) == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return DefaultErrorDetail
}
