package routing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/nerdson/internal/llm"
)

func TestFallbackText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited", &llm.ProviderError{Kind: llm.KindRateLimited, Code: 429}, "Estamos com alta demanda. Tente novamente em instantes. 😊"},
		{"client with detail", &llm.ProviderError{Kind: llm.KindClient, Code: 400, Message: "Invalid model"}, "Erro da OpenAI (400): Invalid model"},
		{"client without detail", &llm.ProviderError{Kind: llm.KindClient, Code: 401}, "Erro da OpenAI (401): Erro na requisição"},
		{"server", &llm.ProviderError{Kind: llm.KindServer, Code: 503, Message: "overloaded"}, "Erro do servidor OpenAI (503)"},
		{"timeout", &llm.ProviderError{Kind: llm.KindTimeout}, "Estamos com instabilidade momentânea. Tente novamente em breve. 🙏"},
		{"transport", &llm.ProviderError{Kind: llm.KindTransport, Message: "dial tcp: connection refused"}, "Falha na conexão com a OpenAI: dial tcp: connection refused"},
		{"missing key", &llm.ProviderError{Kind: llm.KindConfig}, "Erro: chave da OpenAI não encontrada."},
		{"unexpected kind", &llm.ProviderError{Kind: llm.KindUnexpected}, "Erro inesperado. Tente novamente. 🚧"},
		{"wrapped", fmt.Errorf("completing: %w", &llm.ProviderError{Kind: llm.KindRateLimited}), RateLimitedText},
		{"plain error", errBoom, UnexpectedText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackText(tt.err))
		})
	}
}
