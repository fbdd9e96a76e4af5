package routing

import (
	"errors"
	"fmt"

	"github.com/soyeahso/nerdson/internal/llm"
)

// User-facing replies for completion failures. They are stored in the
// history and sent like any other reply.
const (
	RateLimitedText = "Estamos com alta demanda. Tente novamente em instantes. 😊"
	TimeoutText     = "Estamos com instabilidade momentânea. Tente novamente em breve. 🙏"
	MissingKeyText  = "Erro: chave da OpenAI não encontrada."
	UnexpectedText  = "Erro inesperado. Tente novamente. 🚧"
)

// FallbackText maps a completion failure to the reply the user sees.
func FallbackText(err error) string {
	var pe *llm.ProviderError
	if !errors.As(err, &pe) {
		return UnexpectedText
	}

	switch pe.Kind {
	case llm.KindRateLimited:
		return RateLimitedText
	case llm.KindClient:
		detail := pe.Message
		if detail == "" {
			detail = llm.DefaultErrorDetail
		}
		return fmt.Sprintf("Erro da OpenAI (%d): %s", pe.Code, detail)
	case llm.KindServer:
		return fmt.Sprintf("Erro do servidor OpenAI (%d)", pe.Code)
	case llm.KindTimeout:
		return TimeoutText
	case llm.KindTransport:
		return fmt.Sprintf("Falha na conexão com a OpenAI: %s", pe.Message)
	case llm.KindConfig:
		return MissingKeyText
	default:
		return UnexpectedText
	}
}
