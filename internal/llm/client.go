// Package llm wraps the completion and transcription providers behind small
// interfaces and reports their failures as typed errors.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/nerdson/internal/domain"
)

// Completer turns a conversation history into the next assistant reply.
type Completer interface {
	Complete(ctx context.Context, history []domain.Turn) (string, error)
}

// Transcriber turns a remote audio attachment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// FailureKind classifies a provider failure.
type FailureKind string

const (
	KindRateLimited FailureKind = "rate_limited" // HTTP 429
	KindClient      FailureKind = "client"       // other 4xx
	KindServer      FailureKind = "server"       // 5xx
	KindTimeout     FailureKind = "timeout"
	KindTransport   FailureKind = "transport"
	KindConfig      FailureKind = "config" // missing API key
	KindUnexpected  FailureKind = "unexpected"
)

// ProviderError is returned when a provider call fails.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Code     int // HTTP status, when the provider answered
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or KindUnexpected when err is not
// a *ProviderError.
func KindOf(err error) FailureKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// KindForStatus maps an HTTP status to a failure kind.
func KindForStatus(status int) FailureKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindUnexpected
	}
}
