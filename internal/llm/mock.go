package llm

import (
	"context"
	"sync"

	"github.com/soyeahso/nerdson/internal/domain"
)

// MockClient is a test double for Completer and Transcriber. It records the
// histories it was asked to complete.
type MockClient struct {
	CompleteFunc   func(ctx context.Context, history []domain.Turn) (string, error)
	TranscribeFunc func(ctx context.Context, mediaURL string) (string, error)

	mu    sync.Mutex
	calls [][]domain.Turn
}

func (m *MockClient) Complete(ctx context.Context, history []domain.Turn) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]domain.Turn(nil), history...))
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, history)
	}
	return "mock response", nil
}

func (m *MockClient) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, mediaURL)
	}
	return "mock transcription", nil
}

// Calls returns every history passed to Complete, in call order.
func (m *MockClient) Calls() [][]domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.Turn(nil), m.calls...)
}
