package genai

import (
	"context"
	"sync"
)

// MockTranscriber returns a canned transcript (for tests).
type MockTranscriber struct {
	mu    sync.Mutex
	Text  string
	Err   error
	Calls []Audio
}

// NewMockTranscriber creates a MockTranscriber returning text.
func NewMockTranscriber(text string) *MockTranscriber {
	return &MockTranscriber{Text: text}
}

// Transcribe records the clip and returns the configured result.
func (m *MockTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, audio)
	return m.Text, m.Err
}
