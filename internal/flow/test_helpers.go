package flow

import (
	"context"

	"github.com/modubiz/ConsultFlow/internal/genai"
)

// MockGenAIClient returns scripted responses in order for testing. Once the
// script runs out the last response repeats. A non-nil Err fails every call.
type MockGenAIClient struct {
	Responses []string
	Err       error
	Calls     int
}

func (m *MockGenAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.next()
}

func (m *MockGenAIClient) GenerateWithMessages(ctx context.Context, messages []genai.ChatMessage) (string, error) {
	return m.next()
}

func (m *MockGenAIClient) next() (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.Calls - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}
