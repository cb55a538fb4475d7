// Package genaitest provides a testify mock of genai.ChatCompleter.
package genaitest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"shopping-assistant/internal/common/genai"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req genai.Request) (*genai.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.Completion), args.Error(1)
}

// Reply builds a completion carrying content.
func Reply(content string) *genai.Completion {
	return &genai.Completion{
		Content: content,
		Model:   "test-model",
		Usage:   genai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// JSONMode matches requests sent with JSON output forced.
func JSONMode() interface{} {
	return mock.MatchedBy(func(req genai.Request) bool { return req.JSONMode })
}
