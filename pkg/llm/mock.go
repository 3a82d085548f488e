package llm

import "context"

// MockProvider is an in-memory Provider for tests. It records every
// request it receives and answers with Response, with Err, or through
// ChatFunc when one is set.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Requests holds every request seen, in order.
	Requests []ChatRequest
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	promptTokens := 0
	for _, msg := range req.Messages {
		promptTokens += len(msg.Content)
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: len(m.Response),
			TotalTokens:      promptTokens + len(m.Response),
		},
	}, nil
}

var _ Provider = (*MockProvider)(nil)
