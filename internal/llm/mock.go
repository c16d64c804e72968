package llm

import (
	"context"
	"strings"
	"time"
)

type mockGenerator struct{}

// NewMockGenerator returns a generator that echoes the text portion of the
// prompt (everything after the last "Text: " marker) back as its output.
func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}
	content := req.Prompt
	if idx := strings.LastIndex(content, "Text: "); idx >= 0 {
		content = content[idx+len("Text: "):]
	}
	return consumer(Chunk{
		Content: strings.TrimSpace(content),
		Latency: 5 * time.Millisecond,
	})
}
