package answer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockGenerator returns canned answers with simulated latency. Used in
// development and demo mode when no OpenAI API key is configured.
type MockGenerator struct {
	delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockGenerator creates a mock generator with the given simulated latency.
func NewMockGenerator(delay time.Duration) *MockGenerator {
	return &MockGenerator{
		delay: delay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var mockTemplates = []string{
	"Based on your question about %q, here's a comprehensive answer: this is a mocked response that simulates AI-generated content. In production this would come from a real model call.",
	"Thank you for asking about %q. The answer involves multiple factors; this is a simulated response used for development and testing.",
	"Regarding %q, here's what you need to know: this canned response demonstrates the chat flow end to end without calling an upstream model.",
	"Your question %q is interesting. Here's my analysis: this is a test response that mimics how an assistant would reply.",
}

func (g *MockGenerator) Generate(ctx context.Context, question string) (*Answer, error) {
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	template := mockTemplates[g.rng.Intn(len(mockTemplates))]
	g.mu.Unlock()

	text := fmt.Sprintf(template, truncate(question, 50))

	// Roughly one token per four characters, matching typical tokenizer density.
	tokens := (len(question) + len(text) + 3) / 4

	return &Answer{Text: text, TokensUsed: tokens}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Generator = (*MockGenerator)(nil)
