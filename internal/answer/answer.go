// Package answer abstracts the AI answer generation capability.
//
// The quota engine only cares about the contract: a question in, an answer
// plus its token cost out. Whether the answer comes from a live model, a
// cache, or the canned mock is a composition-time decision.
package answer

import "context"

// Answer is the result of generating a response to one question.
type Answer struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokensUsed"`
}

// Generator produces answers to user questions. Implementations may block;
// failures are reported as opaque upstream errors, never as domain errors.
type Generator interface {
	Generate(ctx context.Context, question string) (*Answer, error)
}
