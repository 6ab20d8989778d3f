package answer

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/askmeter/internal/circuitbreaker"
	"github.com/mbd888/askmeter/internal/retry"
)

// ErrUnavailable is returned while the circuit is open after repeated
// upstream failures. Callers treat it like any other generation error.
var ErrUnavailable = errors.New("answer: generator temporarily unavailable")

const breakerKey = "generator"

// ResilientGenerator wraps a Generator with bounded retries and a circuit
// breaker, so a flapping upstream model degrades into fast failures instead
// of piling up blocked requests.
type ResilientGenerator struct {
	inner       Generator
	breaker     *circuitbreaker.Breaker
	maxAttempts int
	baseDelay   time.Duration
}

// NewResilientGenerator wraps inner with 3 retry attempts and a breaker that
// opens after 5 consecutive failed generations.
func NewResilientGenerator(inner Generator) *ResilientGenerator {
	return &ResilientGenerator{
		inner:       inner,
		breaker:     circuitbreaker.New(5, 30*time.Second),
		maxAttempts: 3,
		baseDelay:   200 * time.Millisecond,
	}
}

func (g *ResilientGenerator) Generate(ctx context.Context, question string) (*Answer, error) {
	if !g.breaker.Allow(breakerKey) {
		return nil, ErrUnavailable
	}

	var a *Answer
	err := retry.Do(ctx, g.maxAttempts, g.baseDelay, func() error {
		var genErr error
		a, genErr = g.inner.Generate(ctx, question)
		if genErr != nil && ctx.Err() != nil {
			return retry.Permanent(genErr)
		}
		return genErr
	})
	if err != nil {
		g.breaker.RecordFailure(breakerKey)
		return nil, err
	}

	g.breaker.RecordSuccess(breakerKey)
	return a, nil
}

var _ Generator = (*ResilientGenerator)(nil)
