// Package llm defines the optional text-generation collaborator used for label refinement
// and insight synthesis. A missing or failing generator is an ordinary outcome: callers
// branch on Result.OK and use their deterministic fallback.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/formbricks/insights/internal/huberrors"
	"golang.org/x/time/rate"
)

// Prompt is a single completion request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
	// Schema, when set, asks the provider for JSON output matching this Go value's shape.
	Schema     any
	SchemaName string
}

// Generator completes prompts.
type Generator interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Reasons reported on unsuccessful results.
const (
	ReasonDisabled    = "disabled"
	ReasonUnavailable = "unavailable"
	ReasonEmpty       = "empty"
)

// Result is the outcome of an optional generation call.
type Result struct {
	Text   string
	OK     bool
	Reason string
	Err    error
}

// Try calls g and folds absence, failure and empty output into Result.
// A cancelled context is reported through Err so callers can stop early.
func Try(ctx context.Context, g Generator, p Prompt) Result {
	if g == nil {
		return Result{Reason: ReasonDisabled}
	}

	text, err := g.Complete(ctx, p)
	if err != nil {
		return Result{Reason: ReasonUnavailable, Err: huberrors.NewGenerationError("completion failed", err)}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Reason: ReasonEmpty}
	}

	return Result{Text: text, OK: true}
}

// Cancelled reports whether the result failed because ctx was done.
func (r Result) Cancelled() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// RateLimited wraps a Generator with a token-bucket limiter.
type RateLimited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimited limits next to rps requests per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimited(next Generator, rps float64, burst int) *RateLimited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	if burst < 1 {
		burst = 1
	}

	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Complete waits for a token and forwards the prompt.
func (r *RateLimited) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	return r.next.Complete(ctx, p)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, p Prompt) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}
