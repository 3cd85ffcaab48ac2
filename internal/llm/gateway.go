// Package llm is the single funnel for model calls. Every call either
// extracts structured data or classifies within a fixed vocabulary, so the
// gateway treats the model as an unreliable typed function: output is
// requested as JSON, strictly unmarshaled into the caller's type, and retried
// with backoff when it does not parse.
package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/mhelmih/docureco/internal/errors"
)

// Provider is one concrete model backend.
type Provider interface {
	// CompleteJSON sends a prompt and returns the raw JSON text of the reply.
	CompleteJSON(ctx context.Context, system, prompt string, temperature float32) (string, error)
	// Name identifies the backend in logs.
	Name() string
}

// Request is one typed generation call.
type Request struct {
	// Task attributes the call for cost tracing (e.g. "extract_sdd").
	Task string
	// System and Prompt are the two message parts.
	System string
	Prompt string
	// Temperature is the sampling temperature for this call; NewRequest
	// fills it from the task defaults.
	Temperature float32
}

// Gateway wraps a provider with strict output parsing and retries.
type Gateway struct {
	provider   Provider
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration

	retries atomic.Int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxRetries overrides the parse-retry budget (default 3).
func WithMaxRetries(n int) Option {
	return func(g *Gateway) { g.maxRetries = n }
}

// WithBaseDelay overrides the first backoff delay (default 2s).
func WithBaseDelay(d time.Duration) Option {
	return func(g *Gateway) { g.baseDelay = d }
}

// NewGateway builds a gateway over the given provider.
func NewGateway(provider Provider, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		provider:   provider,
		logger:     logger.With("component", "llm", "provider", provider.Name()),
		maxRetries: 3,
		baseDelay:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Retries returns the number of retried attempts since construction. The
// pipelines report it in their run stats.
func (g *Gateway) Retries() int64 {
	return g.retries.Load()
}

// GenerateInto runs the request and unmarshals the reply into out. A reply
// that fails to parse (or a transport error) is retried up to the budget with
// exponential backoff; persistent failure surfaces as an LLMBadOutput error,
// a blown deadline as Timeout.
func (g *Gateway) GenerateInto(ctx context.Context, req Request, out any) error {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.retries.Add(1)
			delay := g.baseDelay * (1 << uint(attempt-1))
			g.logger.Warn("retrying llm call",
				"task", req.Task, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return apperrors.Timeout(ctx.Err(), "llm call cancelled during backoff").
					WithContext("task", req.Task)
			}
		}

		raw, err := g.provider.CompleteJSON(ctx, req.System, req.Prompt, req.Temperature)
		if err != nil {
			if ctx.Err() != nil {
				return apperrors.Timeout(err, "llm call exceeded deadline").WithContext("task", req.Task)
			}
			lastErr = err
			continue
		}

		if err := json.Unmarshal([]byte(ExtractJSON(raw)), out); err != nil {
			lastErr = err
			continue
		}

		g.logger.Debug("llm call completed",
			"task", req.Task, "attempts", attempt+1, "response_length", len(raw))
		return nil
	}

	return apperrors.LLMBadOutput(lastErr, "structured output failed validation after retries").
		WithContext("task", req.Task).
		WithContext("attempts", g.maxRetries+1)
}

// ExtractJSON strips Markdown code fences and surrounding prose that models
// occasionally wrap around a JSON reply.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}
	// Fall back to the outermost JSON value when the reply carries prose.
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end > start {
		return s[start : end+1]
	}
	return s
}
