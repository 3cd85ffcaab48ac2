package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiProvider backs the gateway with Google's Generative AI SDK, using the
// native JSON response mode.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiProvider creates a Gemini-backed provider.
// model defaults to a flash-tier model when empty.
func NewGeminiProvider(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		logger: logger.With("component", "gemini", "model", model),
	}, nil
}

// Name identifies the backend in logs.
func (p *GeminiProvider) Name() string { return "gemini" }

// CompleteJSON sends a prompt and returns the raw JSON reply, retrying rate
// limits with exponential backoff before handing the response back to the
// gateway's parse loop.
func (p *GeminiProvider) CompleteJSON(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	var systemInstruction *genai.Content
	if system != "" {
		systemInstruction = genai.Text(system)[0]
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
	}

	resp, err := p.generateWithRetry(ctx, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content parts")
	}
	return candidate.Content.Parts[0].Text, nil
}

// generateWithRetry retries 429s with exponential backoff; other errors
// surface immediately.
func (p *GeminiProvider) generateWithRetry(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	const maxRetries = 4
	baseDelay := 5 * time.Second

	for attempt := 0; ; attempt++ {
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
		if err == nil {
			if attempt > 0 {
				p.logger.Info("request succeeded after retry", "attempt", attempt+1)
			}
			return resp, nil
		}

		msg := err.Error()
		rateLimited := strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
		if !rateLimited || attempt >= maxRetries {
			return nil, fmt.Errorf("gemini completion failed: %w", err)
		}

		delay := baseDelay * (1 << uint(attempt))
		p.logger.Warn("rate limit encountered, retrying with backoff",
			"attempt", attempt+1, "delay_seconds", delay.Seconds())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
