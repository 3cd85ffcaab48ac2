package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mhelmih/docureco/internal/errors"
)

// scriptedProvider replays canned replies (or errors) in order.
type scriptedProvider struct {
	replies []string
	errs    []error
	calls   int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) CompleteJSON(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return "", errors.New("script exhausted")
}

type extraction struct {
	Elements []string `json:"elements"`
}

func TestGenerateIntoParsesReply(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{"elements": ["Book", "Loan"]}`}}
	g := NewGateway(p, nil, WithBaseDelay(time.Millisecond))

	var out extraction
	require.NoError(t, g.GenerateInto(context.Background(), NewRequest(TaskExtractSDD, "sys", "prompt"), &out))
	assert.Equal(t, []string{"Book", "Loan"}, out.Elements)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, int64(0), g.Retries())
}

func TestGenerateIntoRetriesBadJSON(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`this is not json`,
		`{"elements": ["Book"]}`,
	}}
	g := NewGateway(p, nil, WithBaseDelay(time.Millisecond))

	var out extraction
	require.NoError(t, g.GenerateInto(context.Background(), NewRequest(TaskExtractSDD, "", "p"), &out))
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, int64(1), g.Retries())
}

func TestGenerateIntoGivesUpAfterBudget(t *testing.T) {
	p := &scriptedProvider{replies: []string{`x`, `x`, `x`, `x`, `x`}}
	g := NewGateway(p, nil, WithMaxRetries(2), WithBaseDelay(time.Millisecond))

	var out extraction
	err := g.GenerateInto(context.Background(), NewRequest(TaskExtractSDD, "", "p"), &out)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindLLMBadOutput))
	assert.Equal(t, 3, p.calls) // initial attempt + 2 retries
}

func TestGenerateIntoHonorsCancellation(t *testing.T) {
	p := &scriptedProvider{replies: []string{`bad`, `bad`, `bad`}}
	g := NewGateway(p, nil, WithBaseDelay(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out extraction
	err := g.GenerateInto(ctx, NewRequest(TaskExtractSDD, "", "p"), &out)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTimeout))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without language", "```\n[1, 2]\n```", `[1, 2]`},
		{"prose around object", `Here you go: {"a": 1} hope that helps`, `{"a": 1}`},
		{"prose around array", `Result: [1, 2]`, `[1, 2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestTemperatureDefaults(t *testing.T) {
	assert.InDelta(t, 0.1, TemperatureFor(TaskExtractSDD), 0.001)
	assert.InDelta(t, 0.0, TemperatureFor(TaskReconcileChanges), 0.001)
	assert.InDelta(t, 0.15, TemperatureFor(TaskClassifyDD), 0.001)
	// Unknown tasks fall back to the extraction temperature.
	assert.InDelta(t, 0.1, TemperatureFor("unknown"), 0.001)
}
