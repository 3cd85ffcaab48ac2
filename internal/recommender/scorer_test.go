package recommender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

func rawFindings(n int) []models.Finding {
	findings := make([]models.Finding, n)
	for i := range findings {
		findings[i] = models.Finding{
			ChangeSetID: "CS-001",
			ElementKind: models.KindDesignElement,
			ElementID:   models.NewDesignElementID("docs/sdd.md", i+1),
			PathType:    models.PathDirect,
		}
	}
	return findings
}

func TestAssessPreservesOrderAndLength(t *testing.T) {
	fake := newFakeLLM()
	fake.on(llm.TaskAssessFindings, func(req llm.Request) (any, error) {
		return map[string]any{
			"assessed_findings": []map[string]string{
				{"likelihood": "Very Likely", "severity": "Major", "reasoning": "first"},
				{"likelihood": "Possibly", "severity": "Minor", "reasoning": "second"},
			},
		}, nil
	})

	scorer := NewScorer(fake, 2, nil)
	scored, err := scorer.Assess(context.Background(), rawFindings(2), nil)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, models.VeryLikely, scored[0].Likelihood)
	assert.Equal(t, models.SeverityMajor, scored[0].Severity)
	assert.Equal(t, "DE-docs/sdd.md-001", scored[0].ElementID)
	assert.Equal(t, models.SeverityMinor, scored[1].Severity)
	assert.Equal(t, "DE-docs/sdd.md-002", scored[1].ElementID)
}

func TestAssessRetriesOnInvalidEnum(t *testing.T) {
	fake := newFakeLLM()
	call := 0
	fake.on(llm.TaskAssessFindings, func(req llm.Request) (any, error) {
		call++
		if call == 1 {
			return map[string]any{
				"assessed_findings": []map[string]string{
					{"likelihood": "Definitely", "severity": "Huge"},
				},
			}, nil
		}
		return map[string]any{
			"assessed_findings": []map[string]string{
				{"likelihood": "Likely", "severity": "Moderate", "reasoning": "ok"},
			},
		}, nil
	})

	scorer := NewScorer(fake, 1, nil)
	scored, err := scorer.Assess(context.Background(), rawFindings(1), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, call)
	assert.Equal(t, models.Likely, scored[0].Likelihood)
}

func TestAssessFailsOnLengthMismatch(t *testing.T) {
	fake := newFakeLLM()
	fake.reply(llm.TaskAssessFindings, map[string]any{
		"assessed_findings": []map[string]string{
			{"likelihood": "Likely", "severity": "Moderate"},
		},
	})

	scorer := NewScorer(fake, 1, nil)
	_, err := scorer.Assess(context.Background(), rawFindings(3), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidationFailed))
}

func TestAssessEmptyInput(t *testing.T) {
	scorer := NewScorer(newFakeLLM(), 1, nil)
	scored, err := scorer.Assess(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, scored)
}
