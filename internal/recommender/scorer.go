package recommender

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

// scoreBatchSize bounds how many findings one assessment call carries.
const scoreBatchSize = 20

// Scorer attaches likelihood and severity to findings. Batches run in
// parallel; within a batch the model must return exactly one assessment per
// finding, in order, with valid enum values - otherwise the whole batch is
// retried, then failed.
type Scorer struct {
	llm         LLM
	logger      *slog.Logger
	concurrency int
}

// NewScorer builds a finding scorer over the gateway.
func NewScorer(gateway LLM, concurrency int, logger *slog.Logger) *Scorer {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{llm: gateway, logger: logger.With("component", "scorer"), concurrency: concurrency}
}

// Assess returns the findings with likelihood, severity, and reasoning
// filled in, preserving input order.
func (s *Scorer) Assess(ctx context.Context, findings []models.Finding, sets []models.LogicalChangeSet) ([]models.Finding, error) {
	if len(findings) == 0 {
		return nil, nil
	}
	setsJSON, _ := json.MarshalIndent(sets, "", "  ")

	assessed := make([]models.Finding, len(findings))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for start := 0; start < len(findings); start += scoreBatchSize {
		start := start
		end := start + scoreBatchSize
		if end > len(findings) {
			end = len(findings)
		}
		batch := findings[start:end]
		g.Go(func() error {
			scored, err := s.assessBatch(gctx, batch, string(setsJSON))
			if err != nil {
				return err
			}
			mu.Lock()
			copy(assessed[start:end], scored)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assessed, nil
}

// assessBatch runs one batch with a single full-batch retry on contract
// violations (wrong length or invalid enums).
func (s *Scorer) assessBatch(ctx context.Context, batch []models.Finding, setsJSON string) ([]models.Finding, error) {
	findingsJSON, _ := json.MarshalIndent(batch, "", "  ")

	run := func() ([]models.Finding, error) {
		var out struct {
			AssessedFindings []struct {
				Likelihood string `json:"likelihood"`
				Severity   string `json:"severity"`
				Reasoning  string `json:"reasoning"`
			} `json:"assessed_findings"`
		}
		req := llm.NewRequest(llm.TaskAssessFindings, assessSystemPrompt,
			assessPrompt(string(findingsJSON), setsJSON))
		if err := s.llm.GenerateInto(ctx, req, &out); err != nil {
			return nil, err
		}

		if len(out.AssessedFindings) != len(batch) {
			return nil, apperrors.ValidationFailedf("assessment returned %d entries for %d findings",
				len(out.AssessedFindings), len(batch))
		}
		scored := make([]models.Finding, len(batch))
		for i, a := range out.AssessedFindings {
			likelihood := models.Likelihood(a.Likelihood)
			severity := models.Severity(a.Severity)
			if !models.ValidLikelihood(likelihood) {
				return nil, apperrors.ValidationFailedf("likelihood %q is out of vocabulary", a.Likelihood)
			}
			if !models.ValidSeverity(severity) {
				return nil, apperrors.ValidationFailedf("severity %q is out of vocabulary", a.Severity)
			}
			scored[i] = batch[i]
			scored[i].Likelihood = likelihood
			scored[i].Severity = severity
			scored[i].Reasoning = a.Reasoning
		}
		return scored, nil
	}

	scored, err := run()
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("assessment batch violated its contract, retrying", "error", err)
		scored, err = run()
	}
	return scored, err
}
