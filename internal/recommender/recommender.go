// Package recommender analyzes a pull request against the persisted
// traceability map and emits prioritized documentation-update
// recommendations. The pipeline is read-only with respect to the map and
// linear per run: classify, group, trace, score, filter, suggest, emit.
package recommender

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/storage"
)

// LLM is the slice of the gateway this package consumes.
type LLM interface {
	GenerateInto(ctx context.Context, req llm.Request, out any) error
}

// PRSource fetches pull requests and file content from the VCS host.
type PRSource interface {
	FetchPullRequest(ctx context.Context, owner, repo string, number int) (*models.PullRequest, error)
	FileContentAt(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// Analysis is one PR run's output.
type Analysis struct {
	Repository      string                           `json:"repository"`
	PRNumber        int                              `json:"pr_number"`
	Findings        []models.Finding                 `json:"findings"`
	Recommendations []models.DocumentRecommendations `json:"recommendations"`
	Stats           models.RunStats                  `json:"stats"`
	// NoBaseline marks a run skipped because no map exists for the PR's
	// base branch.
	NoBaseline bool `json:"no_baseline,omitempty"`
}

// Analyzer wires the PR analysis pipeline.
type Analyzer struct {
	classifier *Classifier
	grouper    *Grouper
	tracer     *Tracer
	scorer     *Scorer
	suggester  *Suggester
	store      storage.Store
	source     PRSource
	logger     *slog.Logger
}

// NewAnalyzer builds the analyzer from its stages.
func NewAnalyzer(gateway LLM, store storage.Store, source PRSource, concurrency int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "recommender")
	return &Analyzer{
		classifier: NewClassifier(gateway, logger),
		grouper:    NewGrouper(gateway, logger),
		tracer:     NewTracer(logger),
		scorer:     NewScorer(gateway, concurrency, logger),
		suggester:  NewSuggester(gateway, concurrency, logger),
		store:      store,
		source:     source,
		logger:     logger,
	}
}

// Run analyzes one PR. prior carries recommendation groups already posted on
// the PR, for deduplication. A fatal error means no recommendations this
// run; there is never a partial emission.
func (a *Analyzer) Run(ctx context.Context, owner, repo string, number int, prior []models.DocumentRecommendations) (*Analysis, error) {
	stats := models.RunStats{RunID: uuid.NewString(), Extra: map[string]int{}}
	analysis := &Analysis{Repository: owner + "/" + repo, PRNumber: number}

	pr, err := a.source.FetchPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, apperrors.ScanFailed(err, "fetch pull request")
	}

	m, err := a.store.Get(ctx, analysis.Repository, pr.BaseBranch)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Info("no baseline map for base branch, skipping analysis",
			"repository", analysis.Repository, "branch", pr.BaseBranch)
		analysis.NoBaseline = true
		return analysis, nil
	}
	if err != nil {
		return nil, apperrors.GraphBackend(err, "load baseline map")
	}

	classifications, err := a.classifier.Classify(ctx, pr.Commits)
	if err != nil {
		return nil, err
	}
	stats.Extra["classifications"] = len(classifications)

	sets, err := a.grouper.Group(ctx, classifications, pr.Commits)
	if err != nil {
		return nil, err
	}
	stats.Extra["change_sets"] = len(sets)

	findings := a.tracer.Trace(ctx, m, sets)
	scored, err := a.scorer.Assess(ctx, findings, sets)
	if err != nil {
		return nil, err
	}
	analysis.Findings = scored
	stats.Extra["findings"] = len(scored)

	docContents := a.fetchDocContents(ctx, owner, repo, pr.HeadSHA, scored)
	recommendations, err := a.suggester.Emit(ctx, scored, sets, docContents, prior)
	if err != nil {
		return nil, err
	}
	analysis.Recommendations = recommendations
	stats.Extra["recommendations"] = countRecommendations(recommendations)

	stats.Requirements = len(m.Requirements)
	stats.DesignElements = len(m.DesignElements)
	stats.CodeComponents = len(m.CodeComponents)
	stats.Links = len(m.Links)
	if counter, ok := any(a.classifier.llm).(interface{ Retries() int64 }); ok {
		stats.LLMRetries = int(counter.Retries())
	}
	analysis.Stats = stats

	a.logger.Info("pr analysis complete",
		"repository", analysis.Repository, "pr", number,
		"findings", len(scored),
		"recommendation_documents", len(recommendations))
	return analysis, nil
}

// fetchDocContents loads the current content of each target document for
// suggestion context. Failures degrade to empty content rather than failing
// the run.
func (a *Analyzer) fetchDocContents(ctx context.Context, owner, repo, ref string, findings []models.Finding) map[string]string {
	contents := make(map[string]string)
	for _, f := range findings {
		if !f.HighPriority() || f.FilePath == "" || f.AnomalyKind != "" {
			continue
		}
		if _, done := contents[f.FilePath]; done {
			continue
		}
		content, err := a.source.FileContentAt(ctx, owner, repo, f.FilePath, ref)
		if err != nil {
			a.logger.Warn("failed to fetch document content", "file", f.FilePath, "error", err)
			content = ""
		}
		contents[f.FilePath] = content
	}
	return contents
}

func countRecommendations(groups []models.DocumentRecommendations) int {
	n := 0
	for _, g := range groups {
		n += len(g.Recommendations)
	}
	return n
}
