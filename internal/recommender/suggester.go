package recommender

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

// anomalyTarget is the pseudo-document findings without a documentation
// anchor (gaps, anomalies) are grouped under.
const anomalyTarget = "traceability"

// Suggester is the recommendation emitter: it filters high-priority
// findings, groups them by target document, generates per-document
// recommendations, and suppresses duplicates of recommendations already
// posted on the PR.
type Suggester struct {
	llm         LLM
	logger      *slog.Logger
	concurrency int
}

// NewSuggester builds a recommendation emitter over the gateway.
func NewSuggester(gateway LLM, concurrency int, logger *slog.Logger) *Suggester {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{llm: gateway, logger: logger.With("component", "suggester"), concurrency: concurrency}
}

// Emit runs filter -> group -> suggest -> dedup. docContents maps document
// paths to their current content (may be sparse); prior holds the
// recommendation groups already posted on the PR.
func (s *Suggester) Emit(ctx context.Context, findings []models.Finding, sets []models.LogicalChangeSet, docContents map[string]string, prior []models.DocumentRecommendations) ([]models.DocumentRecommendations, error) {
	// Filter: only high-priority findings proceed; nothing is ever
	// synthesized past this point.
	var retained []models.Finding
	for _, f := range findings {
		if f.HighPriority() {
			retained = append(retained, f)
		}
	}
	if len(retained) == 0 {
		s.logger.Info("no high-priority findings, nothing to emit")
		return nil, nil
	}

	// Group by target document.
	byDoc := make(map[string][]models.Finding)
	for _, f := range retained {
		target := f.FilePath
		if f.AnomalyKind != "" || target == "" {
			target = anomalyTarget
		}
		byDoc[target] = append(byDoc[target], f)
	}
	targets := make([]string, 0, len(byDoc))
	for target := range byDoc {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	setsJSON, _ := json.MarshalIndent(sets, "", "  ")

	results := make([]*models.DocumentRecommendations, len(targets))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			group, err := s.suggestForDocument(gctx, target, byDoc[target], docContents[target], string(setsJSON))
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = group
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var emitted []models.DocumentRecommendations
	for _, group := range results {
		if group == nil {
			continue
		}
		group.Recommendations = dropDuplicates(group.Summary.TargetDocument, group.Recommendations, prior)
		if len(group.Recommendations) == 0 {
			continue
		}
		recount(group)
		emitted = append(emitted, *group)
	}

	s.logger.Info("emitted recommendations",
		"retained_findings", len(retained), "documents", len(emitted))
	return emitted, nil
}

func (s *Suggester) suggestForDocument(ctx context.Context, target string, findings []models.Finding, content, setsJSON string) (*models.DocumentRecommendations, error) {
	findingsJSON, _ := json.MarshalIndent(findings, "", "  ")

	var out struct {
		Summary struct {
			Overview         string   `json:"overview"`
			SectionsAffected []string `json:"sections_affected"`
			AnomalyFiles     []string `json:"traceability_anomaly_affected_files"`
			AnomalyFix       string   `json:"how_to_fix_traceability_anomaly"`
		} `json:"summary"`
		Recommendations []struct {
			Section            string `json:"section"`
			RecommendationType string `json:"recommendation_type"`
			Priority           string `json:"priority"`
			WhatToUpdate       string `json:"what_to_update"`
			WhereToUpdate      string `json:"where_to_update"`
			WhyUpdateNeeded    string `json:"why_update_needed"`
			SuggestedContent   string `json:"suggested_content"`
		} `json:"recommendations"`
	}
	req := llm.NewRequest(llm.TaskSuggestUpdates, suggestSystemPrompt,
		suggestPrompt(target, string(findingsJSON), content, setsJSON))
	if err := s.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	group := &models.DocumentRecommendations{
		Summary: models.DocumentSummary{
			TargetDocument:   target,
			Overview:         out.Summary.Overview,
			SectionsAffected: out.Summary.SectionsAffected,
			AnomalyFiles:     out.Summary.AnomalyFiles,
			AnomalyFix:       out.Summary.AnomalyFix,
		},
	}
	for _, r := range out.Recommendations {
		recType := models.RecommendationType(r.RecommendationType)
		if !models.ValidRecommendationType(recType) {
			recType = models.RecommendationReview
		}
		priority := models.Severity(r.Priority)
		if !models.ValidSeverity(priority) {
			priority = models.SeverityModerate
		}
		group.Recommendations = append(group.Recommendations, models.Recommendation{
			TargetDocument:     target,
			Section:            r.Section,
			RecommendationType: recType,
			Priority:           priority,
			WhatToUpdate:       r.WhatToUpdate,
			WhereToUpdate:      r.WhereToUpdate,
			WhyUpdateNeeded:    r.WhyUpdateNeeded,
			SuggestedContent:   r.SuggestedContent,
		})
	}
	return group, nil
}

// dropDuplicates removes recommendations functionally equivalent to ones
// already posted: same (target document, section, recommendation type).
func dropDuplicates(target string, fresh []models.Recommendation, prior []models.DocumentRecommendations) []models.Recommendation {
	type key struct {
		doc, section string
		recType      models.RecommendationType
	}
	posted := make(map[key]bool)
	for _, group := range prior {
		for _, r := range group.Recommendations {
			posted[key{group.Summary.TargetDocument, r.Section, r.RecommendationType}] = true
		}
	}

	var kept []models.Recommendation
	for _, r := range fresh {
		if posted[key{target, r.Section, r.RecommendationType}] {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// recount refreshes the per-document priority tallies after deduplication.
func recount(group *models.DocumentRecommendations) {
	summary := &group.Summary
	summary.Total = len(group.Recommendations)
	summary.HighPriority, summary.MediumPriority, summary.LowPriority = 0, 0, 0
	for _, r := range group.Recommendations {
		switch r.Priority {
		case models.SeverityFundamental, models.SeverityMajor:
			summary.HighPriority++
		case models.SeverityModerate:
			summary.MediumPriority++
		default:
			summary.LowPriority++
		}
	}
}
