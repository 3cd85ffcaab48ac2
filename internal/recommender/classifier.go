package recommender

import (
	"context"
	"encoding/json"
	"log/slog"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

// Classifier assigns the What/Where/Why/How tuple to each changed file, one
// batched call per PR covering all commits.
type Classifier struct {
	llm    LLM
	logger *slog.Logger
}

// NewClassifier builds a change classifier over the gateway.
func NewClassifier(gateway LLM, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{llm: gateway, logger: logger.With("component", "classifier")}
}

// Classify produces one classification per changed file per commit. Unknown
// enum values are corrected deterministically where possible (volume is
// recomputed from line counts) and rejected otherwise.
func (c *Classifier) Classify(ctx context.Context, commits []models.Commit) ([]models.ChangeClassification, error) {
	if len(commits) == 0 {
		return nil, nil
	}

	type filePayload struct {
		Filename  string `json:"file"`
		Status    string `json:"status"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
		Patch     string `json:"patch,omitempty"`
	}
	type commitPayload struct {
		SHA     string        `json:"commit_hash"`
		Message string        `json:"commit_message"`
		Files   []filePayload `json:"files"`
	}
	payload := make([]commitPayload, 0, len(commits))
	lines := make(map[[2]string]int)       // (sha, file) -> changed lines
	previous := make(map[[2]string]string) // (sha, file) -> pre-rename path
	for _, commit := range commits {
		cp := commitPayload{SHA: commit.SHA, Message: commit.Message}
		for _, f := range commit.Files {
			cp.Files = append(cp.Files, filePayload{f.Filename, f.Status, f.Additions, f.Deletions, f.Patch})
			lines[[2]string{commit.SHA, f.Filename}] = f.Additions + f.Deletions
			if f.PreviousFilename != "" {
				previous[[2]string{commit.SHA, f.Filename}] = f.PreviousFilename
			}
		}
		payload = append(payload, cp)
	}
	payloadJSON, _ := json.MarshalIndent(payload, "", "  ")

	var out struct {
		Commits []struct {
			SHA             string `json:"commit_hash"`
			Message         string `json:"commit_message"`
			Classifications []struct {
				File      string `json:"file"`
				Type      string `json:"type"`
				Scope     string `json:"scope"`
				Nature    string `json:"nature"`
				Volume    string `json:"volume"`
				Reasoning string `json:"reasoning"`
			} `json:"classifications"`
		} `json:"commits"`
	}
	req := llm.NewRequest(llm.TaskClassifyChanges, classifySystemPrompt, classifyPrompt(string(payloadJSON)))
	if err := c.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	var classifications []models.ChangeClassification
	for _, commit := range out.Commits {
		for _, cl := range commit.Classifications {
			classification := models.ChangeClassification{
				File:         cl.File,
				PreviousFile: previous[[2]string{commit.SHA, cl.File}],
				Type:         models.ChangeType(cl.Type),
				Scope:        models.ChangeScope(cl.Scope),
				Nature:       models.ChangeNature(cl.Nature),
				Volume:       models.ChangeVolume(cl.Volume),
				Reasoning:    cl.Reasoning,
				CommitSHA:    commit.SHA,
			}
			if !models.ValidChangeType(classification.Type) {
				return nil, apperrors.ValidationFailedf("change type %q is out of vocabulary", cl.Type)
			}
			if !models.ValidChangeScope(classification.Scope) {
				return nil, apperrors.ValidationFailedf("change scope %q is out of vocabulary", cl.Scope)
			}
			if !models.ValidChangeNature(classification.Nature) {
				classification.Nature = models.NatureOther
			}
			if !models.ValidChangeVolume(classification.Volume) {
				// Volume is derivable; recompute instead of rejecting.
				classification.Volume = models.VolumeForLines(lines[[2]string{commit.SHA, cl.File}])
			}
			classifications = append(classifications, classification)
		}
	}

	c.logger.Info("classified changes", "commits", len(commits), "classifications", len(classifications))
	return classifications, nil
}
