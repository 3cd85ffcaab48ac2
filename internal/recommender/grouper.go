package recommender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

// Grouper merges classified diffs across a PR's commits into logical change
// sets. The grouping signal comes from the model; the partition constraint
// (every classification in exactly one set) is enforced here.
type Grouper struct {
	llm    LLM
	logger *slog.Logger
}

// NewGrouper builds a change grouper over the gateway.
func NewGrouper(gateway LLM, logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{llm: gateway, logger: logger.With("component", "grouper")}
}

// Group partitions the classifications into logical change sets. Duplicates
// from the model are dropped; classifications the model missed land in a
// catch-all set.
func (g *Grouper) Group(ctx context.Context, classifications []models.ChangeClassification, commits []models.Commit) ([]models.LogicalChangeSet, error) {
	if len(classifications) == 0 {
		return nil, nil
	}

	classificationsJSON, _ := json.MarshalIndent(classifications, "", "  ")
	messages := make([]map[string]string, 0, len(commits))
	for _, c := range commits {
		messages = append(messages, map[string]string{"commit_hash": c.SHA, "message": c.Message})
	}
	messagesJSON, _ := json.MarshalIndent(messages, "", "  ")

	var out struct {
		LogicalChangeSets []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Changes     []struct {
				File      string `json:"file"`
				CommitSHA string `json:"commit_hash"`
			} `json:"changes"`
		} `json:"logical_change_sets"`
	}
	req := llm.NewRequest(llm.TaskGroupChanges, groupSystemPrompt,
		groupPrompt(string(classificationsJSON), string(messagesJSON)))
	if err := g.llm.GenerateInto(ctx, req, &out); err != nil {
		return nil, err
	}

	// Resolve (file, commit) handles back to full classifications, keeping
	// the partition exact.
	type key struct{ file, sha string }
	remaining := make(map[key]models.ChangeClassification, len(classifications))
	for _, cl := range classifications {
		remaining[key{cl.File, cl.CommitSHA}] = cl
	}

	var sets []models.LogicalChangeSet
	for i, set := range out.LogicalChangeSets {
		lcs := models.LogicalChangeSet{
			ID:          fmt.Sprintf("CS-%03d", i+1),
			Name:        set.Name,
			Description: set.Description,
		}
		for _, ch := range set.Changes {
			k := key{ch.File, ch.CommitSHA}
			cl, ok := remaining[k]
			if !ok {
				// Already claimed by an earlier set, or invented.
				continue
			}
			delete(remaining, k)
			lcs.Changes = append(lcs.Changes, cl)
		}
		if len(lcs.Changes) > 0 {
			sets = append(sets, lcs)
		}
	}

	if len(remaining) > 0 {
		catchAll := models.LogicalChangeSet{
			ID:          fmt.Sprintf("CS-%03d", len(sets)+1),
			Name:        "Ungrouped changes",
			Description: "Changes the grouping pass did not place in any set",
		}
		// Restore input order for determinism.
		for _, cl := range classifications {
			if _, ok := remaining[key{cl.File, cl.CommitSHA}]; ok {
				catchAll.Changes = append(catchAll.Changes, cl)
				delete(remaining, key{cl.File, cl.CommitSHA})
			}
		}
		sets = append(sets, catchAll)
		g.logger.Warn("grouping left classifications unplaced", "count", len(catchAll.Changes))
	}

	g.logger.Info("grouped changes", "classifications", len(classifications), "change_sets", len(sets))
	return sets, nil
}
