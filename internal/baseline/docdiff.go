package baseline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mhelmih/docureco/internal/llm"
	"github.com/mhelmih/docureco/internal/models"
)

// ElementFields is the flat field bag an element-level change carries. Which
// fields are populated depends on the element kind (requirements have titles
// and priorities, design elements have names).
type ElementFields struct {
	ReferenceID string `json:"reference_id"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Section     string `json:"section,omitempty"`
}

// AddedElement is a document node that appeared in the new revision.
type AddedElement struct {
	ElementType models.NodeKind `json:"element_type"`
	Details     ElementFields   `json:"details"`
}

// ModifiedElement is a document node whose source section changed. Changes
// holds only the altered fields; a value may be a plain string or a
// {"from": ..., "to": ...} pair.
type ModifiedElement struct {
	ReferenceID string                     `json:"reference_id"`
	ElementType models.NodeKind            `json:"element_type"`
	Changes     map[string]json.RawMessage `json:"changes"`
}

// DeletedElement is a document node removed from the source.
type DeletedElement struct {
	ReferenceID string          `json:"reference_id"`
	ElementType models.NodeKind `json:"element_type"`
}

// DocChanges is the reconciled change set for one documentation file.
type DocChanges struct {
	FilePath string
	Added    []AddedElement
	Modified []ModifiedElement
	Deleted  []DeletedElement
}

// Empty reports whether the file produced no element-level changes.
func (c *DocChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// ChangedValue resolves a field delta to its post-change value, accepting
// either a plain JSON string or a {"from", "to"} pair.
func ChangedValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var pair struct {
		To string `json:"to"`
	}
	if err := json.Unmarshal(raw, &pair); err == nil {
		return pair.To
	}
	return strings.TrimSpace(string(raw))
}

// groundTruthElement is one existing node of the analyzed file, handed to the
// reconciliation pass as the source of truth.
type groundTruthElement struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	ElementType string `json:"element_type"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Section     string `json:"section,omitempty"`
}

// DiffAnalyzer detects element-level changes between two revisions of one
// documentation file using the propose/reconcile protocol: a warm first pass
// casts a wide net, a deterministic second pass corrects add/modify
// misclassification against the current map.
type DiffAnalyzer struct {
	llm    LLM
	logger *slog.Logger
}

// NewDiffAnalyzer builds a diff analyzer over the gateway.
func NewDiffAnalyzer(gateway LLM, logger *slog.Logger) *DiffAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiffAnalyzer{llm: gateway, logger: logger.With("component", "docdiff")}
}

// Analyze produces the reconciled change set for one file. status is the
// VCS-reported file status; a removed document deletes every element the map
// holds for it without consulting the model.
func (a *DiffAnalyzer) Analyze(ctx context.Context, filePath, oldContent, newContent, status string, m *models.BaselineMap) (*DocChanges, error) {
	groundTruth := groundTruthForFile(m, filePath)

	if status == models.FileStatusRemoved {
		changes := &DocChanges{FilePath: filePath}
		for _, gt := range groundTruth {
			changes.Deleted = append(changes.Deleted, DeletedElement{
				ReferenceID: gt.ReferenceID,
				ElementType: models.NodeKind(gt.ElementType),
			})
		}
		a.logger.Info("document removed, all elements deleted",
			"file", filePath, "deleted", len(changes.Deleted))
		return changes, nil
	}

	// Pass 1: propose candidates.
	var proposed struct {
		DetectedChanges []struct {
			ElementFields
			ElementType        string `json:"element_type"`
			DetectedChangeType string `json:"detected_change_type"`
		} `json:"detected_changes"`
	}
	req := llm.NewRequest(llm.TaskProposeDocChanges, proposeChangesSystemPrompt,
		proposeChangesPrompt(oldContent, newContent, filePath))
	if err := a.llm.GenerateInto(ctx, req, &proposed); err != nil {
		return nil, err
	}
	if len(proposed.DetectedChanges) == 0 {
		return &DocChanges{FilePath: filePath}, nil
	}

	// Pass 2: reconcile against ground truth, temperature zero.
	var reconciled struct {
		Added    []AddedElement    `json:"added"`
		Modified []ModifiedElement `json:"modified"`
		Deleted  []DeletedElement  `json:"deleted"`
	}
	candidatesJSON, _ := json.MarshalIndent(proposed.DetectedChanges, "", "  ")
	groundTruthJSON, _ := json.MarshalIndent(groundTruth, "", "  ")
	req = llm.NewRequest(llm.TaskReconcileChanges, reconcileChangesSystemPrompt,
		reconcileChangesPrompt(string(candidatesJSON), string(groundTruthJSON)))
	if err := a.llm.GenerateInto(ctx, req, &reconciled); err != nil {
		return nil, err
	}

	changes := &DocChanges{
		FilePath: filePath,
		Added:    reconciled.Added,
		Modified: reconciled.Modified,
		Deleted:  reconciled.Deleted,
	}
	a.enforceReconciliation(changes, groundTruth)

	a.logger.Info("document analyzed",
		"file", filePath,
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"deleted", len(changes.Deleted))
	return changes, nil
}

// enforceReconciliation applies the classification rules regardless of what
// the model returned: an addition whose reference exists in ground truth is
// a modification, a modification whose reference does not is an addition.
func (a *DiffAnalyzer) enforceReconciliation(changes *DocChanges, groundTruth []groundTruthElement) {
	known := make(map[string]bool, len(groundTruth))
	for _, gt := range groundTruth {
		known[gt.ReferenceID] = true
	}

	var added []AddedElement
	for _, add := range changes.Added {
		if normalizeKind(&add.ElementType); known[add.Details.ReferenceID] {
			a.logger.Debug("reclassifying addition as modification", "reference_id", add.Details.ReferenceID)
			changes.Modified = append(changes.Modified, ModifiedElement{
				ReferenceID: add.Details.ReferenceID,
				ElementType: add.ElementType,
				Changes:     fieldsToChanges(add.Details),
			})
			continue
		}
		added = append(added, add)
	}
	changes.Added = added

	var modified []ModifiedElement
	for _, mod := range changes.Modified {
		if normalizeKind(&mod.ElementType); !known[mod.ReferenceID] {
			a.logger.Debug("reclassifying modification as addition", "reference_id", mod.ReferenceID)
			changes.Added = append(changes.Added, AddedElement{
				ElementType: mod.ElementType,
				Details:     changesToFields(mod.ReferenceID, mod.Changes),
			})
			continue
		}
		modified = append(modified, mod)
	}
	changes.Modified = modified

	var deleted []DeletedElement
	for _, del := range changes.Deleted {
		if normalizeKind(&del.ElementType); !known[del.ReferenceID] {
			// Deleting something the map never held is a no-op.
			continue
		}
		deleted = append(deleted, del)
	}
	changes.Deleted = deleted
}

func normalizeKind(kind *models.NodeKind) {
	if *kind != models.KindRequirement {
		*kind = models.KindDesignElement
	}
}

func fieldsToChanges(details ElementFields) map[string]json.RawMessage {
	changes := make(map[string]json.RawMessage)
	set := func(key, value string) {
		if value != "" {
			raw, _ := json.Marshal(value)
			changes[key] = raw
		}
	}
	set("name", details.Name)
	set("title", details.Title)
	set("description", details.Description)
	set("type", details.Type)
	set("priority", details.Priority)
	set("section", details.Section)
	return changes
}

func changesToFields(referenceID string, changes map[string]json.RawMessage) ElementFields {
	details := ElementFields{ReferenceID: referenceID}
	for field, raw := range changes {
		value := ChangedValue(raw)
		switch field {
		case "name":
			details.Name = value
		case "title":
			details.Title = value
		case "description":
			details.Description = value
		case "type":
			details.Type = value
		case "priority":
			details.Priority = value
		case "section":
			details.Section = value
		}
	}
	return details
}

// groundTruthForFile selects the map's nodes whose IDs encode the given file
// path.
func groundTruthForFile(m *models.BaselineMap, filePath string) []groundTruthElement {
	pattern := models.ElementIDPatternForFile(filePath)
	var out []groundTruthElement
	for _, r := range m.Requirements {
		if pattern.MatchString(r.ID) {
			out = append(out, groundTruthElement{
				ID: r.ID, ReferenceID: r.ReferenceID, ElementType: string(models.KindRequirement),
				Title: r.Title, Description: r.Description, Type: r.Type,
				Priority: r.Priority, Section: r.Section,
			})
		}
	}
	for _, d := range m.DesignElements {
		if pattern.MatchString(d.ID) {
			out = append(out, groundTruthElement{
				ID: d.ID, ReferenceID: d.ReferenceID, ElementType: string(models.KindDesignElement),
				Name: d.Name, Description: d.Description, Type: d.Type, Section: d.Section,
			})
		}
	}
	return out
}
