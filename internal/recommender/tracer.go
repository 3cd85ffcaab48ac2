package recommender

import (
	"context"
	"log/slog"

	"github.com/mhelmih/docureco/internal/graph"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/scan"
)

// Tracer walks the map from changed code back to the documentation nodes it
// can reach. Pure CPU: the map is indexed once and never mutated.
type Tracer struct {
	logger *slog.Logger
}

// NewTracer builds an impact tracer.
func NewTracer(logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{logger: logger.With("component", "tracer")}
}

// changeStatus is the traceability status of one classification.
type changeStatus struct {
	classification models.ChangeClassification
	status         models.TraceabilityStatus
	anomaly        models.AnomalyKind
	componentID    string
}

// Trace classifies each change set's files against the map and emits raw
// findings: traced documentation nodes for mapped changes, gap and anomaly
// records for the rest. Likelihood and severity are filled by scoring.
func (t *Tracer) Trace(_ context.Context, m *models.BaselineMap, sets []models.LogicalChangeSet) []models.Finding {
	idx := graph.NewIndex(m)
	var findings []models.Finding

	for _, set := range sets {
		seen := make(map[string]bool) // element IDs already reported for this set

		for _, cl := range set.Changes {
			if !scan.IsCodePath(cl.File) && !scan.IsCodePath(previousPath(cl)) {
				// Documentation and config changes do not trace through the
				// code tier.
				continue
			}
			status := t.statusOf(idx, m, cl)

			switch status.status {
			case models.StatusModification, models.StatusOutdated, models.StatusRename:
				for _, reached := range idx.TraceFromCode(status.componentID) {
					if seen[reached.ID] {
						continue
					}
					seen[reached.ID] = true
					f := models.Finding{
						ChangeSetID: set.ID,
						ElementKind: reached.Kind,
						ElementID:   reached.ID,
						PathType:    models.PathDirect,
					}
					if reached.Hops > 1 {
						f.PathType = models.PathIndirect
					}
					enrichFinding(&f, m)
					findings = append(findings, f)
				}
			case models.StatusGap, models.StatusAnomaly:
				key := "file:" + cl.File
				if seen[key] {
					continue
				}
				seen[key] = true
				f := models.Finding{
					ChangeSetID: set.ID,
					ElementKind: models.KindCodeComponent,
					ElementID:   status.componentID,
					Name:        cl.File,
					FilePath:    cl.File,
					PathType:    models.PathNone,
					AnomalyKind: status.anomaly,
				}
				findings = append(findings, f)
			}
		}
	}

	t.logger.Info("traced impact", "change_sets", len(sets), "findings", len(findings))
	return findings
}

// statusOf derives the traceability status of one classification: whether
// the changed path maps to a code component, and whether that component has
// incoming design links.
func (t *Tracer) statusOf(idx *graph.Index, m *models.BaselineMap, cl models.ChangeClassification) changeStatus {
	lookupPath := cl.File
	if cl.Type == models.ChangeTypeRename && previousPath(cl) != "" {
		lookupPath = previousPath(cl)
	}

	component, exists := m.CodeComponentByPath(lookupPath)
	mapped := exists && idx.HasIncomingDesignLink(component.ID)

	result := changeStatus{classification: cl, componentID: component.ID}
	switch cl.Type {
	case models.ChangeTypeAddition:
		if mapped {
			result.status = models.StatusAnomaly
			result.anomaly = models.AnomalyAdditionMapped
		} else {
			result.status = models.StatusGap
		}
	case models.ChangeTypeDeletion:
		if mapped {
			result.status = models.StatusOutdated
		} else {
			result.status = models.StatusAnomaly
			result.anomaly = models.AnomalyDeletionUnmapped
		}
	case models.ChangeTypeRename:
		if mapped {
			result.status = models.StatusRename
		} else {
			result.status = models.StatusAnomaly
			result.anomaly = models.AnomalyRenameUnmapped
		}
	default: // Modification
		if mapped {
			result.status = models.StatusModification
		} else {
			result.status = models.StatusAnomaly
			result.anomaly = models.AnomalyModificationUnmapped
		}
	}
	return result
}

func previousPath(cl models.ChangeClassification) string {
	return cl.PreviousFile
}

// enrichFinding copies the reached node's descriptive fields onto the
// finding so scoring and grouping need no second lookup.
func enrichFinding(f *models.Finding, m *models.BaselineMap) {
	switch f.ElementKind {
	case models.KindRequirement:
		if r, ok := m.RequirementByID(f.ElementID); ok {
			f.ReferenceID = r.ReferenceID
			f.Name = r.Title
			f.Description = r.Description
			f.FilePath = r.FilePath
			f.Section = r.Section
		}
	case models.KindDesignElement:
		if d, ok := m.DesignElementByID(f.ElementID); ok {
			f.ReferenceID = d.ReferenceID
			f.Name = d.Name
			f.Description = d.Description
			f.FilePath = d.FilePath
			f.Section = d.Section
		}
	}
}
