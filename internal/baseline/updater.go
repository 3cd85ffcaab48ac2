package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/mhelmih/docureco/internal/errors"
	"github.com/mhelmih/docureco/internal/graph"
	"github.com/mhelmih/docureco/internal/models"
	"github.com/mhelmih/docureco/internal/scan"
	"github.com/mhelmih/docureco/internal/storage"
)

// ChangeSource supplies a commit's diff and file content at arbitrary refs.
type ChangeSource interface {
	CommitChanges(ctx context.Context, owner, repo, sha string) (*models.Commit, string, error)
	FileContentAt(ctx context.Context, owner, repo, path, ref string) (string, error)
}

// UpdaterOptions tune the incremental update pipeline.
type UpdaterOptions struct {
	// BatchSize defaults to 10. Run does not read it: relink batches use the
	// size the Relinker was built with.
	BatchSize int
	// Concurrency caps parallel doc analyses (default 4). Relink batch
	// parallelism is set on the Relinker.
	Concurrency int
}

// Updater applies one commit's documentation and code changes to the
// persisted map: it invalidates exactly the links the changes touched,
// refreshes the code inventory, and regenerates links for the changed nodes.
type Updater struct {
	analyzer *DiffAnalyzer
	relinker *Relinker
	store    storage.Store
	scanner  Snapshotter
	source   ChangeSource
	logger   *slog.Logger
	opts     UpdaterOptions
}

// NewUpdater wires the update pipeline.
func NewUpdater(analyzer *DiffAnalyzer, relinker *Relinker, store storage.Store, scanner Snapshotter, source ChangeSource, logger *slog.Logger, opts UpdaterOptions) *Updater {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		analyzer: analyzer,
		relinker: relinker,
		store:    store,
		scanner:  scanner,
		source:   source,
		logger:   logger.With("component", "updater"),
		opts:     opts,
	}
}

// UpdateResult extends Result with the no-op marker for absent baselines.
type UpdateResult struct {
	Result
	// NoBaseline is set when no map exists for (repository, branch); the
	// update is then a no-op by design.
	NoBaseline bool
}

// Run applies the commit to the persisted map. Invalidation plus relink form
// one transaction: the persisted map only advances on the final save.
func (u *Updater) Run(ctx context.Context, repository, branch, commitSHA string) (*UpdateResult, error) {
	stats := models.RunStats{RunID: uuid.NewString(), Extra: map[string]int{}}

	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	m, err := u.store.Get(ctx, repository, branch)
	if errors.Is(err, storage.ErrNotFound) {
		u.logger.Info("no baseline map, skipping update", "repository", repository, "branch", branch)
		return &UpdateResult{NoBaseline: true}, nil
	}
	if err != nil {
		return nil, apperrors.GraphBackend(err, "load baseline map")
	}

	commit, parentSHA, err := u.source.CommitChanges(ctx, owner, name, commitSHA)
	if err != nil {
		return nil, apperrors.ScanFailed(err, "fetch commit changes").WithContext("commit", commitSHA)
	}

	docChanges, codeChanges := partitionChanges(commit.Files)

	// The snapshot comes before anything is invalidated: without a code
	// inventory the run bails early and the persisted map stays untouched.
	files, err := u.scanner.Snapshot(ctx, owner, name, commitSHA)
	if err != nil {
		return nil, err
	}
	var codeFiles []scan.File
	for _, f := range files {
		if !f.Binary && scan.IsCodePath(f.Path) && !scan.IsDocPath(f.Path) {
			codeFiles = append(codeFiles, f)
		}
	}

	// Per-file document analysis, fanned out with a bounded pool.
	if err := u.loadDocContents(ctx, owner, name, commitSHA, parentSHA, docChanges); err != nil {
		return nil, err
	}
	analyses, err := runIndexed(ctx, u.opts.Concurrency, docChanges, func(ctx context.Context, fc models.FileChange) (*DocChanges, error) {
		return u.analyzer.Analyze(ctx, fc.Filename, fc.OldContent, fc.NewContent, fc.Status, m)
	})
	if err != nil {
		return nil, err
	}

	// Invalidation: drop every link touching a deleted or modified document
	// node, or a modified/deleted/renamed code path.
	clearIDs := collectInvalidatedNodeIDs(m, analyses, codeChanges)
	dropped := dropLinksTouching(m, clearIDs)
	stats.Extra["links_invalidated"] = dropped

	// Code inventory refresh: IDs are reused by path, vanished paths go.
	inventory := rebuildInventory(m, codeFiles)

	// Candidate collection and node application. Added nodes get their IDs
	// minted here, serially, before any fan-out.
	candidates := u.applyNodeChanges(m, analyses)

	// Link generation phase 1: R->D and D->D against the full post-update
	// document population.
	targets := documentTargets(m)
	docLinks, docStats := u.relinker.generateDocumentLinks(ctx, candidates, targets)
	docLinks = dropCycleClosing(m.Links, docLinks)

	// Phase 2: D->C for design candidates, biased by phase 1's output.
	var designCandidates []linkCandidate
	for _, c := range candidates {
		if c.ElementType == models.KindDesignElement {
			designCandidates = append(designCandidates, c)
		}
	}
	codeLinks, codeStats := u.relinker.generateCodeLinks(ctx, designCandidates, inventory, codeFiles, docLinks)

	// Apply inventory and edges, then one atomic save.
	m.CodeComponents = inventory
	appendLinks(m, append(docLinks, codeLinks...))
	pruneDanglingLinks(m, u.logger)

	if err := saveMap(ctx, u.store, m); err != nil {
		return nil, err
	}

	stats.Requirements = len(m.Requirements)
	stats.DesignElements = len(m.DesignElements)
	stats.CodeComponents = len(m.CodeComponents)
	stats.Links = len(m.Links)
	stats.BatchesOK = docStats.OK + codeStats.OK
	stats.BatchesFailed = docStats.Failed + codeStats.Failed
	if counter, ok := u.analyzer.llm.(interface{ Retries() int64 }); ok {
		stats.LLMRetries = int(counter.Retries())
	}

	u.logger.Info("baseline map updated",
		"repository", repository, "branch", branch, "commit", commitSHA,
		"candidates", len(candidates),
		"links_invalidated", dropped,
		"links", stats.Links)
	return &UpdateResult{Result: Result{Map: m, Stats: stats}}, nil
}

// partitionChanges splits a commit's files into documentation changes and
// code changes. Renamed code files contribute their previous path as a
// removal.
func partitionChanges(files []models.FileChange) (docs, code []models.FileChange) {
	for _, f := range files {
		switch {
		case scan.IsDocPath(f.Filename):
			docs = append(docs, f)
		case scan.IsCodePath(f.Filename) || (f.PreviousFilename != "" && scan.IsCodePath(f.PreviousFilename)):
			code = append(code, f)
		}
	}
	return docs, code
}

// loadDocContents fetches old and new content for each changed doc file.
func (u *Updater) loadDocContents(ctx context.Context, owner, name, commitSHA, parentSHA string, docs []models.FileChange) error {
	for i := range docs {
		fc := &docs[i]
		if fc.Status == models.FileStatusAdded || fc.Status == models.FileStatusModified || fc.Status == models.FileStatusRenamed {
			content, err := u.source.FileContentAt(ctx, owner, name, fc.Filename, commitSHA)
			if err != nil {
				return apperrors.ScanFailed(err, "fetch new document content").WithContext("file", fc.Filename)
			}
			fc.NewContent = content
		}
		if parentSHA != "" && fc.Status != models.FileStatusAdded {
			oldPath := fc.Filename
			if fc.PreviousFilename != "" {
				oldPath = fc.PreviousFilename
			}
			content, err := u.source.FileContentAt(ctx, owner, name, oldPath, parentSHA)
			if err != nil {
				return apperrors.ScanFailed(err, "fetch old document content").WithContext("file", oldPath)
			}
			fc.OldContent = content
		}
	}
	return nil
}

// collectInvalidatedNodeIDs gathers the surrogate IDs of every node whose
// links must be dropped: deleted and modified document elements, plus code
// components on modified, deleted, or renamed-away paths.
func collectInvalidatedNodeIDs(m *models.BaselineMap, analyses []*DocChanges, codeChanges []models.FileChange) map[string]bool {
	clear := make(map[string]bool)

	for _, changes := range analyses {
		if changes == nil {
			continue
		}
		refs := make(map[string]bool)
		for _, del := range changes.Deleted {
			refs[del.ReferenceID] = true
		}
		for _, mod := range changes.Modified {
			refs[mod.ReferenceID] = true
		}
		pattern := models.ElementIDPatternForFile(changes.FilePath)
		for _, r := range m.Requirements {
			if refs[r.ReferenceID] && pattern.MatchString(r.ID) {
				clear[r.ID] = true
			}
		}
		for _, d := range m.DesignElements {
			if refs[d.ReferenceID] && pattern.MatchString(d.ID) {
				clear[d.ID] = true
			}
		}
	}

	paths := make(map[string]bool)
	for _, fc := range codeChanges {
		switch fc.Status {
		case models.FileStatusModified, models.FileStatusRemoved:
			paths[fc.Filename] = true
		case models.FileStatusRenamed:
			paths[fc.PreviousFilename] = true
		}
	}
	for _, cc := range m.CodeComponents {
		if paths[cc.Path] {
			clear[cc.ID] = true
		}
	}
	return clear
}

// dropLinksTouching removes every link with an endpoint in clear, returning
// the number removed. This is the minimum blast radius the change demands.
func dropLinksTouching(m *models.BaselineMap, clear map[string]bool) int {
	if len(clear) == 0 {
		return 0
	}
	kept := m.Links[:0]
	dropped := 0
	for _, l := range m.Links {
		if clear[l.SourceID] || clear[l.TargetID] {
			dropped++
			continue
		}
		kept = append(kept, l)
	}
	m.Links = kept
	return dropped
}

// rebuildInventory mirrors the snapshot into the component list, reusing IDs
// by path and minting new ones past the highest existing serial.
func rebuildInventory(m *models.BaselineMap, codeFiles []scan.File) []models.CodeComponent {
	existing := make(map[string]models.CodeComponent, len(m.CodeComponents))
	maxSerial := 0
	for _, cc := range m.CodeComponents {
		existing[cc.Path] = cc
		if n := models.IDSerial(cc.ID); n > maxSerial {
			maxSerial = n
		}
	}

	inventory := make([]models.CodeComponent, 0, len(codeFiles))
	for _, f := range codeFiles {
		if cc, ok := existing[f.Path]; ok {
			inventory = append(inventory, cc)
			continue
		}
		maxSerial++
		inventory = append(inventory, models.CodeComponent{
			ID:   models.NewCodeComponentID(maxSerial),
			Path: f.Path,
			Name: path.Base(f.Path),
			Type: componentType(f.Path),
		})
	}
	return inventory
}

// applyNodeChanges deletes removed nodes, applies field-level modifications,
// appends added nodes with freshly minted IDs, and returns the link
// candidates (added plus modified, in post-change form).
func (u *Updater) applyNodeChanges(m *models.BaselineMap, analyses []*DocChanges) []linkCandidate {
	var candidates []linkCandidate

	for _, changes := range analyses {
		if changes == nil || changes.Empty() {
			continue
		}
		filePath := changes.FilePath
		pattern := models.ElementIDPatternForFile(filePath)

		// Serials continue past everything this file ever held, computed
		// before deletions so freed serials are not reused.
		maxReq, maxDE := 0, 0
		for _, r := range m.Requirements {
			if pattern.MatchString(r.ID) {
				if n := models.IDSerial(r.ID); n > maxReq {
					maxReq = n
				}
			}
		}
		for _, d := range m.DesignElements {
			if pattern.MatchString(d.ID) {
				if n := models.IDSerial(d.ID); n > maxDE {
					maxDE = n
				}
			}
		}

		deletedRefs := make(map[string]bool)
		for _, del := range changes.Deleted {
			deletedRefs[del.ReferenceID] = true
		}

		kept := m.Requirements[:0]
		for _, r := range m.Requirements {
			if pattern.MatchString(r.ID) && deletedRefs[r.ReferenceID] {
				continue
			}
			kept = append(kept, r)
		}
		m.Requirements = kept

		keptDE := m.DesignElements[:0]
		for _, d := range m.DesignElements {
			if pattern.MatchString(d.ID) && deletedRefs[d.ReferenceID] {
				continue
			}
			keptDE = append(keptDE, d)
		}
		m.DesignElements = keptDE

		for _, mod := range changes.Modified {
			if mod.ElementType == models.KindRequirement {
				for i := range m.Requirements {
					r := &m.Requirements[i]
					if r.ReferenceID != mod.ReferenceID || !pattern.MatchString(r.ID) {
						continue
					}
					applyRequirementChanges(r, mod.Changes)
					candidates = append(candidates, requirementCandidate(*r))
					break
				}
				continue
			}
			for i := range m.DesignElements {
				d := &m.DesignElements[i]
				if d.ReferenceID != mod.ReferenceID || !pattern.MatchString(d.ID) {
					continue
				}
				applyDesignElementChanges(d, mod.Changes)
				candidates = append(candidates, designElementCandidate(*d))
				break
			}
		}

		for _, add := range changes.Added {
			if add.ElementType == models.KindRequirement {
				maxReq++
				r := models.Requirement{
					ID:          models.NewRequirementID(filePath, maxReq),
					ReferenceID: add.Details.ReferenceID,
					Title:       add.Details.Title,
					Description: add.Details.Description,
					Type:        defaultString(add.Details.Type, "Functional"),
					Priority:    defaultString(add.Details.Priority, "Medium"),
					Section:     defaultString(add.Details.Section, filePath),
					FilePath:    filePath,
				}
				if r.Title == "" {
					r.Title = add.Details.Name
				}
				m.Requirements = append(m.Requirements, r)
				candidates = append(candidates, requirementCandidate(r))
				continue
			}
			maxDE++
			d := models.DesignElement{
				ID:          models.NewDesignElementID(filePath, maxDE),
				ReferenceID: add.Details.ReferenceID,
				Name:        defaultString(add.Details.Name, add.Details.Title),
				Description: add.Details.Description,
				Type:        defaultString(add.Details.Type, "Component"),
				Section:     defaultString(add.Details.Section, filePath),
				FilePath:    filePath,
			}
			m.DesignElements = append(m.DesignElements, d)
			candidates = append(candidates, designElementCandidate(d))
		}
	}
	return candidates
}

func applyRequirementChanges(r *models.Requirement, changes map[string]json.RawMessage) {
	for field, raw := range changes {
		value := ChangedValue(raw)
		switch field {
		case "title", "name":
			r.Title = value
		case "description":
			r.Description = value
		case "type":
			r.Type = value
		case "priority":
			r.Priority = value
		case "section":
			r.Section = value
		}
	}
}

func applyDesignElementChanges(d *models.DesignElement, changes map[string]json.RawMessage) {
	for field, raw := range changes {
		value := ChangedValue(raw)
		switch field {
		case "name", "title":
			d.Name = value
		case "description":
			d.Description = value
		case "type":
			d.Type = value
		case "section":
			d.Section = value
		}
	}
}

func requirementCandidate(r models.Requirement) linkCandidate {
	return linkCandidate{
		ID:          r.ID,
		ElementType: models.KindRequirement,
		FilePath:    r.FilePath,
		ReferenceID: r.ReferenceID,
		Title:       r.Title,
		Description: r.Description,
		Type:        r.Type,
		Priority:    r.Priority,
		Section:     r.Section,
	}
}

func designElementCandidate(d models.DesignElement) linkCandidate {
	return linkCandidate{
		ID:          d.ID,
		ElementType: models.KindDesignElement,
		FilePath:    d.FilePath,
		ReferenceID: d.ReferenceID,
		Name:        d.Name,
		Description: d.Description,
		Type:        d.Type,
		Section:     d.Section,
	}
}

// documentTargets builds the full post-update document-node population so
// relinking can reach existing, unchanged nodes.
func documentTargets(m *models.BaselineMap) []docTarget {
	targets := make([]docTarget, 0, len(m.Requirements)+len(m.DesignElements))
	for _, r := range m.Requirements {
		targets = append(targets, docTarget{
			ID: r.ID, ElementType: models.KindRequirement, FilePath: r.FilePath,
			ReferenceID: r.ReferenceID, Title: r.Title, Description: r.Description, Type: r.Type,
		})
	}
	for _, d := range m.DesignElements {
		targets = append(targets, docTarget{
			ID: d.ID, ElementType: models.KindDesignElement, FilePath: d.FilePath,
			ReferenceID: d.ReferenceID, Name: d.Name, Description: d.Description, Type: d.Type,
		})
	}
	return targets
}

// dropCycleClosing filters new design links that would close a cycle against
// the surviving links, in deterministic order at fan-in.
func dropCycleClosing(existing []models.TraceabilityLink, fresh []models.TraceabilityLink) []models.TraceabilityLink {
	accepted := make([]models.TraceabilityLink, 0, len(fresh))
	working := make([]models.TraceabilityLink, len(existing))
	copy(working, existing)
	for _, l := range fresh {
		if graph.WouldCreateDesignCycle(working, l) {
			continue
		}
		working = append(working, l)
		accepted = append(accepted, l)
	}
	return accepted
}

// appendLinks assigns fresh IDs from the per-kind counters and appends.
func appendLinks(m *models.BaselineMap, fresh []models.TraceabilityLink) {
	serials := map[string]int{}
	for _, l := range m.Links {
		prefix := models.LinkKindPrefix(l.SourceType, l.TargetType)
		if n := models.IDSerial(l.ID); n > serials[prefix] {
			serials[prefix] = n
		}
	}
	for _, l := range fresh {
		prefix := models.LinkKindPrefix(l.SourceType, l.TargetType)
		if prefix == "" {
			continue
		}
		serials[prefix]++
		l.ID = models.NewLinkID(prefix, serials[prefix])
		m.Links = append(m.Links, l)
	}
}

// pruneDanglingLinks enforces referential integrity after the inventory
// mirror: a link whose endpoint vanished is removed.
func pruneDanglingLinks(m *models.BaselineMap, logger *slog.Logger) {
	nodes := make(map[string]bool, len(m.Requirements)+len(m.DesignElements)+len(m.CodeComponents))
	for _, r := range m.Requirements {
		nodes[r.ID] = true
	}
	for _, d := range m.DesignElements {
		nodes[d.ID] = true
	}
	for _, c := range m.CodeComponents {
		nodes[c.ID] = true
	}

	kept := m.Links[:0]
	dropped := 0
	for _, l := range m.Links {
		if !nodes[l.SourceID] || !nodes[l.TargetID] {
			dropped++
			continue
		}
		kept = append(kept, l)
	}
	m.Links = kept
	if dropped > 0 && logger != nil {
		logger.Warn("removed dangling links", "count", dropped)
	}
}

// defaultString returns value, or fallback when value is empty.
func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
