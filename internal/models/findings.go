package models

// Per-PR trace records. These never persist; they live for one analyzer run
// and move through raw → statused → traced → scored → filtered → emitted.

// TraceabilityStatus classifies one code change against the map.
type TraceabilityStatus string

const (
	StatusModification TraceabilityStatus = "modification"
	StatusOutdated     TraceabilityStatus = "outdated"
	StatusRename       TraceabilityStatus = "rename"
	StatusGap          TraceabilityStatus = "gap"
	StatusAnomaly      TraceabilityStatus = "anomaly"
)

// AnomalyKind narrows an anomaly status to the mismatch observed.
type AnomalyKind string

const (
	AnomalyAdditionMapped       AnomalyKind = "addition_mapped"
	AnomalyDeletionUnmapped     AnomalyKind = "deletion_unmapped"
	AnomalyModificationUnmapped AnomalyKind = "modification_unmapped"
	AnomalyRenameUnmapped       AnomalyKind = "rename_unmapped"
)

// TracePathType tells whether a finding was reached in one hop or two.
type TracePathType string

const (
	PathDirect   TracePathType = "Direct"
	PathIndirect TracePathType = "Indirect"
	PathNone     TracePathType = "n/a"
)

// Likelihood is the assessed probability that documentation is impacted.
type Likelihood string

const (
	VeryLikely Likelihood = "Very Likely"
	Likely     Likelihood = "Likely"
	Possibly   Likelihood = "Possibly"
	Unlikely   Likelihood = "Unlikely"
)

// ValidLikelihood reports whether l is a known likelihood level.
func ValidLikelihood(l Likelihood) bool {
	switch l {
	case VeryLikely, Likely, Possibly, Unlikely:
		return true
	}
	return false
}

// Severity is the assessed weight of the impact on documentation.
type Severity string

const (
	SeverityFundamental Severity = "Fundamental"
	SeverityMajor       Severity = "Major"
	SeverityModerate    Severity = "Moderate"
	SeverityMinor       Severity = "Minor"
	SeverityTrivial     Severity = "Trivial"
	SeverityNone        Severity = "None"
)

// ValidSeverity reports whether s is a known severity level.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityFundamental, SeverityMajor, SeverityModerate, SeverityMinor, SeverityTrivial, SeverityNone:
		return true
	}
	return false
}

// Finding pairs one document node (or anomaly) with the change set that
// reached it, plus the assessment attached by scoring.
type Finding struct {
	ChangeSetID string        `json:"change_set_id"`
	ElementKind NodeKind      `json:"element_kind"`
	ElementID   string        `json:"element_id"`
	ReferenceID string        `json:"reference_id,omitempty"`
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	FilePath    string        `json:"file_path,omitempty"`
	Section     string        `json:"section,omitempty"`
	PathType    TracePathType `json:"path_type"`
	AnomalyKind AnomalyKind   `json:"anomaly_kind,omitempty"`
	Likelihood  Likelihood    `json:"likelihood"`
	Severity    Severity      `json:"severity"`
	Reasoning   string        `json:"reasoning,omitempty"`
}

// HighPriority reports whether the finding survives the emitter's filter:
// Major or Fundamental severity, or Moderate severity with at least Likely
// likelihood.
func (f Finding) HighPriority() bool {
	switch f.Severity {
	case SeverityFundamental, SeverityMajor:
		return true
	case SeverityModerate:
		return f.Likelihood == Likely || f.Likelihood == VeryLikely
	}
	return false
}

// RecommendationType is the action a recommendation asks for.
type RecommendationType string

const (
	RecommendationUpdate RecommendationType = "UPDATE"
	RecommendationCreate RecommendationType = "CREATE"
	RecommendationDelete RecommendationType = "DELETE"
	RecommendationReview RecommendationType = "REVIEW"
)

// ValidRecommendationType reports whether t is a known action.
func ValidRecommendationType(t RecommendationType) bool {
	switch t {
	case RecommendationUpdate, RecommendationCreate, RecommendationDelete, RecommendationReview:
		return true
	}
	return false
}

// Recommendation is one emitted documentation-update suggestion.
type Recommendation struct {
	TargetDocument     string             `json:"target_document"`
	Section            string             `json:"section"`
	RecommendationType RecommendationType `json:"recommendation_type"`
	Priority           Severity           `json:"priority"`
	WhatToUpdate       string             `json:"what_to_update"`
	WhereToUpdate      string             `json:"where_to_update"`
	WhyUpdateNeeded    string             `json:"why_update_needed"`
	SuggestedContent   string             `json:"suggested_content,omitempty"`
}

// DocumentSummary aggregates the recommendations targeting one document.
type DocumentSummary struct {
	TargetDocument   string   `json:"target_document"`
	Total            int      `json:"total_recommendations"`
	HighPriority     int      `json:"high_priority_count"`
	MediumPriority   int      `json:"medium_priority_count"`
	LowPriority      int      `json:"low_priority_count"`
	Overview         string   `json:"overview"`
	SectionsAffected []string `json:"sections_affected"`
	AnomalyFiles     []string `json:"traceability_anomaly_affected_files,omitempty"`
	AnomalyFix       string   `json:"how_to_fix_traceability_anomaly,omitempty"`
}

// DocumentRecommendations is the emitted unit: one target document, its
// summary, and its recommendations.
type DocumentRecommendations struct {
	Summary         DocumentSummary  `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
}

// RunStats is the per-run processing summary surfaced to the caller next to
// the structured result.
type RunStats struct {
	RunID          string         `json:"run_id"`
	Requirements   int            `json:"requirements"`
	DesignElements int            `json:"design_elements"`
	CodeComponents int            `json:"code_components"`
	Links          int            `json:"links"`
	BatchesOK      int            `json:"batches_ok"`
	BatchesFailed  int            `json:"batches_failed"`
	LLMRetries     int            `json:"llm_retries"`
	Extra          map[string]int `json:"extra,omitempty"`
}
