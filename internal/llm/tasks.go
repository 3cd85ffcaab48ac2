package llm

// Task identifiers carried on every request so observability can attribute
// cost per pipeline stage.
const (
	TaskExtractSDD        = "extract_sdd"
	TaskExtractSRS        = "extract_srs"
	TaskClassifyDD        = "classify_dd_links"
	TaskClassifyRD        = "classify_rd_links"
	TaskClassifyDC        = "classify_dc_links"
	TaskProposeDocChanges = "propose_doc_changes"
	TaskReconcileChanges  = "reconcile_doc_changes"
	TaskRelinkDocuments   = "relink_documents"
	TaskRelinkCode        = "relink_code"
	TaskClassifyChanges   = "classify_code_changes"
	TaskGroupChanges      = "group_code_changes"
	TaskAssessFindings    = "assess_findings"
	TaskSuggestUpdates    = "suggest_updates"
)

// Per-task sampling temperatures. Extraction runs warm enough to cast a wide
// net; reconciliation and link creation run deterministic.
var taskTemperatures = map[string]float32{
	TaskExtractSDD:        0.1,
	TaskExtractSRS:        0.1,
	TaskClassifyDD:        0.15,
	TaskClassifyRD:        0.1,
	TaskClassifyDC:        0.15,
	TaskProposeDocChanges: 0.1,
	TaskReconcileChanges:  0.0,
	TaskRelinkDocuments:   0.0,
	TaskRelinkCode:        0.0,
	TaskClassifyChanges:   0.1,
	TaskGroupChanges:      0.1,
	TaskAssessFindings:    0.1,
	TaskSuggestUpdates:    0.2,
}

// TemperatureFor returns the sampling temperature for a task.
func TemperatureFor(task string) float32 {
	if t, ok := taskTemperatures[task]; ok {
		return t
	}
	return 0.1
}

// NewRequest builds a Request with the task's default temperature.
func NewRequest(task, system, prompt string) Request {
	return Request{
		Task:        task,
		System:      system,
		Prompt:      prompt,
		Temperature: TemperatureFor(task),
	}
}
