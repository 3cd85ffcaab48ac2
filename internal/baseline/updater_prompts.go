package baseline

import (
	"fmt"
)

// Prompt builders for the incremental update path.

const proposeChangesSystemPrompt = `You are an expert software engineering analyst. Your task is to meticulously compare the OLD and NEW versions of a software documentation file (SRS or SDD) and identify every potential change to a requirement or design element.

Instructions:
1. Carefully analyze both the Old Content and the New Content.
2. For every single change you detect (addition, modification, or deletion), create one JSON object with: reference_id, element_type ('Requirement' or 'DesignElement'), name, title, description, type, priority, section, and detected_change_type ('addition', 'modification', or 'deletion').
3. Cast a wide net: capture all potential changes. Accuracy is corrected in a later step.

Reference ID conventions:
- Use the identifier from the document when one exists (e.g. 'C01', 'UC01', 'REQ-001').
- An element without an identifier gets its name and type combined (a class "Book" in section "4.1.1 Class: Book" gets "Book-Class").
- A diagram without a caption gets "<section> - <diagram name>" (e.g. "5.2 Use Case Realization - UC01 Sequence Diagram"). Diagrams are design elements too.

Respond with a JSON object: {"detected_changes": [...]}.`

func proposeChangesPrompt(oldContent, newContent, filePath string) string {
	if oldContent == "" {
		oldContent = "This document did not exist before."
	}
	if newContent == "" {
		newContent = "This document has been deleted."
	}
	return fmt.Sprintf(`Perform a raw change detection on the file %s by comparing the two versions below.

---
Old Content:
`+"```markdown\n%s\n```"+`
---
New Content (final version):
`+"```markdown\n%s\n```"+`
---

Produce the flat list of all detected changes.`, filePath, oldContent, newContent)
}

const reconcileChangesSystemPrompt = `You are a meticulous quality assurance engineer. You received a list of detected changes from a junior analyst, plus the source-of-truth list of elements that previously existed in this file. Validate, clean, and correctly categorize the detected changes.

Instructions:
1. Compare each detected change against the existing_elements list (the source of truth).
2. Correct the change type:
   - A change marked 'addition' whose reference_id IS IN existing_elements is actually a 'modification'.
   - A change marked 'modification' whose reference_id IS NOT IN existing_elements is actually an 'addition'.
3. Produce three lists: added, modified, deleted.
4. 'modified' entries carry reference_id, element_type, and a changes object holding ONLY the fields that were altered; each value may be the new value or a {"from": ..., "to": ...} pair.
5. 'added' entries carry element_type and the full details of the new element.
6. 'deleted' entries carry reference_id and element_type only.

Respond with a JSON object: {"added": [...], "modified": [...], "deleted": [...]}.`

func reconcileChangesPrompt(candidatesJSON, groundTruthJSON string) string {
	return fmt.Sprintf(`Validate and categorize the following detected changes.

---
Detected Changes:
`+"```json\n%s\n```"+`
---
Existing Elements (source of truth):
`+"```json\n%s\n```"+`
---

Produce the final, clean JSON object with added, modified, and deleted lists.`, candidatesJSON, groundTruthJSON)
}

const documentRelinkSystemPrompt = `You are an expert software architect re-establishing traceability links after documentation changes.

You are given a batch of SOURCE elements (new or freshly modified requirements and design elements) and the full list of TARGET document elements (every requirement and design element in the map after the change). For each source, find the targets it should link to.

Rules by element kinds:
- Requirement source -> DesignElement target: relationship_type must be "satisfies" or "realizes".
- DesignElement source -> DesignElement target: relationship_type must be "refines", "depends_on", or "realizes"; never create circular chains.
- Never link a source to itself, and never invent target IDs: target_id must be copied verbatim from the targets list ("id" field).
- When unsure which relationship type fits, use "realizes". A source with no meaningful links gets an empty list.

Respond with a JSON object mapping each source id to its links:
{"links_by_source": {"<source_id>": [{"target_id": ..., "target_type": "Requirement"|"DesignElement", "relationship_type": ...}]}}`

func documentRelinkPrompt(sourcesJSON, targetsJSON string) string {
	return fmt.Sprintf(`Find traceability links for each source element below.

Sources (link FROM these):
`+"```json\n%s\n```"+`
---
Targets (link TO these; the complete document-element population):
`+"```json\n%s\n```", sourcesJSON, targetsJSON)
}

const codeRelinkSystemPrompt = `You are an expert software architect re-establishing design-to-code traceability links after changes.

You are given a batch of SOURCE design elements (new or freshly modified), the full refreshed code inventory as TARGETS (with content previews), and the document-to-document links just created, for context. For each source design element, find the code components that implement or realize it.

Rules:
- relationship_type must be "implements" or "realizes"; use "realizes" when unsure.
- target_id must be copied verbatim from the targets list ("id" field, e.g. "CC-012").
- A source with no meaningful links gets an empty list.

Respond with a JSON object:
{"links_by_source": {"<source_id>": [{"target_id": ..., "relationship_type": ...}]}}`

func codeRelinkPrompt(sourcesJSON, targetsJSON, contextLinksJSON string) string {
	return fmt.Sprintf(`Find design-to-code links for each source design element below.

Sources (link FROM these):
`+"```json\n%s\n```"+`
---
Code Components (link TO these; the full refreshed inventory):
`+"```json\n%s\n```"+`
---
Document links created in this update (context):
`+"```json\n%s\n```", sourcesJSON, targetsJSON, contextLinksJSON)
}
