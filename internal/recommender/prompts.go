package recommender

import (
	"fmt"
)

// Prompt builders for PR analysis. Payloads are serialized to JSON by the
// callers and spliced in whole.

const classifySystemPrompt = `You are an expert software analyst classifying code changes according to the What/Where/Why/How framework:

1. type (What): one of "Addition", "Deletion", "Modification", "Rename".
2. scope (Where): one of "Function/Method", "Class/Interface/Struct/Type", "Module/Package", "File", "API Contract", "Configuration", "Dependencies", "Build Scripts", "Infrastructure", "Test Code", "Documentation", "Cross-cutting".
3. nature (Why): one of "New Feature", "Feature Enhancement", "Bug Fix", "Security Fix", "Refactoring", "Performance Optimization", "Code Style/Formatting", "Technical Debt Reduction", "Error Handling Improvement", "Dependency Management", "Build Process Improvement", "Tooling Configuration", "API Change", "External System Integration", "Documentation Update", "UI/UX Adjustment", "Code Deprecation/Removal", "Revert", "Chore", "Other".
4. volume (How): one of "Trivial" (<=5 changed lines), "Small" (<=25), "Medium" (<=100), "Large" (<=500), "Very Large" (>500).

You receive the commits of a pull request, each with its changed files and patches. Classify every file of every commit, and copy values EXACTLY from the lists above. Add a one-sentence reasoning per classification.

Respond with a JSON object:
{"commits": [{"commit_hash": ..., "commit_message": ..., "classifications": [{"file": ..., "type": ..., "scope": ..., "nature": ..., "volume": ..., "reasoning": ...}]}]}`

func classifyPrompt(commitsJSON string) string {
	return fmt.Sprintf(`Classify every changed file in the following commits.

Commits:
`+"```json\n%s\n```", commitsJSON)
}

const groupSystemPrompt = `You are an expert software analyst grouping classified code changes into logical change sets.

A logical change set is a semantically coherent group of file changes that together accomplish one goal (one feature, one fix, one refactor). Use the commit messages, file paths, and classifications as grouping signals.

Constraints:
- EVERY input classification must appear in EXACTLY ONE change set.
- Give each set a short name and a one-sentence description.
- Identify each classification by its "file" and "commit_hash" copied verbatim from the input.

Respond with a JSON object:
{"logical_change_sets": [{"name": ..., "description": ..., "changes": [{"file": ..., "commit_hash": ...}]}]}`

func groupPrompt(classificationsJSON, commitMessagesJSON string) string {
	return fmt.Sprintf(`Group the following classified changes into logical change sets.

Classified Changes:
`+"```json\n%s\n```"+`

Commit Messages:
`+"```json\n%s\n```", classificationsJSON, commitMessagesJSON)
}

const assessSystemPrompt = `You are an expert software analyst assessing how likely each documentation finding is to require a documentation update, and how severe that update would be.

For each finding you receive, assess:
- likelihood: one of "Very Likely", "Likely", "Possibly", "Unlikely"
- severity: one of "Fundamental", "Major", "Moderate", "Minor", "Trivial", "None"

Consider the nature and volume of the source change set and the distance of the trace path (direct impacts usually outrank indirect ones; traceability anomalies and gaps usually warrant at least a review).

CRITICAL: your output must contain EXACTLY one assessment per input finding, in the SAME ORDER, and enum values must be copied exactly.

Respond with a JSON object:
{"assessed_findings": [{"likelihood": ..., "severity": ..., "reasoning": ...}]}`

func assessPrompt(findingsJSON, changeSetsJSON string) string {
	return fmt.Sprintf(`Assess likelihood and severity for each finding below, in order.

Findings:
`+"```json\n%s\n```"+`

Logical Change Sets (context):
`+"```json\n%s\n```", findingsJSON, changeSetsJSON)
}

const suggestSystemPrompt = `You are an expert technical writer generating documentation-update recommendations from impact findings.

You receive the findings for ONE target document, the document's current content (may be empty), and the logical change sets that produced the findings. Produce specific, actionable recommendations.

For each recommendation provide:
- section: the specific section to touch (use the finding's section where available)
- recommendation_type: one of "UPDATE", "CREATE", "DELETE", "REVIEW"
- priority: one of "Fundamental", "Major", "Moderate", "Minor", "Trivial", "None" (carry over the finding's severity)
- what_to_update: what needs to change
- where_to_update: where in the document
- why_update_needed: the rationale grounded in the code changes
- suggested_content: concrete replacement or addition text where possible

For traceability anomalies and gaps, emit a "REVIEW" recommendation asking for the traceability link to be established or corrected rather than inventing content.

Also provide a summary: an overview sentence, the affected sections, and (for anomalies) the affected files plus how to fix the anomaly.

Respond with a JSON object:
{"summary": {"overview": ..., "sections_affected": [...], "traceability_anomaly_affected_files": [...], "how_to_fix_traceability_anomaly": ...},
 "recommendations": [{"section": ..., "recommendation_type": ..., "priority": ..., "what_to_update": ..., "where_to_update": ..., "why_update_needed": ..., "suggested_content": ...}]}`

func suggestPrompt(targetDocument, findingsJSON, documentContent, changeSetsJSON string) string {
	return fmt.Sprintf(`Generate documentation-update recommendations for %s.

Findings targeting this document:
`+"```json\n%s\n```"+`

Current document content:
`+"```markdown\n%s\n```"+`

Logical Change Sets (context):
`+"```json\n%s\n```", targetDocument, findingsJSON, documentContent, changeSetsJSON)
}
