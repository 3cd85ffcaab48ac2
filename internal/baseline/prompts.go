package baseline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mhelmih/docureco/internal/models"
)

// Prompt builders for map creation. Each LLM call gets a system prompt fixing
// the task and vocabulary, and a human prompt carrying the payload as JSON.

const sddExtractionSystemPrompt = `You are an expert software architect analyzing Software Design Documents (SDD). Your task is to:

1. Extract all design elements (components, classes, use cases, modules, tables, user interfaces, queries, diagrams, etc.) from the SDD.
2. Identify and extract the traceability matrix from the SDD, which maps requirements to design elements. If no traceability matrix is found, return an empty array for traceability_matrix.

For each design element found, provide:
- reference_id: the identifier used in the document (e.g. 'C01', 'UC01', 'M01'). If the element has no explicit identifier, combine the element name and its type from the nearest section heading (a class "Book" in section "4.1.1 Class: Book" gets reference_id "Book-Class").
- name: clear, descriptive name of the design element
- description: brief description of its purpose
- type: category (Use Case, Scenario, Class, Interface, Component, Database Table, UI, Diagram, Service, Query, Algorithm, Process, Procedure, Module, etc.)
- section: the full section reference with number and title (e.g. "4.1.1 Class: Book", never just "4.1.1")

Diagrams embedded as images are design elements too. A diagram without a caption gets reference_id "<section> - <diagram filename without extension>".

For the traceability matrix, provide every relationship found:
- source_id: ID of the source artifact as written in the document
- target_id: ID of the target artifact; this MUST exactly match the reference_id of one of the extracted design elements
- relationship_type: always the string "unclassified" (classification happens later)

If the matrix uses a different label than your extracted reference_id (e.g. just "Book" where you extracted "Book-Class"), map it to the reference_id using the table headers for the element type. If you cannot confidently map a matrix entry to an extracted reference_id, SKIP that entry. Never use class names, section titles, or any other label in place of a reference_id.

Respond with a JSON object: {"design_elements": [...], "traceability_matrix": [...]}.`

func sddExtractionPrompt(content, filePath string) string {
	return fmt.Sprintf(`Analyze the following Software Design Document and extract both design elements and the traceability matrix.

File Path: %s

Content:
%s`, filePath, content)
}

const srsExtractionSystemPrompt = `You are an expert software architect analyzing Software Requirements Specification (SRS) documents. Your task is to:

1. Extract functional and non-functional requirements from the SRS.
2. Extract design elements referenced or implied by the SRS (typically the initial design produced during requirements analysis: use cases, components, classes, interfaces, tables, diagrams, scenarios).
3. Use the provided traceability matrix from the SDD to identify requirements that must be extracted because the SDD already maps design elements to them.

For each requirement, provide:
- reference_id: the identifier used in the document (e.g. 'REQ-001', 'UC01'); fall back to the requirement name when no identifier exists
- title: clear, concise title
- description: detailed description of what is required
- type: category (Functional, Non-Functional, Business, User, System)
- priority: High, Medium, or Low
- section: the full section reference with number and title

For each design element, provide reference_id, name, description, type, and section following the same conventions.

Respond with a JSON object: {"requirements": [...], "design_elements": [...]}.`

func srsExtractionPrompt(content, filePath string, matrix []models.TraceabilityMatrixRow) string {
	matrixJSON, _ := json.MarshalIndent(matrix, "", "  ")
	return fmt.Sprintf(`Analyze the following Software Requirements Specification and extract requirements and design elements, using the SDD traceability matrix as context.

File Path: %s

Content:
%s

Traceability Matrix from SDD:
%s`, filePath, content, matrixJSON)
}

const designLinksSystemPrompt = `You are an expert software architect analyzing design elements and their relationships.

TASK:
1. You are given a list of design elements and a traceability matrix with unclassified relationships extracted from the SDD.
2. Classify the matrix relationships that connect two design elements, and identify additional meaningful relationships the matrix misses.
3. If no meaningful relationships exist, return an empty array.

For design-element-to-design-element relationships, use ONLY these relationship types:
- refines: the source elaborates or clarifies the target with more detail
- depends_on: the source requires the target to function
- realizes: the source manifests or embodies the target

When unsure which type fits, use "realizes". Relationships may be many-to-many, but there must be no circular chains.

For each relationship provide source_id and target_id (the reference_id values of the elements, nothing else) and relationship_type. SKIP any matrix entry you cannot map to a valid reference_id.

Respond with a JSON object: {"relationships": [{"source_id": ..., "target_id": ..., "relationship_type": ...}]}.`

func designLinksPrompt(elements []models.DesignElement, matrix []models.TraceabilityMatrixRow) string {
	type elementPayload struct {
		ReferenceID string `json:"reference_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Section     string `json:"section"`
	}
	payload := make([]elementPayload, 0, len(elements))
	for _, e := range elements {
		payload = append(payload, elementPayload{e.ReferenceID, e.Name, e.Description, e.Type, e.Section})
	}
	elementsJSON, _ := json.MarshalIndent(payload, "", "  ")
	matrixJSON, _ := json.MarshalIndent(matrix, "", "  ")
	return fmt.Sprintf(`Analyze the following design elements and identify meaningful relationships between them.

Design Elements:
%s

Traceability Matrix (for context):
%s`, elementsJSON, matrixJSON)
}

const requirementLinksSystemPrompt = `You are an expert software architect analyzing the relationships between requirements and design elements.

TASK:
1. You are given requirements, design elements, the SDD content, and a traceability matrix with unclassified relationships.
2. Classify the matrix relationships that connect a requirement to a design element, and identify additional meaningful relationships the matrix misses.
3. If no meaningful relationships exist, return an empty array.

For requirement-to-design-element relationships, use ONLY these relationship types:
- satisfies: the design element clearly satisfies the requirement's specification
- realizes: the design element embodies the requirement concept

When unsure which type fits, use "realizes". Relationships may be many-to-many.

For each relationship provide source_id (the requirement's reference_id), target_id (the design element's reference_id), and relationship_type. SKIP any entry you cannot map to valid reference_ids.

Respond with a JSON object: {"relationships": [{"source_id": ..., "target_id": ..., "relationship_type": ...}]}.`

func requirementLinksPrompt(reqs []models.Requirement, elements []models.DesignElement, matrix []models.TraceabilityMatrixRow, sddContent map[string]string) string {
	type reqPayload struct {
		ReferenceID string `json:"reference_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Priority    string `json:"priority"`
		Section     string `json:"section"`
	}
	rp := make([]reqPayload, 0, len(reqs))
	for _, r := range reqs {
		rp = append(rp, reqPayload{r.ReferenceID, r.Title, r.Description, r.Type, r.Priority, r.Section})
	}
	type elementPayload struct {
		ReferenceID string `json:"reference_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Section     string `json:"section"`
	}
	ep := make([]elementPayload, 0, len(elements))
	for _, e := range elements {
		ep = append(ep, elementPayload{e.ReferenceID, e.Name, e.Description, e.Type, e.Section})
	}
	reqsJSON, _ := json.MarshalIndent(rp, "", "  ")
	elementsJSON, _ := json.MarshalIndent(ep, "", "  ")
	matrixJSON, _ := json.MarshalIndent(matrix, "", "  ")

	var docs strings.Builder
	for path, content := range sddContent {
		fmt.Fprintf(&docs, "--- %s ---\n%s\n", path, content)
	}

	return fmt.Sprintf(`Identify which design elements satisfy or realize which requirements, using the traceability matrix as the authoritative source.

Requirements:
%s

Design Elements:
%s

Traceability Matrix (authoritative source):
%s

SDD Content (additional context):
%s`, reqsJSON, elementsJSON, matrixJSON, docs.String())
}

const codeLinksSystemPrompt = `You are an expert software architect analyzing the relationships between design elements and code components.

TASK:
1. You are given design elements, code components (with a content preview), and the design-to-design relationships for context.
2. Identify the code components related to each design element by checking component names, paths, and content against element names, descriptions, and types.
3. If no meaningful relationships exist, return an empty array.

For design-element-to-code-component relationships, use ONLY these relationship types:
- implements: the code directly implements the design element's specification
- realizes: the code embodies the design concept

When unsure which type fits, use "realizes". Relationships may be many-to-many.

For each relationship provide source_id (the design element's reference_id), target_id (the code component's id, e.g. "CC-004"), and relationship_type.

Respond with a JSON object: {"relationships": [{"source_id": ..., "target_id": ..., "relationship_type": ...}]}.`

// codeContentPreviewLimit bounds the per-file context handed to the model.
const codeContentPreviewLimit = 500

func codeLinksPrompt(elements []models.DesignElement, components []models.CodeComponent, contents map[string]string, designLinks []models.TraceabilityLink) string {
	type elementPayload struct {
		ReferenceID string `json:"reference_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Section     string `json:"section"`
	}
	ep := make([]elementPayload, 0, len(elements))
	for _, e := range elements {
		ep = append(ep, elementPayload{e.ReferenceID, e.Name, e.Description, e.Type, e.Section})
	}

	type componentPayload struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Path           string `json:"path"`
		Type           string `json:"type"`
		ContentPreview string `json:"content_preview"`
	}
	cp := make([]componentPayload, 0, len(components))
	for _, c := range components {
		preview := contents[c.Path]
		if len(preview) > codeContentPreviewLimit {
			preview = preview[:codeContentPreviewLimit]
		}
		cp = append(cp, componentPayload{c.ID, c.Name, c.Path, c.Type, preview})
	}

	type linkPayload struct {
		Source string `json:"source"`
		Target string `json:"target"`
		Type   string `json:"type"`
	}
	lp := make([]linkPayload, 0, len(designLinks))
	for _, l := range designLinks {
		lp = append(lp, linkPayload{l.SourceID, l.TargetID, l.RelationshipType})
	}

	elementsJSON, _ := json.MarshalIndent(ep, "", "  ")
	componentsJSON, _ := json.MarshalIndent(cp, "", "  ")
	linksJSON, _ := json.MarshalIndent(lp, "", "  ")
	return fmt.Sprintf(`Identify meaningful relationships between the design elements and the code components below.

Design Elements:
%s

Code Components:
%s

Design-to-Design Relationships (for context):
%s`, elementsJSON, componentsJSON, linksJSON)
}
