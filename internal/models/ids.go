package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// Surrogate IDs embed their provenance so inverse lookups need no index:
//
//	REQ-<file_path>-NNN   requirement extracted from <file_path>
//	DE-<file_path>-NNN    design element extracted from <file_path>
//	CC-NNN                code component (path-independent namespace)
//	RD-NNN / DD-NNN / DC-NNN   links, one counter per namespace
//
// NNN is monotonic per namespace within a map. File paths may themselves
// contain dashes, so parsing anchors on the prefix and the trailing serial.

var elementIDPattern = regexp.MustCompile(`^(REQ|DE)-(.+)-(\d+)$`)

// NewRequirementID builds a requirement surrogate ID.
func NewRequirementID(filePath string, serial int) string {
	return fmt.Sprintf("REQ-%s-%03d", filePath, serial)
}

// NewDesignElementID builds a design-element surrogate ID.
func NewDesignElementID(filePath string, serial int) string {
	return fmt.Sprintf("DE-%s-%03d", filePath, serial)
}

// NewCodeComponentID builds a code-component surrogate ID.
func NewCodeComponentID(serial int) string {
	return fmt.Sprintf("CC-%03d", serial)
}

// NewLinkID builds a link ID in the namespace returned by LinkKindPrefix.
func NewLinkID(prefix string, serial int) string {
	return fmt.Sprintf("%s-%03d", prefix, serial)
}

// ParseElementID splits a document-node surrogate ID into its kind, source
// file path and serial. It returns false for code-component and link IDs.
func ParseElementID(id string) (kind NodeKind, filePath string, serial int, ok bool) {
	m := elementIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", "", 0, false
	}
	serial, err := strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, false
	}
	switch m[1] {
	case "REQ":
		kind = KindRequirement
	case "DE":
		kind = KindDesignElement
	}
	return kind, m[2], serial, true
}

// ElementIDPatternForFile compiles the lookup pattern that selects every
// document node originating from one file: ^(REQ|DE)-<escaped path>-\d+$.
func ElementIDPatternForFile(filePath string) *regexp.Regexp {
	return regexp.MustCompile(`^(REQ|DE)-` + regexp.QuoteMeta(filePath) + `-\d+$`)
}

// serialPattern extracts the trailing counter of any surrogate or link ID.
var serialPattern = regexp.MustCompile(`-(\d+)$`)

// IDSerial returns the trailing numeric serial of an ID, or 0 when absent.
func IDSerial(id string) int {
	m := serialPattern.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
