// Package graph provides pure in-memory views over a baseline map: adjacency
// indexes, cycle checks on the design subgraph, and the bounded reverse walks
// the impact tracer runs. Nothing here suspends; the map is read once and
// indexed.
package graph

import (
	"github.com/mhelmih/docureco/internal/models"
)

// Index is an adjacency view over one map version.
type Index struct {
	m *models.BaselineMap

	outbound map[string][]models.TraceabilityLink // source_id -> links
	inbound  map[string][]models.TraceabilityLink // target_id -> links
}

// NewIndex builds the adjacency index for a map.
func NewIndex(m *models.BaselineMap) *Index {
	idx := &Index{
		m:        m,
		outbound: make(map[string][]models.TraceabilityLink),
		inbound:  make(map[string][]models.TraceabilityLink),
	}
	for _, l := range m.Links {
		idx.outbound[l.SourceID] = append(idx.outbound[l.SourceID], l)
		idx.inbound[l.TargetID] = append(idx.inbound[l.TargetID], l)
	}
	return idx
}

// Inbound returns the links pointing at the given node.
func (idx *Index) Inbound(nodeID string) []models.TraceabilityLink {
	return idx.inbound[nodeID]
}

// Outbound returns the links leaving the given node.
func (idx *Index) Outbound(nodeID string) []models.TraceabilityLink {
	return idx.outbound[nodeID]
}

// HasIncomingDesignLink reports whether any design element points at the
// node, i.e. whether a code component is mapped at all.
func (idx *Index) HasIncomingDesignLink(nodeID string) bool {
	for _, l := range idx.inbound[nodeID] {
		if l.SourceType == models.KindDesignElement {
			return true
		}
	}
	return false
}

// Reached is one document node found by an impact walk, with the hop count
// that reached it first.
type Reached struct {
	Kind models.NodeKind
	ID   string
	Hops int
}

// TraceFromCode walks the map backwards from a code component: first the
// design elements linking into it (hop 1), then the design elements and
// requirements linking into those (hop 2). Each node is reported once, at its
// minimum hop distance.
func (idx *Index) TraceFromCode(codeID string) []Reached {
	seen := map[string]bool{codeID: true}
	var out []Reached

	var frontier []string
	for _, l := range idx.inbound[codeID] {
		if l.SourceType != models.KindDesignElement || seen[l.SourceID] {
			continue
		}
		seen[l.SourceID] = true
		out = append(out, Reached{Kind: models.KindDesignElement, ID: l.SourceID, Hops: 1})
		frontier = append(frontier, l.SourceID)
	}

	for _, id := range frontier {
		for _, l := range idx.inbound[id] {
			if seen[l.SourceID] {
				continue
			}
			switch l.SourceType {
			case models.KindDesignElement, models.KindRequirement:
				seen[l.SourceID] = true
				out = append(out, Reached{Kind: l.SourceType, ID: l.SourceID, Hops: 2})
			}
		}
	}
	return out
}

// DesignCycle returns one directed cycle in the design-to-design subgraph as
// a node-ID path, or nil when the subgraph is acyclic.
func DesignCycle(links []models.TraceabilityLink) []string {
	adj := make(map[string][]string)
	for _, l := range links {
		if l.SourceType == models.KindDesignElement && l.TargetType == models.KindDesignElement {
			adj[l.SourceID] = append(adj[l.SourceID], l.TargetID)
		}
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		state[node] = inStack
		stack = append(stack, node)
		for _, next := range adj[node] {
			switch state[next] {
			case inStack:
				// Unwind the stack back to the repeated node.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append([]string{}, stack[i:]...)
						cycle = append(cycle, next)
						return true
					}
				}
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return false
	}

	for node := range adj {
		if state[node] == unvisited {
			if visit(node) {
				return cycle
			}
		}
	}
	return nil
}

// WouldCreateDesignCycle reports whether appending candidate to links closes
// a directed cycle in the design subgraph. Used as the tie-break when the
// classifier proposes a new edge.
func WouldCreateDesignCycle(links []models.TraceabilityLink, candidate models.TraceabilityLink) bool {
	if candidate.SourceType != models.KindDesignElement || candidate.TargetType != models.KindDesignElement {
		return false
	}
	trial := make([]models.TraceabilityLink, 0, len(links)+1)
	trial = append(trial, links...)
	trial = append(trial, candidate)
	return DesignCycle(trial) != nil
}
