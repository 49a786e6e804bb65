package domain

import "sort"

type Direction string

const (
	DirectionAncestors   Direction = "ancestors"
	DirectionDescendants Direction = "descendants"
	DirectionBoth        Direction = "both"
)

func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirectionAncestors, DirectionDescendants, DirectionBoth:
		return Direction(s), true
	case "":
		return DirectionBoth, true
	}
	return "", false
}

// Unlimited disables the depth bound of a traversal.
const Unlimited = -1

type TraversalSettings struct {
	Direction Direction
	MaxDepth  int
	// NodeKinds restricts which nodes are traversed into; seeds are always
	// included. Empty means every kind.
	NodeKinds    []NodeKind
	IncludeNPEs  bool
	IncludeEdges bool
	// MaxNodes bounds the neighborhood size; zero means no bound.
	MaxNodes int
	// EdgeTypes restricts which provenance edges are followed. Empty means
	// every type.
	EdgeTypes []EdgeType
}

func DefaultTraversal() TraversalSettings {
	return TraversalSettings{
		Direction:    DirectionBoth,
		MaxDepth:     Unlimited,
		IncludeNPEs:  true,
		IncludeEdges: true,
	}
}

func (s TraversalSettings) AllowsKind(k NodeKind) bool {
	if len(s.NodeKinds) == 0 {
		return true
	}
	for _, allowed := range s.NodeKinds {
		if allowed == k {
			return true
		}
	}
	return false
}

func (s TraversalSettings) AllowsEdgeType(t EdgeType) bool {
	if len(s.EdgeTypes) == 0 {
		return true
	}
	for _, allowed := range s.EdgeTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// LineageDAG is one viewer's materialized view of a neighborhood.
type LineageDAG struct {
	*Collection
	Seeds  []string
	Viewer Viewer
	// Access records how each surviving node is shown.
	Access map[string]AccessKind
}

// Fling returns the nearest surviving descendants of id: the targets of its
// direct or synthesized edges.
func (d *LineageDAG) Fling(id string) []string {
	seen := map[string]struct{}{}
	for _, e := range d.EdgesFrom(id) {
		seen[e.To] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for to := range seen {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// InferredEdges returns the edges emitted in place of hidden paths.
func (d *LineageDAG) InferredEdges() []Edge {
	var out []Edge
	for _, e := range d.Edges() {
		if e.Inferred {
			out = append(out, e)
		}
	}
	return out
}
