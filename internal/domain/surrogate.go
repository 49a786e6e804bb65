package domain

import (
	"context"
	"fmt"
	"strings"
)

type EdgeMarking int

const (
	MarkAbstain EdgeMarking = iota
	MarkShow
	MarkInfer
	MarkHide
)

func (m EdgeMarking) String() string {
	switch m {
	case MarkShow:
		return "show"
	case MarkInfer:
		return "infer"
	case MarkHide:
		return "hide"
	default:
		return "abstain"
	}
}

func ParseEdgeMarking(s string) (EdgeMarking, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "show":
		return MarkShow, nil
	case "infer":
		return MarkInfer, nil
	case "hide":
		return MarkHide, nil
	case "abstain", "":
		return MarkAbstain, nil
	}
	return MarkAbstain, fmt.Errorf("unknown edge marking %q", s)
}

// Restrict combines two votes; the more restrictive one wins
// (hide > infer > show > abstain).
func (m EdgeMarking) Restrict(other EdgeMarking) EdgeMarking {
	if other > m {
		return other
	}
	return m
}

// Resolve turns an abstention into show.
func (m EdgeMarking) Resolve() EdgeMarking {
	if m == MarkAbstain {
		return MarkShow
	}
	return m
}

// EdgePolicy decides how a surrogate's incident edges are shown. self is the
// surrogate casting the vote and other is the node at the opposite end.
type EdgePolicy interface {
	Name() string
	Marking(ctx context.Context, e Edge, self, other *Node) (EdgeMarking, error)
}

// SurrogateDetail is present exactly on nodes that are substitutes.
type SurrogateDetail struct {
	Quality         Metadata
	MoreInformation string
	Policy          EdgePolicy
}

func (d *SurrogateDetail) EdgePolicy() EdgePolicy {
	if d == nil || d.Policy == nil {
		return ShowAll
	}
	return d.Policy
}

type fixedPolicy struct {
	name    string
	marking EdgeMarking
}

func (p fixedPolicy) Name() string { return p.name }

func (p fixedPolicy) Marking(context.Context, Edge, *Node, *Node) (EdgeMarking, error) {
	return p.marking, nil
}

// directionalPolicy marks incoming and outgoing edges differently.
type directionalPolicy struct {
	name     string
	incoming EdgeMarking
	outgoing EdgeMarking
}

func (p directionalPolicy) Name() string { return p.name }

func (p directionalPolicy) Marking(_ context.Context, e Edge, self, _ *Node) (EdgeMarking, error) {
	if self != nil && e.To == self.ID {
		return p.incoming, nil
	}
	return p.outgoing, nil
}

var (
	ShowAll           EdgePolicy = fixedPolicy{name: "SHOW_ALL", marking: MarkShow}
	HideAll           EdgePolicy = fixedPolicy{name: "HIDE_ALL", marking: MarkHide}
	InferAll          EdgePolicy = fixedPolicy{name: "INFER_ALL", marking: MarkInfer}
	InInferOutVisible EdgePolicy = directionalPolicy{name: "IN_INFER_OUT_VISIBLE", incoming: MarkInfer, outgoing: MarkShow}
	InVisibleOutInfer EdgePolicy = directionalPolicy{name: "IN_VISIBLE_OUT_INFER", incoming: MarkShow, outgoing: MarkInfer}
)

func ParseEdgePolicy(name string) (EdgePolicy, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SHOW_ALL", "SHOW":
		return ShowAll, true
	case "HIDE_ALL", "HIDE":
		return HideAll, true
	case "INFER_ALL", "INFER":
		return InferAll, true
	case "IN_INFER_OUT_VISIBLE":
		return InInferOutVisible, true
	case "IN_VISIBLE_OUT_INFER":
		return InVisibleOutInfer, true
	}
	return nil, false
}

// OverridePolicy assigns markings to individual edges. Keys may be an
// Edge.ID() or the OID of the neighbor; edge keys take precedence. Edges
// without an entry fall through to Fallback, or abstain when it is nil.
type OverridePolicy struct {
	Overrides map[string]EdgeMarking
	Fallback  EdgePolicy
}

func (p OverridePolicy) Name() string { return "OVERRIDES" }

func (p OverridePolicy) Marking(ctx context.Context, e Edge, self, other *Node) (EdgeMarking, error) {
	if m, ok := p.Overrides[e.ID()]; ok {
		return m, nil
	}
	if other != nil {
		if m, ok := p.Overrides[other.ID]; ok {
			return m, nil
		}
	}
	if p.Fallback == nil {
		return MarkAbstain, nil
	}
	return p.Fallback.Marking(ctx, e, self, other)
}

// EdgeVoter is consulted once per neighbor by a VoterPolicy.
type EdgeVoter interface {
	Vote(ctx context.Context, e Edge, self, other *Node) (EdgeMarking, error)
}

type EdgeVoterFunc func(ctx context.Context, e Edge, self, other *Node) (EdgeMarking, error)

func (f EdgeVoterFunc) Vote(ctx context.Context, e Edge, self, other *Node) (EdgeMarking, error) {
	return f(ctx, e, self, other)
}

type VoterPolicy struct {
	Label string
	Voter EdgeVoter
}

func (p VoterPolicy) Name() string {
	if p.Label == "" {
		return "VOTER"
	}
	return p.Label
}

func (p VoterPolicy) Marking(ctx context.Context, e Edge, self, other *Node) (EdgeMarking, error) {
	if p.Voter == nil {
		return MarkAbstain, nil
	}
	return p.Voter.Vote(ctx, e, self, other)
}

// AccessKind distinguishes a node shown as stored from one shown through a
// substitute.
type AccessKind int

const (
	FullAccess AccessKind = iota
	SurrogateAccess
)

func (k AccessKind) String() string {
	if k == SurrogateAccess {
		return "surrogate"
	}
	return "full"
}

type Access struct {
	Kind AccessKind
	Node *Node
	// Placeholder is set when no surrogate function could run and a minimal
	// substitute was synthesized instead.
	Placeholder bool
}
