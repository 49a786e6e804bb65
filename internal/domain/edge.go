package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultWorkflow marks edges that were not recorded as part of any workflow.
const DefaultWorkflow = "urn:uuid:lineage:null-workflow"

type EdgeType string

const (
	EdgeContributed EdgeType = "contributed"
	EdgeGenerated   EdgeType = "generated"
	EdgeInputTo     EdgeType = "input to"
	EdgeTriggered   EdgeType = "triggered"
	EdgeMarks       EdgeType = "marks"
	EdgeUnspecified EdgeType = "unspecified"
)

func ParseEdgeType(s string) (EdgeType, bool) {
	switch EdgeType(s) {
	case EdgeContributed, EdgeGenerated, EdgeInputTo, EdgeTriggered, EdgeMarks, EdgeUnspecified:
		return EdgeType(s), true
	case "":
		return EdgeUnspecified, true
	}
	return "", false
}

// Edge is a directed provenance edge between two node identifiers.
// Inferred is set only on edges synthesized or re-emitted by view
// materialization.
type Edge struct {
	From     string
	To       string
	Type     EdgeType
	Workflow string
	Inferred bool
}

func NewEdge(from, to string, typ EdgeType) Edge {
	return Edge{From: from, To: to, Type: typ, Workflow: DefaultWorkflow}
}

func (e Edge) ID() string {
	return e.From + "|" + string(e.Type) + "|" + e.To
}

func (e Edge) Validate() error {
	if e.From == "" || e.To == "" {
		return fmt.Errorf("%w: both endpoints are required", ErrInvalidEdge)
	}
	if _, ok := ParseEdgeType(string(e.Type)); !ok {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEdge, e.Type)
	}
	return nil
}

// Other returns the endpoint of e that is not id.
func (e Edge) Other(id string) string {
	if e.From == id {
		return e.To
	}
	return e.From
}

// NonProvenanceEdge links a provenance node to an arbitrary reference such
// as a content hash or a URI.
type NonProvenanceEdge struct {
	ID      string
	From    string
	To      string
	Type    string
	Created time.Time
}

func NewNonProvenanceEdge(from, to, typ string) (NonProvenanceEdge, error) {
	npe := NonProvenanceEdge{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Type:    typ,
		Created: time.Now().UTC(),
	}
	if err := npe.Validate(); err != nil {
		return NonProvenanceEdge{}, err
	}
	return npe, nil
}

func (e NonProvenanceEdge) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidNonProvenanceEdge)
	}
	if !IsOID(e.From) && !IsOID(e.To) {
		return fmt.Errorf("%w: neither %q nor %q is a provenance identifier", ErrInvalidNonProvenanceEdge, e.From, e.To)
	}
	return nil
}

// Touches reports whether id is one of the endpoints.
func (e NonProvenanceEdge) Touches(id string) bool {
	return e.From == id || e.To == id
}

type Actor struct {
	ID      string
	Name    string
	Created time.Time
	Type    string
}
