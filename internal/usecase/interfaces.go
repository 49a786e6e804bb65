package usecase

import (
	"context"

	"lineage/internal/domain"
)

// NodeReader is the part of a graph store needed to walk provenance edges.
type NodeReader interface {
	GetNode(ctx context.Context, id string) (*domain.Node, error)
	GetActor(ctx context.Context, id string) (*domain.Actor, error)
	IncidentEdges(ctx context.Context, id string, dir domain.Direction, types ...domain.EdgeType) ([]domain.Edge, error)
	IncidentNPEs(ctx context.Context, id string, types ...string) ([]domain.NonProvenanceEdge, error)
}

type GraphStore interface {
	NodeReader

	// Neighborhood returns the raw, unfiltered subgraph around seeds.
	Neighborhood(ctx context.Context, seeds []string, settings domain.TraversalSettings) (*domain.Collection, error)
	FindByMetadata(ctx context.Context, key, value string, max int) ([]*domain.Node, error)
	Search(ctx context.Context, term string, max int) ([]*domain.Node, error)
	ListActors(ctx context.Context, max int) ([]domain.Actor, error)
	ListWorkflows(ctx context.Context, max int) ([]*domain.Node, error)
	WorkflowMembers(ctx context.Context, workflowID string, max int) (*domain.Collection, error)

	// WriteCollection commits every object of c or none of them.
	WriteCollection(ctx context.Context, c *domain.Collection) error
}

type PrivilegeStore interface {
	GetClass(ctx context.Context, id string) (*domain.PrivilegeClass, error)
	PutClass(ctx context.Context, class domain.PrivilegeClass) error
	AddDominance(ctx context.Context, d domain.Dominance) error
	// ReachableClass returns the class reached from `from` along the
	// dominance relation when searching for `to`, or nil when `to` is not
	// reachable.
	ReachableClass(ctx context.Context, from, to string) (*domain.PrivilegeClass, error)
}

// SurrogateFunc produces a reduced-information substitute for node.
// Returning domain.ErrSurrogateUnavailable signals a transient refusal.
type SurrogateFunc interface {
	Name() string
	Surrogate(ctx context.Context, node *domain.Node, viewer domain.Viewer) (*domain.Node, error)
}

// ObjectPreference reports whether a is strictly preferred over b.
type ObjectPreference interface {
	Prefer(ctx context.Context, a, b *domain.Node) (bool, error)
}

// FingerprintCache maps content fingerprints to the OID already holding
// that content.
type FingerprintCache interface {
	Get(fingerprint string) (string, bool)
	Add(fingerprint, oid string)
}

// ViewObserver receives per-view statistics.
type ViewObserver interface {
	ObserveView(stats ViewStats)
}

type ViewStats struct {
	RawNodes      int
	RawEdges      int
	Surrogates    int
	Placeholders  int
	Spliced       int
	HiddenEdges   int
	InferredEdges int
	DanglingEdges int
}
