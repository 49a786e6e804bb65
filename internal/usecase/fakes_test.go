package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lineage/internal/domain"
)

type memoryGraph struct {
	c        *domain.Collection
	writeErr error
	writes   int
}

func newMemoryGraph() *memoryGraph {
	return &memoryGraph{c: domain.NewCollection()}
}

func (m *memoryGraph) GetNode(_ context.Context, id string) (*domain.Node, error) {
	n, ok := m.c.Node(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

func (m *memoryGraph) GetActor(_ context.Context, id string) (*domain.Actor, error) {
	a, ok := m.c.Actor(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *memoryGraph) IncidentEdges(_ context.Context, id string, dir domain.Direction, types ...domain.EdgeType) ([]domain.Edge, error) {
	var out []domain.Edge
	for _, e := range m.c.Edges() {
		if len(types) > 0 && !(domain.TraversalSettings{EdgeTypes: types}).AllowsEdgeType(e.Type) {
			continue
		}
		in := e.To == id && dir != domain.DirectionDescendants
		outgoing := e.From == id && dir != domain.DirectionAncestors
		if in || outgoing {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryGraph) IncidentNPEs(_ context.Context, id string, _ ...string) ([]domain.NonProvenanceEdge, error) {
	var out []domain.NonProvenanceEdge
	for _, e := range m.c.NPEs() {
		if e.Touches(id) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryGraph) Neighborhood(ctx context.Context, seeds []string, settings domain.TraversalSettings) (*domain.Collection, error) {
	return ExpandNeighborhood(ctx, m, seeds, settings)
}

func (m *memoryGraph) FindByMetadata(_ context.Context, key, value string, max int) ([]*domain.Node, error) {
	var out []*domain.Node
	for _, n := range m.c.NodesByCreated() {
		if n.Metadata[key] == value {
			out = append(out, n)
		}
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}

func (m *memoryGraph) Search(_ context.Context, term string, max int) ([]*domain.Node, error) {
	var out []*domain.Node
	for _, n := range m.c.NodesByCreated() {
		if strings.Contains(n.Name, term) {
			out = append(out, n)
		}
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}

func (m *memoryGraph) ListActors(_ context.Context, max int) ([]domain.Actor, error) {
	out := m.c.Actors()
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (m *memoryGraph) ListWorkflows(_ context.Context, max int) ([]*domain.Node, error) {
	var out []*domain.Node
	for _, n := range m.c.NodesByCreated() {
		if n.Kind() == domain.KindWorkflow {
			out = append(out, n)
		}
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (m *memoryGraph) WorkflowMembers(_ context.Context, workflowID string, _ int) (*domain.Collection, error) {
	out := domain.NewCollection()
	for _, e := range m.c.ResolvableEdges() {
		if e.Workflow != workflowID {
			continue
		}
		for _, id := range []string{e.From, e.To} {
			n, _ := m.c.Node(id)
			_, _ = out.AddNode(n)
		}
		_, _ = out.AddEdge(e)
	}
	return out, nil
}

func (m *memoryGraph) WriteCollection(_ context.Context, c *domain.Collection) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.c.Merge(c)
	return nil
}

// memoryPrivileges answers reachability over an explicit dominance map.
// wrong, when set, is returned in place of every reached class.
type memoryPrivileges struct {
	classes   map[string]domain.PrivilegeClass
	dominated map[string][]string
	wrong     *domain.PrivilegeClass
	calls     int
}

func newMemoryPrivileges() *memoryPrivileges {
	return &memoryPrivileges{classes: map[string]domain.PrivilegeClass{}, dominated: map[string][]string{}}
}

func (m *memoryPrivileges) GetClass(_ context.Context, id string) (*domain.PrivilegeClass, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *memoryPrivileges) PutClass(_ context.Context, class domain.PrivilegeClass) error {
	m.classes[class.ID] = class
	return nil
}

func (m *memoryPrivileges) AddDominance(_ context.Context, d domain.Dominance) error {
	if _, ok := m.classes[d.Dominator]; !ok {
		return errors.New("unknown dominator")
	}
	m.dominated[d.Dominator] = append(m.dominated[d.Dominator], d.Dominated)
	return nil
}

func (m *memoryPrivileges) ReachableClass(_ context.Context, from, to string) (*domain.PrivilegeClass, error) {
	m.calls++
	seen := map[string]bool{from: true}
	frontier := []string{from}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, next := range m.dominated[cur] {
			if next == to {
				if m.wrong != nil {
					return m.wrong, nil
				}
				c := m.classes[to]
				return &c, nil
			}
			if !seen[next] {
				seen[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	return nil, nil
}

func wellKnownLattice() (*Lattice, *memoryPrivileges) {
	store := newMemoryPrivileges()
	l := NewLattice(store)
	if err := l.Seed(context.Background(), domain.WellKnownLattice()); err != nil {
		panic(err)
	}
	return l, store
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// testNode builds a data node with a fixed creation time offset by seq.
func testNode(id string, seq int, privileges ...string) *domain.Node {
	return &domain.Node{
		ID:         id,
		Name:       id,
		Created:    testEpoch.Add(time.Duration(seq) * time.Second),
		Privileges: domain.NewPrivilegeSet(privileges...),
		Payload:    domain.DataPayload{Subtype: domain.DataString, Value: id},
		Metadata:   domain.Metadata{"origin": id},
	}
}

func addNodes(t *testing.T, c *domain.Collection, nodes ...*domain.Node) {
	t.Helper()
	for _, n := range nodes {
		if _, err := c.AddNode(n); err != nil {
			t.Fatalf("add node %s: %v", n.ID, err)
		}
	}
}

func addEdges(t *testing.T, c *domain.Collection, pairs ...[2]string) {
	t.Helper()
	for _, p := range pairs {
		if _, err := c.AddEdge(domain.NewEdge(p[0], p[1], domain.EdgeContributed)); err != nil {
			t.Fatalf("add edge %v: %v", p, err)
		}
	}
}
