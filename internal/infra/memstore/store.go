package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"lineage/internal/domain"
	"lineage/internal/usecase"
)

// Store keeps the provenance graph and the privilege lattice in memory. It
// serves no-db mode, the offline CLI and tests.
type Store struct {
	mu         sync.RWMutex
	nodes      map[string]*domain.Node
	out        map[string]map[string]domain.Edge
	in         map[string]map[string]domain.Edge
	npes       map[string]domain.NonProvenanceEdge
	npesByNode map[string][]string
	actors     map[string]domain.Actor
	classes    map[string]domain.PrivilegeClass
	dominated  map[string][]string
}

func New() *Store {
	return &Store{
		nodes:      make(map[string]*domain.Node),
		out:        make(map[string]map[string]domain.Edge),
		in:         make(map[string]map[string]domain.Edge),
		npes:       make(map[string]domain.NonProvenanceEdge),
		npesByNode: make(map[string][]string),
		actors:     make(map[string]domain.Actor),
		classes:    make(map[string]domain.PrivilegeClass),
		dominated:  make(map[string][]string),
	}
}

func (s *Store) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}
	return n.Clone(), nil
}

func (s *Store) GetActor(ctx context.Context, id string) (*domain.Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	if !ok {
		return nil, fmt.Errorf("actor %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) IncidentEdges(ctx context.Context, id string, dir domain.Direction, types ...domain.EdgeType) ([]domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter := domain.TraversalSettings{EdgeTypes: types}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Edge
	collect := func(edges map[string]domain.Edge) {
		for _, e := range edges {
			if filter.AllowsEdgeType(e.Type) {
				out = append(out, e)
			}
		}
	}
	if dir != domain.DirectionDescendants {
		collect(s.in[id])
	}
	if dir != domain.DirectionAncestors {
		collect(s.out[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (s *Store) IncidentNPEs(ctx context.Context, id string, types ...string) ([]domain.NonProvenanceEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.NonProvenanceEdge
	for _, key := range s.npesByNode[id] {
		e := s.npes[key]
		if len(types) > 0 && !lo.Contains(types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Neighborhood(ctx context.Context, seeds []string, settings domain.TraversalSettings) (*domain.Collection, error) {
	return usecase.ExpandNeighborhood(ctx, s, seeds, settings)
}

func (s *Store) FindByMetadata(ctx context.Context, key, value string, max int) ([]*domain.Node, error) {
	return s.match(ctx, max, func(n *domain.Node) bool {
		v, ok := n.Metadata[key]
		return ok && v == value
	})
}

// Search matches term case-insensitively against names and metadata values.
func (s *Store) Search(ctx context.Context, term string, max int) ([]*domain.Node, error) {
	term = strings.ToLower(term)
	return s.match(ctx, max, func(n *domain.Node) bool {
		if strings.Contains(strings.ToLower(n.Name), term) {
			return true
		}
		for _, v := range n.Metadata {
			if strings.Contains(strings.ToLower(v), term) {
				return true
			}
		}
		return false
	})
}

func (s *Store) ListWorkflows(ctx context.Context, max int) ([]*domain.Node, error) {
	return s.match(ctx, max, func(n *domain.Node) bool { return n.Kind() == domain.KindWorkflow })
}

func (s *Store) match(ctx context.Context, max int, keep func(*domain.Node) bool) ([]*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Node
	for _, n := range s.nodes {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	sortNodes(out)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (s *Store) ListActors(ctx context.Context, max int) ([]domain.Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// WorkflowMembers returns the edges recorded under workflowID and their
// endpoints, plus the workflow node itself when it is stored.
func (s *Store) WorkflowMembers(ctx context.Context, workflowID string, max int) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := domain.NewCollection()
	if n, ok := s.nodes[workflowID]; ok {
		if _, err := out.AddNode(n.Clone()); err != nil {
			return nil, err
		}
	}
	var edges []domain.Edge
	for _, byID := range s.out {
		for _, e := range byID {
			if e.Workflow == workflowID {
				edges = append(edges, e)
			}
		}
	}
	if len(edges) == 0 && out.NodeCount() == 0 {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, domain.ErrNotFound)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID() < edges[j].ID() })
	for _, e := range edges {
		if max > 0 && out.NodeCount() >= max && !(out.ContainsNode(e.From) && out.ContainsNode(e.To)) {
			break
		}
		for _, id := range []string{e.From, e.To} {
			if _, err := out.AddNode(s.nodes[id].Clone()); err != nil {
				return nil, err
			}
		}
		if _, err := out.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteCollection applies c under a single lock after validating every
// reference, so readers see all of it or none of it. Objects already stored
// are left as they are.
func (s *Store) WriteCollection(ctx context.Context, c *domain.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	known := func(id string) bool {
		_, ok := s.nodes[id]
		return ok || c.ContainsNode(id)
	}
	for _, e := range c.Edges() {
		if !known(e.From) || !known(e.To) {
			return fmt.Errorf("edge %s: %w", e.ID(), domain.ErrDanglingReference)
		}
	}
	for _, e := range c.NPEs() {
		if !known(e.From) && !known(e.To) {
			return fmt.Errorf("npe %s: %w", e.ID, domain.ErrDanglingReference)
		}
	}

	for _, a := range c.Actors() {
		if _, ok := s.actors[a.ID]; !ok {
			s.actors[a.ID] = a
		}
	}
	for _, n := range c.NodesByCreated() {
		if _, ok := s.nodes[n.ID]; !ok {
			s.nodes[n.ID] = n.Clone()
		}
	}
	for _, e := range c.Edges() {
		if s.out[e.From] == nil {
			s.out[e.From] = make(map[string]domain.Edge)
		}
		if s.in[e.To] == nil {
			s.in[e.To] = make(map[string]domain.Edge)
		}
		id := e.ID()
		if _, ok := s.out[e.From][id]; ok {
			continue
		}
		s.out[e.From][id] = e
		s.in[e.To][id] = e
	}
	for _, e := range c.NPEs() {
		if _, ok := s.npes[e.ID]; ok {
			continue
		}
		s.npes[e.ID] = e
		for _, id := range []string{e.From, e.To} {
			if _, ok := s.nodes[id]; ok {
				s.npesByNode[id] = append(s.npesByNode[id], e.ID)
			}
		}
	}
	return nil
}

func (s *Store) GetClass(ctx context.Context, id string) (*domain.PrivilegeClass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[id]
	if !ok {
		return nil, fmt.Errorf("privilege class %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (s *Store) PutClass(ctx context.Context, class domain.PrivilegeClass) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(class.ID) == "" {
		return fmt.Errorf("privilege class id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[class.ID] = class
	return nil
}

func (s *Store) AddDominance(ctx context.Context, d domain.Dominance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range []string{d.Dominator, d.Dominated} {
		if _, ok := s.classes[id]; !ok {
			return fmt.Errorf("privilege class %s: %w", id, domain.ErrNotFound)
		}
	}
	if lo.Contains(s.dominated[d.Dominator], d.Dominated) {
		return nil
	}
	s.dominated[d.Dominator] = append(s.dominated[d.Dominator], d.Dominated)
	return nil
}

func (s *Store) ReachableClass(ctx context.Context, from, to string) (*domain.PrivilegeClass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{from: true}
	frontier := []string{from}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, next := range s.dominated[cur] {
			if next == to {
				c := s.classes[to]
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

func sortNodes(nodes []*domain.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Created.Equal(nodes[j].Created) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].Created.Before(nodes[j].Created)
	})
}

var (
	_ usecase.GraphStore     = (*Store)(nil)
	_ usecase.PrivilegeStore = (*Store)(nil)
)
