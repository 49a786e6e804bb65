package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"lineage/internal/domain"
)

// TaintService answers taint questions. A taint is a node linked to the node
// it marks by a marks edge; it is inherited by every descendant.
type TaintService struct {
	Store       GraphStore
	Lattice     *Lattice
	Registry    *SurrogateRegistry
	Placeholder domain.EdgePolicy
	Logger      *zap.Logger
}

func (s *TaintService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Mark records a taint on id. The taint carries the marked node's
// privileges and surrogate functions so it is never easier to see than the
// node itself.
func (s *TaintService) Mark(ctx context.Context, id, claimant, description string) (*domain.Node, error) {
	if strings.TrimSpace(claimant) == "" {
		return nil, fmt.Errorf("%w: claimant is required", domain.ErrInvalidNode)
	}
	target, err := s.Store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	taint := domain.NewTaint(claimant, description)
	taint.Privileges = append(domain.PrivilegeSet(nil), target.Privileges...)
	taint.SurrogateFuncs = append([]string(nil), target.SurrogateFuncs...)

	c := domain.NewCollection()
	if _, err := c.AddNode(taint); err != nil {
		return nil, err
	}
	if _, err := c.AddEdge(domain.NewEdge(taint.ID, target.ID, domain.EdgeMarks)); err != nil {
		return nil, err
	}
	if err := s.Store.WriteCollection(ctx, c); err != nil {
		return nil, err
	}
	return taint, nil
}

// DirectTaints returns the taints marking id itself, as viewer may see them.
func (s *TaintService) DirectTaints(ctx context.Context, id string, viewer domain.Viewer) ([]*domain.Node, error) {
	if _, err := s.Store.GetNode(ctx, id); err != nil {
		return nil, err
	}
	taints, err := s.directTaints(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.visible(ctx, taints, viewer)
}

// IndirectTaintSources returns the direct taints of every provenance
// ancestor of id. Marks edges and NPEs are not followed.
func (s *TaintService) IndirectTaintSources(ctx context.Context, id string, viewer domain.Viewer) ([]*domain.Node, error) {
	if _, err := s.Store.GetNode(ctx, id); err != nil {
		return nil, err
	}
	seen := map[string]bool{id: true}
	frontier := []string{id}
	found := map[string]*domain.Node{}
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := frontier[0]
		frontier = frontier[1:]
		edges, err := s.Store.IncidentEdges(ctx, cur, domain.DirectionAncestors)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.Type == domain.EdgeMarks || e.To != cur || seen[e.From] {
				continue
			}
			seen[e.From] = true
			frontier = append(frontier, e.From)
			taints, err := s.directTaints(ctx, e.From)
			if err != nil {
				return nil, err
			}
			for _, t := range taints {
				found[t.ID] = t
			}
		}
	}
	out := make([]*domain.Node, 0, len(found))
	for _, t := range found {
		out = append(out, t)
	}
	return s.visible(ctx, sortByCreated(out), viewer)
}

func (s *TaintService) directTaints(ctx context.Context, id string) ([]*domain.Node, error) {
	edges, err := s.Store.IncidentEdges(ctx, id, domain.DirectionAncestors, domain.EdgeMarks)
	if err != nil {
		return nil, err
	}
	var out []*domain.Node
	for _, e := range edges {
		if e.To != id || e.Type != domain.EdgeMarks {
			continue
		}
		n, err := s.Store.GetNode(ctx, e.From)
		if errors.Is(err, domain.ErrNotFound) {
			s.logger().Warn("dropping marks edge", zap.String("edge", e.ID()), zap.Error(domain.ErrDanglingReference))
			continue
		}
		if err != nil {
			return nil, err
		}
		if n.Kind() == domain.KindTaint {
			out = append(out, n)
		}
	}
	return sortByCreated(out), nil
}

// visible passes taints through the same access rules as a view. A
// substitute whose edge policy hides everything, placeholders included, is
// omitted since its marks edge would be hidden too.
func (s *TaintService) visible(ctx context.Context, taints []*domain.Node, viewer domain.Viewer) ([]*domain.Node, error) {
	resolver := NewAccessResolver(s.Lattice.Session(), s.Registry, s.Placeholder, s.logger())
	out := make([]*domain.Node, 0, len(taints))
	for _, t := range taints {
		acc, err := resolver.Resolve(ctx, t, viewer)
		if err != nil {
			return nil, err
		}
		if acc.Kind == domain.SurrogateAccess && acc.Node.Surrogate.EdgePolicy() == domain.HideAll {
			continue
		}
		out = append(out, acc.Node)
	}
	return out, nil
}

func sortByCreated(nodes []*domain.Node) []*domain.Node {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Created.Equal(nodes[j].Created) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].Created.Before(nodes[j].Created)
	})
	return nodes
}
