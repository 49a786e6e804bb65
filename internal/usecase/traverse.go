package usecase

import (
	"context"
	"errors"
	"fmt"

	"lineage/internal/domain"
)

// ExpandNeighborhood walks provenance edges breadth-first from seeds and
// returns the raw subgraph it reached. Edges whose far end does not exist are
// kept so callers can report them; edges into nodes excluded by kind or by
// the node bound are not.
func ExpandNeighborhood(ctx context.Context, r NodeReader, seeds []string, s domain.TraversalSettings) (*domain.Collection, error) {
	if s.Direction == "" {
		s.Direction = domain.DirectionBoth
	}
	out := domain.NewCollection()

	type item struct {
		id    string
		depth int
	}
	const (
		included = iota + 1
		excluded
		missing
	)
	state := map[string]int{}
	var queue []item

	for _, id := range seeds {
		if state[id] != 0 {
			continue
		}
		n, err := r.GetNode(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", id, err)
		}
		if _, err := out.AddNode(n); err != nil {
			return nil, fmt.Errorf("seed %s: %w", id, err)
		}
		state[id] = included
		queue = append(queue, item{id: id})
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		if s.IncludeNPEs {
			npes, err := r.IncidentNPEs(ctx, cur.id)
			if err != nil {
				return nil, fmt.Errorf("npes of %s: %w", cur.id, err)
			}
			for _, e := range npes {
				if _, err := out.AddNPE(e); err != nil {
					return nil, err
				}
			}
		}
		if s.MaxDepth != domain.Unlimited && cur.depth >= s.MaxDepth {
			continue
		}

		edges, err := r.IncidentEdges(ctx, cur.id, s.Direction, s.EdgeTypes...)
		if err != nil {
			return nil, fmt.Errorf("edges of %s: %w", cur.id, err)
		}
		for _, e := range edges {
			next := e.Other(cur.id)
			switch state[next] {
			case excluded:
				continue
			case included, missing:
			default:
				n, err := r.GetNode(ctx, next)
				switch {
				case errors.Is(err, domain.ErrNotFound):
					state[next] = missing
				case err != nil:
					return nil, fmt.Errorf("node %s: %w", next, err)
				case !s.AllowsKind(n.Kind()):
					state[next] = excluded
					continue
				case s.MaxNodes > 0 && out.NodeCount() >= s.MaxNodes:
					continue
				default:
					if _, err := out.AddNode(n); err != nil {
						return nil, fmt.Errorf("node %s: %w", next, err)
					}
					state[next] = included
					queue = append(queue, item{id: next, depth: cur.depth + 1})
				}
			}
			if _, err := out.AddEdge(e); err != nil {
				return nil, err
			}
		}
	}

	if err := addOwners(ctx, r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func addOwners(ctx context.Context, r NodeReader, c *domain.Collection) error {
	for _, n := range c.NodesByCreated() {
		if n.OwnerID == "" || c.ContainsActor(n.OwnerID) {
			continue
		}
		a, err := r.GetActor(ctx, n.OwnerID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("owner %s: %w", n.OwnerID, err)
		}
		c.AddActor(*a)
	}
	return nil
}
