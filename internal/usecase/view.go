package usecase

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"lineage/internal/domain"
)

// ViewBuilder materializes a viewer's LineageDAG from the raw neighborhood
// of a set of seeds.
type ViewBuilder struct {
	Store       GraphStore
	Lattice     *Lattice
	Registry    *SurrogateRegistry
	Placeholder domain.EdgePolicy
	Observer    ViewObserver
	Logger      *zap.Logger
}

func (b *ViewBuilder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *ViewBuilder) Build(ctx context.Context, seeds []string, viewer domain.Viewer, settings domain.TraversalSettings) (*domain.LineageDAG, error) {
	if b.Store == nil {
		return nil, errors.New("view builder requires a graph store")
	}
	if len(seeds) == 0 {
		return nil, domain.ErrNotFound
	}
	raw, err := b.Store.Neighborhood(ctx, seeds, settings)
	if err != nil {
		return nil, err
	}
	return b.Materialize(ctx, raw, seeds, viewer, settings)
}

// Materialize rewrites raw for viewer. raw is not modified. Any error aborts
// the whole view; per-edge problems are logged and the edge is dropped.
func (b *ViewBuilder) Materialize(ctx context.Context, raw *domain.Collection, seeds []string, viewer domain.Viewer, settings domain.TraversalSettings) (*domain.LineageDAG, error) {
	log := b.logger()
	stats := ViewStats{RawNodes: raw.NodeCount(), RawEdges: raw.EdgeCount()}
	resolver := NewAccessResolver(b.Lattice.Session(), b.Registry, b.Placeholder, log)

	reps := make(map[string]*domain.Node, raw.NodeCount())
	kinds := make(map[string]domain.AccessKind, raw.NodeCount())
	for _, n := range raw.NodesByCreated() {
		acc, err := resolver.Resolve(ctx, n, viewer)
		if err != nil {
			return nil, err
		}
		reps[n.ID] = acc.Node
		kinds[n.ID] = acc.Kind
		if acc.Kind == domain.SurrogateAccess {
			stats.Surrogates++
		}
		if acc.Placeholder {
			stats.Placeholders++
		}
	}

	for _, e := range raw.DanglingEdges() {
		stats.DanglingEdges++
		log.Warn("dropping edge", zap.String("edge", e.ID()), zap.Error(domain.ErrDanglingReference))
	}

	edges := raw.ResolvableEdges()
	marks := make([]domain.EdgeMarking, len(edges))
	hasShow := map[string]bool{}
	hasInfer := map[string]bool{}
	for i, e := range edges {
		m := b.mark(ctx, e, reps[e.From], reps[e.To])
		marks[i] = m
		switch m {
		case domain.MarkShow:
			hasShow[e.From], hasShow[e.To] = true, true
		case domain.MarkInfer:
			hasInfer[e.From], hasInfer[e.To] = true, true
		case domain.MarkHide:
			stats.HiddenEdges++
		}
	}

	spliced := map[string]bool{}
	for id, rep := range reps {
		if rep.IsSurrogate() && hasInfer[id] && !hasShow[id] {
			spliced[id] = true
		}
	}
	stats.Spliced = len(spliced)

	out := domain.NewCollection()
	for _, n := range raw.NodesByCreated() {
		if spliced[n.ID] {
			continue
		}
		if _, err := out.AddNode(reps[n.ID]); err != nil {
			return nil, err
		}
		for k, v := range raw.Tags(n.ID) {
			if kinds[n.ID] == domain.FullAccess {
				out.Tag(n.ID, k, v)
			}
		}
	}

	inferOut := map[string][]domain.Edge{}
	for i, e := range edges {
		switch marks[i] {
		case domain.MarkShow:
			if settings.IncludeEdges {
				if _, err := out.AddEdge(e); err != nil {
					return nil, err
				}
			}
		case domain.MarkInfer:
			inferOut[e.From] = append(inferOut[e.From], e)
		}
	}
	for _, e := range spliceInferred(out, inferOut, spliced) {
		stats.InferredEdges++
		if !settings.IncludeEdges {
			continue
		}
		if _, err := out.AddEdge(e); err != nil {
			return nil, err
		}
	}

	if settings.IncludeNPEs {
		for _, e := range raw.NPEs() {
			if npeAdmitted(e, raw, out, kinds) {
				if _, err := out.AddNPE(e); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, n := range out.NodesByCreated() {
		if kinds[n.ID] != domain.FullAccess || n.OwnerID == "" {
			continue
		}
		if a, ok := raw.Actor(n.OwnerID); ok {
			out.AddActor(a)
		}
	}

	access := make(map[string]domain.AccessKind, out.NodeCount())
	for _, id := range out.NodeIDs() {
		access[id] = kinds[id]
	}
	if b.Observer != nil {
		b.Observer.ObserveView(stats)
	}
	log.Debug("view materialized",
		zap.String("viewer", viewer.ActorID),
		zap.Int("raw_nodes", stats.RawNodes),
		zap.Int("surrogates", stats.Surrogates),
		zap.Int("spliced", stats.Spliced),
		zap.Int("hidden_edges", stats.HiddenEdges),
		zap.Int("inferred_edges", stats.InferredEdges),
	)
	return &domain.LineageDAG{
		Collection: out,
		Seeds:      lo.Filter(seeds, func(id string, _ int) bool { return out.ContainsNode(id) }),
		Viewer:     viewer,
		Access:     access,
	}, nil
}

// mark asks every endpoint that is a substitute for its vote; the most
// restrictive vote wins and no vote means show. A failing vote hides the edge.
func (b *ViewBuilder) mark(ctx context.Context, e domain.Edge, from, to *domain.Node) domain.EdgeMarking {
	m := domain.MarkAbstain
	for _, pair := range [][2]*domain.Node{{from, to}, {to, from}} {
		self, other := pair[0], pair[1]
		if !self.IsSurrogate() {
			continue
		}
		policy := self.Surrogate.EdgePolicy()
		vote, err := policy.Marking(ctx, e, self, other)
		if err != nil {
			b.logger().Warn("edge vote failed; hiding edge",
				zap.String("edge", e.ID()),
				zap.String("node", self.ID),
				zap.String("policy", policy.Name()),
				zap.Error(err))
			vote = domain.MarkHide
		}
		m = m.Restrict(vote)
	}
	return m.Resolve()
}

// spliceInferred connects every surviving node to each surviving node it
// reaches along infer edges whose interior nodes are all spliced out. The
// result depends only on the marked graph, not on any elimination order.
func spliceInferred(out *domain.Collection, inferOut map[string][]domain.Edge, spliced map[string]bool) []domain.Edge {
	var result []domain.Edge
	for _, u := range out.NodeIDs() {
		emitted := map[string]bool{}
		for _, e := range inferOut[u] {
			if out.ContainsNode(e.To) && e.To != u && !emitted[e.To] {
				emitted[e.To] = true
				result = append(result, domain.Edge{From: u, To: e.To, Type: e.Type, Workflow: e.Workflow, Inferred: true})
			}
		}

		visited := map[string]bool{u: true}
		var frontier []string
		for _, e := range inferOut[u] {
			if spliced[e.To] && !visited[e.To] {
				visited[e.To] = true
				frontier = append(frontier, e.To)
			}
		}
		for len(frontier) > 0 {
			cur := frontier[0]
			frontier = frontier[1:]
			for _, e := range inferOut[cur] {
				v := e.To
				if visited[v] {
					continue
				}
				visited[v] = true
				if spliced[v] {
					frontier = append(frontier, v)
					continue
				}
				if out.ContainsNode(v) && !emitted[v] {
					emitted[v] = true
					result = append(result, domain.Edge{
						From:     u,
						To:       v,
						Type:     domain.EdgeUnspecified,
						Workflow: domain.DefaultWorkflow,
						Inferred: true,
					})
				}
			}
		}
	}
	return result
}

// npeAdmitted keeps an NPE only when every provenance endpoint it touches
// survived with full access.
func npeAdmitted(e domain.NonProvenanceEdge, raw, out *domain.Collection, kinds map[string]domain.AccessKind) bool {
	touched := 0
	for _, id := range []string{e.From, e.To} {
		if !raw.ContainsNode(id) {
			continue
		}
		touched++
		if !out.ContainsNode(id) || kinds[id] != domain.FullAccess {
			return false
		}
	}
	return touched > 0
}
