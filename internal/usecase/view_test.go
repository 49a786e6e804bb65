package usecase

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"lineage/internal/domain"
)

type countingObserver struct {
	views []ViewStats
}

func (o *countingObserver) ObserveView(stats ViewStats) { o.views = append(o.views, stats) }

func newTestBuilder(store *memoryGraph) (*ViewBuilder, *countingObserver) {
	l, _ := wellKnownLattice()
	obs := &countingObserver{}
	return &ViewBuilder{
		Store:       store,
		Lattice:     l,
		Registry:    DefaultSurrogateRegistry(),
		Placeholder: domain.InferAll,
		Observer:    obs,
	}, obs
}

func edgePairs(dag *domain.LineageDAG) [][2]string {
	var out [][2]string
	for _, e := range dag.Edges() {
		out = append(out, [2]string{e.From, e.To})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] == out[j][0] {
			return out[i][1] < out[j][1]
		}
		return out[i][0] < out[j][0]
	})
	return out
}

var publicViewer = domain.Viewer{ActorID: "viewer", Privileges: domain.NewPrivilegeSet(domain.ClassPublic)}

func TestViewBuilder_IdentityForAdmittedNodes(t *testing.T) {
	store := newMemoryGraph()
	a := testNode("a", 0, domain.ClassPublic)
	b := testNode("b", 1)
	addNodes(t, store.c, a, b)
	addEdges(t, store.c, [2]string{"a", "b"})
	builder, obs := newTestBuilder(store)

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got, ok := dag.Node("a")
	if !ok || got != a {
		t.Fatalf("expected node a unchanged")
	}
	if dag.Access["a"] != domain.FullAccess || dag.Access["b"] != domain.FullAccess {
		t.Fatalf("expected full access, got %v", dag.Access)
	}
	if !reflect.DeepEqual(edgePairs(dag), [][2]string{{"a", "b"}}) {
		t.Fatalf("unexpected edges %v", edgePairs(dag))
	}
	if dag.Edges()[0].Inferred {
		t.Fatalf("expected a shown edge, not an inferred one")
	}
	if len(obs.views) != 1 || obs.views[0].RawNodes != 2 {
		t.Fatalf("expected one observed view, got %+v", obs.views)
	}
}

func TestViewBuilder_FullSplice(t *testing.T) {
	store := newMemoryGraph()
	b := testNode("b", 1, domain.ClassSecret)
	b.SurrogateFuncs = []string{SurrogateRedact}
	addNodes(t, store.c, testNode("a", 0), b, testNode("c", 2))
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"})
	builder, obs := newTestBuilder(store)

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(dag.NodeIDs(), []string{"a", "c"}) {
		t.Fatalf("expected nodes {a, c}, got %v", dag.NodeIDs())
	}
	if !reflect.DeepEqual(edgePairs(dag), [][2]string{{"a", "c"}}) {
		t.Fatalf("expected single edge a->c, got %v", edgePairs(dag))
	}
	if !dag.Edges()[0].Inferred {
		t.Fatalf("expected a->c to be inferred")
	}
	if !reflect.DeepEqual(dag.Fling("a"), []string{"c"}) {
		t.Fatalf("expected fling(a) = {c}, got %v", dag.Fling("a"))
	}
	if obs.views[0].Spliced != 1 || obs.views[0].InferredEdges != 1 {
		t.Fatalf("unexpected stats %+v", obs.views[0])
	}
}

func TestViewBuilder_HideSeversLineage(t *testing.T) {
	store := newMemoryGraph()
	b := testNode("b", 1, domain.ClassSecret)
	b.SurrogateFuncs = []string{SurrogateHide}
	addNodes(t, store.c, testNode("a", 0), b, testNode("c", 2))
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"})
	builder, obs := newTestBuilder(store)

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if dag.EdgeCount() != 0 {
		t.Fatalf("expected no edges, got %v", edgePairs(dag))
	}
	if !dag.ContainsNode("b") || dag.Access["b"] != domain.SurrogateAccess {
		t.Fatalf("expected b to remain as a substitute")
	}
	if len(dag.Fling("a")) != 0 {
		t.Fatalf("expected empty fling, got %v", dag.Fling("a"))
	}
	if obs.views[0].HiddenEdges != 2 {
		t.Fatalf("expected two hidden edges, got %d", obs.views[0].HiddenEdges)
	}
}

func TestViewBuilder_MostRestrictiveVoteWins(t *testing.T) {
	store := newMemoryGraph()
	b := testNode("b", 1, domain.ClassSecret)
	b.SurrogateFuncs = []string{SurrogateLabel}
	c := testNode("c", 2, domain.ClassSecret)
	c.SurrogateFuncs = []string{SurrogateHide}
	addNodes(t, store.c, testNode("a", 0), b, c)
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"})
	builder, _ := newTestBuilder(store)

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(edgePairs(dag), [][2]string{{"a", "b"}}) {
		t.Fatalf("expected only a->b to be shown, got %v", edgePairs(dag))
	}
}

func TestViewBuilder_BranchingChainsAreConfluent(t *testing.T) {
	// a -> b1 -> b2 -> c, b1 -> d, e -> b2; b1 and b2 are spliced.
	build := func(order []string) [][2]string {
		store := newMemoryGraph()
		nodes := map[string]*domain.Node{
			"a": testNode("a", 0), "b1": testNode("b1", 1, domain.ClassSecret),
			"b2": testNode("b2", 2, domain.ClassSecret), "c": testNode("c", 3),
			"d": testNode("d", 4), "e": testNode("e", 5),
		}
		nodes["b1"].SurrogateFuncs = []string{SurrogateRedact}
		nodes["b2"].SurrogateFuncs = []string{SurrogateRedact}
		for _, id := range order {
			addNodes(t, store.c, nodes[id])
		}
		addEdges(t, store.c,
			[2]string{"a", "b1"}, [2]string{"b1", "b2"}, [2]string{"b2", "c"},
			[2]string{"b1", "d"}, [2]string{"e", "b2"})
		builder, _ := newTestBuilder(store)
		dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if dag.ContainsNode("b1") || dag.ContainsNode("b2") {
			t.Fatalf("expected b1 and b2 to be spliced out")
		}
		return edgePairs(dag)
	}

	want := [][2]string{{"a", "c"}, {"a", "d"}, {"e", "c"}}
	for _, order := range [][]string{
		{"a", "b1", "b2", "c", "d", "e"},
		{"e", "d", "c", "b2", "b1", "a"},
		{"b2", "a", "e", "b1", "d", "c"},
	} {
		if got := build(order); !reflect.DeepEqual(got, want) {
			t.Fatalf("order %v: expected %v, got %v", order, want, got)
		}
	}
}

func TestViewBuilder_ShowEdgeKeepsInferringNode(t *testing.T) {
	// b shows incoming edges and infers outgoing ones, so it stays.
	store := newMemoryGraph()
	b := testNode("b", 1, domain.ClassSecret)
	b.SurrogateFuncs = []string{"in-visible"}
	addNodes(t, store.c, testNode("a", 0), b, testNode("c", 2))
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"})
	builder, _ := newTestBuilder(store)
	builder.Registry.Register(Redactor{FuncName: "in-visible", Policy: domain.InVisibleOutInfer})

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !dag.ContainsNode("b") {
		t.Fatalf("expected b to survive")
	}
	if !reflect.DeepEqual(edgePairs(dag), [][2]string{{"a", "b"}, {"b", "c"}}) {
		t.Fatalf("unexpected edges %v", edgePairs(dag))
	}
	if len(dag.InferredEdges()) != 1 || dag.InferredEdges()[0].From != "b" {
		t.Fatalf("expected b->c to be re-emitted as inferred, got %v", dag.InferredEdges())
	}
}

func TestViewBuilder_PlaceholderKeepsConnectivity(t *testing.T) {
	store := newMemoryGraph()
	addNodes(t, store.c, testNode("a", 0), testNode("b", 1, domain.ClassSecret), testNode("c", 2))
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"})
	builder, obs := newTestBuilder(store)

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(edgePairs(dag), [][2]string{{"a", "c"}}) {
		t.Fatalf("expected placeholder to be spliced, got %v", edgePairs(dag))
	}
	if obs.views[0].Placeholders != 1 {
		t.Fatalf("expected one placeholder, got %d", obs.views[0].Placeholders)
	}
}

func TestViewBuilder_InvalidSubstituteFallsBackToPlaceholder(t *testing.T) {
	store := newMemoryGraph()
	secret := testNode("b", 1, domain.ClassSecret)
	secret.SurrogateFuncs = []string{"oversized"}
	addNodes(t, store.c, testNode("a", 0), secret, testNode("c", 2))
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"})
	builder, obs := newTestBuilder(store)
	builder.Registry = NewSurrogateRegistry(SurrogateFuncOf("oversized", func(_ context.Context, n *domain.Node, _ domain.Viewer) (*domain.Node, error) {
		sub := Placeholder(n, domain.ShowAll)
		sub.Metadata = domain.Metadata{"blob": strings.Repeat("x", domain.MaxMetadataValueBytes+1)}
		return sub, nil
	}))

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if obs.views[0].Placeholders != 1 {
		t.Fatalf("expected the invalid substitute to be replaced by a placeholder, got %d", obs.views[0].Placeholders)
	}
	if n, ok := dag.Node("b"); ok && len(n.Metadata) != 0 {
		t.Fatalf("expected no metadata on the placeholder, got %v", n.Metadata)
	}
	if !reflect.DeepEqual(edgePairs(dag), [][2]string{{"a", "c"}}) {
		t.Fatalf("expected placeholder to be spliced, got %v", edgePairs(dag))
	}
}

func TestViewBuilder_VoterErrorHidesEdge(t *testing.T) {
	store := newMemoryGraph()
	b := testNode("b", 1, domain.ClassSecret)
	b.SurrogateFuncs = []string{"flaky"}
	addNodes(t, store.c, testNode("a", 0), b)
	addEdges(t, store.c, [2]string{"a", "b"})
	builder, _ := newTestBuilder(store)
	builder.Registry.Register(Redactor{FuncName: "flaky", Policy: domain.VoterPolicy{
		Voter: domain.EdgeVoterFunc(func(context.Context, domain.Edge, *domain.Node, *domain.Node) (domain.EdgeMarking, error) {
			return domain.MarkShow, errors.New("voter offline")
		}),
	}})

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if dag.EdgeCount() != 0 {
		t.Fatalf("expected the edge to be hidden, got %v", edgePairs(dag))
	}
}

func TestViewBuilder_OverridePolicyPerNeighbor(t *testing.T) {
	store := newMemoryGraph()
	b := testNode("b", 1, domain.ClassSecret)
	b.SurrogateFuncs = []string{"override"}
	addNodes(t, store.c, testNode("a", 0), b, testNode("c", 2), testNode("d", 3))
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"b", "d"})
	builder, _ := newTestBuilder(store)
	builder.Registry.Register(Redactor{FuncName: "override", Policy: domain.OverridePolicy{
		Overrides: map[string]domain.EdgeMarking{"d": domain.MarkHide},
		Fallback:  domain.ShowAll,
	}})

	dag, err := builder.Build(context.Background(), []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(edgePairs(dag), [][2]string{{"a", "b"}, {"b", "c"}}) {
		t.Fatalf("unexpected edges %v", edgePairs(dag))
	}
}

func TestViewBuilder_DropsDanglingEdges(t *testing.T) {
	l, _ := wellKnownLattice()
	builder := &ViewBuilder{Lattice: l, Registry: DefaultSurrogateRegistry()}
	raw := domain.NewCollection()
	addNodes(t, raw, testNode("a", 0))
	addEdges(t, raw, [2]string{"a", "ghost"})

	dag, err := builder.Materialize(context.Background(), raw, []string{"a"}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if dag.EdgeCount() != 0 || dag.NodeCount() != 1 {
		t.Fatalf("expected the dangling edge to be dropped")
	}
}

func TestViewBuilder_NPEsAndActorsOnlyForAdmittedNodes(t *testing.T) {
	store := newMemoryGraph()
	a := testNode("urn:uuid:00000000-0000-0000-0000-00000000000a", 0)
	a.OwnerID = "alice"
	b := testNode("urn:uuid:00000000-0000-0000-0000-00000000000b", 1, domain.ClassSecret)
	b.OwnerID = "bob"
	b.SurrogateFuncs = []string{SurrogateLabel}
	addNodes(t, store.c, a, b)
	addEdges(t, store.c, [2]string{a.ID, b.ID})
	store.c.AddActor(domain.Actor{ID: "alice", Name: "Alice"})
	store.c.AddActor(domain.Actor{ID: "bob", Name: "Bob"})
	for _, id := range []string{a.ID, b.ID} {
		npe, err := domain.NewNonProvenanceEdge(id, "https://example.com/"+id, "seeAlso")
		if err != nil {
			t.Fatalf("npe: %v", err)
		}
		if _, err := store.c.AddNPE(npe); err != nil {
			t.Fatalf("add npe: %v", err)
		}
	}
	builder, _ := newTestBuilder(store)

	dag, err := builder.Build(context.Background(), []string{a.ID}, publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	npes := dag.NPEs()
	if len(npes) != 1 || npes[0].From != a.ID {
		t.Fatalf("expected only a's npe, got %+v", npes)
	}
	if !dag.ContainsActor("alice") || dag.ContainsActor("bob") {
		t.Fatalf("expected only alice, got %+v", dag.Actors())
	}
	got, _ := dag.Node(b.ID)
	if got.OwnerID != "" || got.Name != b.Name {
		t.Fatalf("expected label substitute without owner, got %+v", got)
	}
}

func TestViewBuilder_LatticeFailureAbortsView(t *testing.T) {
	store := newMemoryGraph()
	addNodes(t, store.c, testNode("a", 0, domain.ClassPublic))
	builder, _ := newTestBuilder(store)
	builder.Lattice.Store.(*memoryPrivileges).wrong = &domain.PrivilegeClass{ID: "bogus"}
	viewer := domain.Viewer{Privileges: domain.NewPrivilegeSet(domain.ClassSecret)}

	dag, err := builder.Build(context.Background(), []string{"a"}, viewer, domain.DefaultTraversal())
	if !errors.Is(err, domain.ErrLatticeInconsistency) || dag != nil {
		t.Fatalf("expected lattice inconsistency and no view, got %v %v", dag, err)
	}
}
