package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"lineage/internal/domain"
)

func newTestService(t *testing.T) (*LineageService, *memoryGraph) {
	t.Helper()
	store := newMemoryGraph()
	privileges := newMemoryPrivileges()
	svc := NewLineageService(store, privileges, ServiceOptions{})
	if err := svc.Lattice.Seed(context.Background(), domain.WellKnownLattice()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc, store
}

func TestLineageService_Dominates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.Dominates(ctx, domain.ClassAdmin, domain.ClassPublic)
	if err != nil || !ok {
		t.Fatalf("expected admin to dominate public, got %v %v", ok, err)
	}
	if _, err := svc.Dominates(ctx, "nonexistent", domain.ClassPublic); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown class, got %v", err)
	}
}

func TestLineageService_SearchAppliesAccess(t *testing.T) {
	svc, store := newTestService(t)
	secret := testNode("report-secret", 0, domain.ClassSecret)
	secret.SurrogateFuncs = []string{SurrogateRedact}
	addNodes(t, store.c, testNode("report-public", 1), secret)

	dag, err := svc.Search(context.Background(), "report", "", 10, publicViewer)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if dag.NodeCount() != 2 {
		t.Fatalf("expected both matches, got %d", dag.NodeCount())
	}
	got, _ := dag.Node("report-secret")
	if !got.IsSurrogate() || got.Name == secret.Name {
		t.Fatalf("expected secret match to be redacted, got %+v", got)
	}

	dag, err = svc.Search(context.Background(), "report-public", "origin", 10, publicViewer)
	if err != nil {
		t.Fatalf("metadata search: %v", err)
	}
	if !reflect.DeepEqual(dag.NodeIDs(), []string{"report-public"}) {
		t.Fatalf("unexpected metadata matches %v", dag.NodeIDs())
	}
}

func TestLineageService_Fling(t *testing.T) {
	svc, store := newTestService(t)
	b := testNode("b", 1, domain.ClassSecret)
	b.SurrogateFuncs = []string{SurrogateRedact}
	addNodes(t, store.c, testNode("a", 0), b, testNode("c", 2), testNode("d", 3))
	addEdges(t, store.c, [2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"a", "d"})

	got, err := svc.Fling(context.Background(), "a", publicViewer, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("fling: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Fatalf("expected fling {c, d}, got %v", got)
	}
}

func TestLineageService_WorkflowMembers(t *testing.T) {
	svc, store := newTestService(t)
	addNodes(t, store.c, testNode("a", 0), testNode("b", 1), testNode("c", 2))
	e := domain.NewEdge("a", "b", domain.EdgeGenerated)
	e.Workflow = "urn:uuid:wf"
	if _, err := store.c.AddEdge(e); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	addEdges(t, store.c, [2]string{"b", "c"})

	dag, err := svc.WorkflowMembers(context.Background(), "urn:uuid:wf", 0, publicViewer)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if !reflect.DeepEqual(dag.NodeIDs(), []string{"a", "b"}) || dag.EdgeCount() != 1 {
		t.Fatalf("unexpected members %v", dag.NodeIDs())
	}
}
