package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lineage/internal/domain"
	"lineage/internal/usecase"
)

func node(id string, seq int) *domain.Node {
	return &domain.Node{
		ID:      id,
		Name:    id,
		Created: time.Unix(int64(seq), 0).UTC(),
		Payload: domain.DataPayload{Subtype: domain.DataFile, Value: "/tmp/" + id},
	}
}

func TestStore_WriteIsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := domain.NewCollection()
	if _, err := c.AddNode(node("a", 0)); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if _, err := c.AddEdge(domain.NewEdge("a", "missing", domain.EdgeInputTo)); err != nil {
		t.Fatalf("add edge: %v", err)
	}

	if err := s.WriteCollection(ctx, c); !errors.Is(err, domain.ErrDanglingReference) {
		t.Fatalf("expected dangling reference, got %v", err)
	}
	if _, err := s.GetNode(ctx, "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected nothing to be written, got %v", err)
	}
}

func TestStore_IncidentEdgesAndNeighborhood(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := domain.NewCollection()
	for i, id := range []string{"a", "b", "c"} {
		if _, err := c.AddNode(node(id, i)); err != nil {
			t.Fatalf("add node: %v", err)
		}
	}
	c.AddEdge(domain.NewEdge("a", "b", domain.EdgeInputTo))
	c.AddEdge(domain.NewEdge("b", "c", domain.EdgeGenerated))
	if err := s.WriteCollection(ctx, c); err != nil {
		t.Fatalf("write: %v", err)
	}

	in, err := s.IncidentEdges(ctx, "b", domain.DirectionAncestors)
	if err != nil || len(in) != 1 || in[0].From != "a" {
		t.Fatalf("unexpected incoming edges %v %v", in, err)
	}
	typed, err := s.IncidentEdges(ctx, "b", domain.DirectionBoth, domain.EdgeGenerated)
	if err != nil || len(typed) != 1 || typed[0].To != "c" {
		t.Fatalf("unexpected typed edges %v %v", typed, err)
	}

	raw, err := s.Neighborhood(ctx, []string{"a"}, domain.DefaultTraversal())
	if err != nil {
		t.Fatalf("neighborhood: %v", err)
	}
	if raw.NodeCount() != 3 || raw.EdgeCount() != 2 {
		t.Fatalf("expected full chain, got %d nodes %d edges", raw.NodeCount(), raw.EdgeCount())
	}
}

func TestStore_ReachableClass(t *testing.T) {
	s := New()
	l := usecase.NewLattice(s)
	ctx := context.Background()
	if err := l.Seed(ctx, domain.WellKnownLattice()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reached, err := s.ReachableClass(ctx, domain.ClassAdmin, domain.ClassPublic)
	if err != nil || reached == nil || reached.ID != domain.ClassPublic {
		t.Fatalf("expected admin to reach public, got %v %v", reached, err)
	}
	reached, err = s.ReachableClass(ctx, domain.ClassPublic, domain.ClassAdmin)
	if err != nil || reached != nil {
		t.Fatalf("expected public not to reach admin, got %v %v", reached, err)
	}
	if err := s.AddDominance(ctx, domain.Dominance{Dominator: "ghost", Dominated: domain.ClassPublic}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown class to be rejected, got %v", err)
	}
}

func TestStore_FindByMetadataAndSearch(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := domain.NewCollection()
	n := node("file", 0)
	n.Metadata = domain.Metadata{"sha256": "abc", "path": "/data/Results.csv"}
	c.AddNode(n)
	if err := s.WriteCollection(ctx, c); err != nil {
		t.Fatalf("write: %v", err)
	}

	found, err := s.FindByMetadata(ctx, "sha256", "abc", 1)
	if err != nil || len(found) != 1 {
		t.Fatalf("expected one match, got %v %v", found, err)
	}
	found, err = s.Search(ctx, "results", 10)
	if err != nil || len(found) != 1 {
		t.Fatalf("expected case-insensitive metadata match, got %v %v", found, err)
	}
}

func TestStore_ConcurrentReadsAndWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c := domain.NewCollection()
			c.AddNode(node(domain.NewOID(), i))
			if err := s.WriteCollection(ctx, c); err != nil {
				t.Errorf("write: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := s.Search(ctx, "tmp", 10); err != nil {
				t.Errorf("search: %v", err)
			}
		}()
	}
	wg.Wait()
	found, err := s.Search(ctx, "urn:uuid:", 0)
	if err != nil || len(found) != 8 {
		t.Fatalf("expected 8 nodes, got %d %v", len(found), err)
	}
}

func TestStore_ReportSkipsDanglingNPE(t *testing.T) {
	store := New()
	r := &usecase.Reporter{Store: store}
	n := &domain.Node{ID: domain.NewOID(), Name: "a", Payload: domain.GenericPayload{}}
	batch := domain.NewCollection()
	if _, err := batch.AddNode(n); err != nil {
		t.Fatalf("add: %v", err)
	}
	good, _ := domain.NewNonProvenanceEdge(n.ID, "sha256:abc", "hash")
	dangling, _ := domain.NewNonProvenanceEdge(domain.NewOID(), "https://example.com/x", "url")
	batch.AddNPE(good)
	batch.AddNPE(dangling)

	res, err := r.Report(context.Background(), batch)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if res.Dropped != 1 || res.NPEs != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := store.GetNode(context.Background(), n.ID); err != nil {
		t.Fatalf("expected the valid node to be stored: %v", err)
	}
	npes, err := store.IncidentNPEs(context.Background(), n.ID)
	if err != nil || len(npes) != 1 || npes[0].ID != good.ID {
		t.Fatalf("unexpected npes %v %v", npes, err)
	}
}
