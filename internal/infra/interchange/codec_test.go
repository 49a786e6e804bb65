package interchange

import (
	"errors"
	"testing"
	"time"

	"lineage/internal/domain"
)

func sampleCollection(t *testing.T) *domain.Collection {
	t.Helper()
	base := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	c := domain.NewCollection()
	c.AddActor(domain.Actor{ID: "alice", Name: "Alice", Created: base, Type: "person"})
	in := &domain.Node{ID: domain.NewOID(), Name: "raw.csv", Created: base, OwnerID: "alice",
		Metadata:   domain.Metadata{"sha256": "abc"},
		Privileges: domain.NewPrivilegeSet(domain.ClassSecret), SurrogateFuncs: []string{"redact"},
		Payload: domain.DataPayload{Subtype: domain.DataFile, Value: "/data/raw.csv"}}
	run := &domain.Node{ID: domain.NewOID(), Name: "clean", Created: base.Add(time.Minute),
		Payload: domain.InvocationPayload{Input: "raw.csv", Output: "clean.csv"}}
	out := &domain.Node{ID: domain.NewOID(), Name: "clean.csv", Created: base.Add(2 * time.Minute), Uncertainty: 0.1,
		Payload: domain.DataPayload{Subtype: domain.DataFile, Value: "/data/clean.csv"}}
	for _, n := range []*domain.Node{in, run, out} {
		if _, err := c.AddNode(n); err != nil {
			t.Fatalf("add node: %v", err)
		}
	}
	c.AddEdge(domain.NewEdge(in.ID, run.ID, domain.EdgeInputTo))
	c.AddEdge(domain.NewEdge(run.ID, out.ID, domain.EdgeGenerated))
	npe, err := domain.NewNonProvenanceEdge(out.ID, "sha256:def", "hash")
	if err != nil {
		t.Fatalf("npe: %v", err)
	}
	c.AddNPE(npe)
	c.Tag(out.ID, "stage", "silver")
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec(nil)
	orig := sampleCollection(t)
	data, err := codec.Encode(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, _, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NodeCount() != orig.NodeCount() || got.EdgeCount() != orig.EdgeCount() ||
		got.NPECount() != orig.NPECount() || got.ActorCount() != orig.ActorCount() {
		t.Fatalf("counts differ: nodes %d/%d edges %d/%d npes %d/%d actors %d/%d",
			got.NodeCount(), orig.NodeCount(), got.EdgeCount(), orig.EdgeCount(),
			got.NPECount(), orig.NPECount(), got.ActorCount(), orig.ActorCount())
	}
	for _, n := range orig.NodesByCreated() {
		back, ok := got.Node(n.ID)
		if !ok {
			t.Fatalf("node %s lost", n.ID)
		}
		if back.Name != n.Name || back.Kind() != n.Kind() || back.OwnerID != n.OwnerID || back.Uncertainty != n.Uncertainty {
			t.Fatalf("node %s changed: %+v", n.ID, back)
		}
		if back.Payload != n.Payload {
			t.Fatalf("payload of %s changed: %#v vs %#v", n.ID, back.Payload, n.Payload)
		}
	}
	for _, e := range orig.Edges() {
		if !got.ContainsEdge(e) {
			t.Fatalf("edge %s lost", e.ID())
		}
	}
	for _, e := range orig.NPEs() {
		if !got.ContainsNPE(e.ID) {
			t.Fatalf("npe %s lost", e.ID)
		}
	}
	for _, n := range orig.NodesByCreated() {
		if len(orig.Tags(n.ID)) > 0 && got.Tags(n.ID)["stage"] != "silver" {
			t.Fatalf("tags of %s lost", n.ID)
		}
	}
}

func TestDecode_RequiresNodesAndLinks(t *testing.T) {
	codec := NewCodec(nil)
	for _, doc := range []string{`{"links": []}`, `{"nodes": []}`, `{"nodes": {}, "links": []}`, `[1,2]`, `{nodes`} {
		if _, _, err := codec.Decode([]byte(doc)); !errors.Is(err, domain.ErrMalformedInterchangeDocument) {
			t.Fatalf("expected malformed document for %s, got %v", doc, err)
		}
	}
}

func TestDecode_DropsDanglingAndInvalidItems(t *testing.T) {
	doc := `{
	  "nodes": [
	    {"id": "urn:uuid:6f1c0c3e-8f32-4f7b-9d0e-1f1b3f1a0001", "label": "a", "type": "data", "subtype": "string"},
	    {"label": "b", "type": "invocation"},
	    {"label": "c", "type": "spaceship"}
	  ],
	  "links": [
	    {"source": 0, "target": 1, "label": "input to"},
	    {"source": 1, "target": 2, "type": "generated"},
	    {"from": "urn:uuid:6f1c0c3e-8f32-4f7b-9d0e-1f1b3f1a0001", "to": "urn:uuid:missing", "type": "generated"},
	    {"source": 0, "target": 1, "type": "teleported"}
	  ],
	  "npes": [{"id": "n1", "from": "x", "to": "y", "type": "bad"}],
	  "seeds": ["urn:uuid:6f1c0c3e-8f32-4f7b-9d0e-1f1b3f1a0001"]
	}`
	c, seeds, err := NewCodec(nil).Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.NodeCount() != 2 {
		t.Fatalf("expected the unknown node type to be skipped, got %d nodes", c.NodeCount())
	}
	if c.EdgeCount() != 1 {
		t.Fatalf("expected only the resolvable link, got %d", c.EdgeCount())
	}
	if c.NPECount() != 0 {
		t.Fatalf("expected the invalid npe to be skipped")
	}
	if len(seeds) != 1 {
		t.Fatalf("unexpected seeds %v", seeds)
	}
}

func TestEncodeView_MarksAccess(t *testing.T) {
	c := sampleCollection(t)
	nodes := c.NodesByCreated()
	sub := nodes[0].Clone()
	sub.Name = "(restricted)"
	sub.Surrogate = &domain.SurrogateDetail{Policy: domain.InferAll}
	if err := c.PutNode(sub); err != nil {
		t.Fatalf("put: %v", err)
	}
	dag := &domain.LineageDAG{
		Collection: c,
		Seeds:      []string{nodes[2].ID},
		Access:     map[string]domain.AccessKind{nodes[0].ID: domain.SurrogateAccess, nodes[1].ID: domain.FullAccess},
	}
	doc := NewCodec(nil).ViewDocument(dag)
	if doc.Nodes[0].Access != "surrogate" || doc.Nodes[0].Surrogate == nil || doc.Nodes[0].Surrogate.Policy != "INFER_ALL" {
		t.Fatalf("unexpected surrogate rendering %+v", doc.Nodes[0])
	}
	if doc.Nodes[1].Access != "full" || len(doc.Seeds) != 1 {
		t.Fatalf("unexpected view document %+v", doc)
	}
}
