package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"lineage/internal/domain"
)

func TestMediator_SingleCandidate(t *testing.T) {
	l, _ := wellKnownLattice()
	n := testNode("only", 0, domain.ClassSecret)
	m := Mediator{Preference: PrivilegePreference{Dominator: l}}

	got, err := m.MostPreferable(context.Background(), []*domain.Node{n})
	if err != nil {
		t.Fatalf("most preferable: %v", err)
	}
	if got != n {
		t.Fatalf("expected the single candidate to be returned unchanged")
	}

	if _, err := m.MostPreferable(context.Background(), nil); !errors.Is(err, domain.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestPrivilegePreference_DominatingSubstituteWins(t *testing.T) {
	l, _ := wellKnownLattice()
	ctx := context.Background()
	low := testNode("n", 0, domain.ClassPublic)
	low.Surrogate = &domain.SurrogateDetail{Quality: domain.Metadata{"name": "exact", "metadata:a": "exact"}}
	high := testNode("n", 0, domain.ClassConfidential)
	high.Surrogate = &domain.SurrogateDetail{}

	m := Mediator{Preference: PrivilegePreference{Dominator: l}}
	got, err := m.MostPreferable(ctx, []*domain.Node{low, high})
	if err != nil {
		t.Fatalf("most preferable: %v", err)
	}
	if got != high {
		t.Fatalf("expected the strictly dominating substitute")
	}
}

func TestPrivilegePreference_TieBrokenByQuality(t *testing.T) {
	l, _ := wellKnownLattice()
	a := testNode("n", 0)
	a.Surrogate = &domain.SurrogateDetail{Quality: domain.Metadata{"name": "exact"}}
	b := testNode("n", 0)
	b.Surrogate = &domain.SurrogateDetail{Quality: domain.Metadata{"name": "exact", "metadata:origin": "exact"}}

	got, err := Mediator{Preference: PrivilegePreference{Dominator: l}}.MostPreferable(context.Background(), []*domain.Node{a, b})
	if err != nil {
		t.Fatalf("most preferable: %v", err)
	}
	if got != b {
		t.Fatalf("expected the substitute exposing more quality metadata")
	}
}

func TestRedactor_BlanksNodeAndKeepsIdentity(t *testing.T) {
	n := testNode("urn:uuid:1", 3, domain.ClassSecret)
	n.OwnerID = "alice"
	n.Metadata["sha256"] = "abc"

	sub, err := Redactor{FuncName: "keep-hash", KeepMetadata: []string{"sha256"}, Policy: domain.ShowAll}.
		Surrogate(context.Background(), n, domain.Viewer{})
	if err != nil {
		t.Fatalf("surrogate: %v", err)
	}
	if sub.ID != n.ID || !sub.Created.Equal(n.Created) || sub.Kind() != domain.KindData {
		t.Fatalf("expected identity, timestamp and kind to survive, got %+v", sub)
	}
	if sub.OwnerID != "" || sub.Name == n.Name {
		t.Fatalf("expected owner and name to be removed")
	}
	if len(sub.Metadata) != 1 || sub.Metadata["sha256"] != "abc" {
		t.Fatalf("expected only the kept metadata key, got %v", sub.Metadata)
	}
	if p := sub.Payload.(domain.DataPayload); p.Value != "" {
		t.Fatalf("expected blank payload, got %q", p.Value)
	}
	if !sub.IsSurrogate() || sub.Surrogate.EdgePolicy() != domain.ShowAll {
		t.Fatalf("expected surrogate detail with SHOW_ALL")
	}
}

func TestAccessResolver_AdmittedNodeIsUnchanged(t *testing.T) {
	l, _ := wellKnownLattice()
	r := NewAccessResolver(l, DefaultSurrogateRegistry(), domain.InferAll, zap.NewNop())
	n := testNode("n", 0, domain.ClassConfidential)
	n.SurrogateFuncs = []string{SurrogateRedact}

	acc, err := r.Resolve(context.Background(), n, domain.Viewer{Privileges: domain.NewPrivilegeSet(domain.ClassSecret)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if acc.Kind != domain.FullAccess || acc.Node != n {
		t.Fatalf("expected full access to the stored node")
	}
}

func TestAccessResolver_SkipsFailingFunctions(t *testing.T) {
	l, _ := wellKnownLattice()
	registry := NewSurrogateRegistry(
		SurrogateFuncOf("busy", func(context.Context, *domain.Node, domain.Viewer) (*domain.Node, error) {
			return nil, domain.ErrSurrogateUnavailable
		}),
		SurrogateFuncOf("broken", func(context.Context, *domain.Node, domain.Viewer) (*domain.Node, error) {
			return nil, fmt.Errorf("backend down")
		}),
		Redactor{FuncName: "secret-label", KeepName: true, Privileges: domain.NewPrivilegeSet(domain.ClassSecret)},
		Redactor{FuncName: SurrogateLabel, KeepName: true, Policy: domain.ShowAll},
	)
	r := NewAccessResolver(l, registry, domain.HideAll, nil)
	n := testNode("n", 0, domain.ClassTopSecret)
	n.SurrogateFuncs = []string{"busy", "missing", "broken", "secret-label", SurrogateLabel}

	acc, err := r.Resolve(context.Background(), n, domain.Viewer{Privileges: domain.NewPrivilegeSet(domain.ClassConfidential)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if acc.Kind != domain.SurrogateAccess || acc.Placeholder {
		t.Fatalf("expected a real substitute, got %+v", acc)
	}
	if len(acc.Node.Privileges) != 0 {
		t.Fatalf("expected the substitute the viewer may see, got %v", acc.Node.Privileges.IDs())
	}
	if acc.Node.Name != "n" {
		t.Fatalf("expected label substitute, got name %q", acc.Node.Name)
	}
}

func TestAccessResolver_PlaceholderWhenNothingRuns(t *testing.T) {
	l, _ := wellKnownLattice()
	r := NewAccessResolver(l, DefaultSurrogateRegistry(), domain.HideAll, nil)
	n := testNode("n", 0, domain.ClassSecret)

	acc, err := r.Resolve(context.Background(), n, domain.Viewer{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !acc.Placeholder || acc.Kind != domain.SurrogateAccess {
		t.Fatalf("expected placeholder access, got %+v", acc)
	}
	if acc.Node.ID != n.ID || len(acc.Node.Metadata) != 0 || acc.Node.Surrogate.EdgePolicy() != domain.HideAll {
		t.Fatalf("unexpected placeholder %+v", acc.Node)
	}
}
