package domain

import (
	"context"
	"sort"
)

type PrivilegeClass struct {
	ID          string
	Name        string
	Description string
}

const (
	ClassAdmin          = "admin"
	ClassTopSecret      = "top-secret"
	ClassSecret         = "secret"
	ClassConfidential   = "confidential"
	ClassUnclassified   = "unclassified"
	ClassPrivateMedical = "private-medical"
	ClassPublic         = "public"
)

// Dominance is one edge of the lattice: Dominator dominates Dominated.
type Dominance struct {
	Dominator string
	Dominated string
}

// LatticeDefinition is the data needed to seed a privilege store.
type LatticeDefinition struct {
	Classes   []PrivilegeClass
	Dominance []Dominance
}

// WellKnownLattice returns a new copy of the built-in classes.
// admin > top-secret > secret > confidential > unclassified > public, and
// admin > private-medical > public.
func WellKnownLattice() LatticeDefinition {
	return LatticeDefinition{
		Classes: []PrivilegeClass{
			{ID: ClassAdmin, Name: "Administrator", Description: "dominates every class"},
			{ID: ClassTopSecret, Name: "Top Secret"},
			{ID: ClassSecret, Name: "Secret"},
			{ID: ClassConfidential, Name: "Confidential"},
			{ID: ClassUnclassified, Name: "Unclassified"},
			{ID: ClassPrivateMedical, Name: "Private Medical"},
			{ID: ClassPublic, Name: "Public", Description: "visible to everyone"},
		},
		Dominance: []Dominance{
			{Dominator: ClassAdmin, Dominated: ClassTopSecret},
			{Dominator: ClassTopSecret, Dominated: ClassSecret},
			{Dominator: ClassSecret, Dominated: ClassConfidential},
			{Dominator: ClassConfidential, Dominated: ClassUnclassified},
			{Dominator: ClassUnclassified, Dominated: ClassPublic},
			{Dominator: ClassAdmin, Dominated: ClassPrivateMedical},
			{Dominator: ClassPrivateMedical, Dominated: ClassPublic},
		},
	}
}

// Dominator answers the class-level dominance question.
type Dominator interface {
	Dominates(ctx context.Context, a, b PrivilegeClass) (bool, error)
}

// PrivilegeSet is an unordered collection of classes. Combination is
// conjunctive unless DominatesAny is used.
type PrivilegeSet []PrivilegeClass

func NewPrivilegeSet(ids ...string) PrivilegeSet {
	out := make(PrivilegeSet, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, PrivilegeClass{ID: id})
	}
	return out
}

func (s PrivilegeSet) IDs() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, c.ID)
	}
	sort.Strings(out)
	return out
}

func (s PrivilegeSet) Contains(id string) bool {
	for _, c := range s {
		if c.ID == id {
			return true
		}
	}
	return false
}

// DominatesClass is true iff some member of s dominates other.
func (s PrivilegeSet) DominatesClass(ctx context.Context, d Dominator, other PrivilegeClass) (bool, error) {
	for _, c := range s {
		ok, err := d.Dominates(ctx, c, other)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Dominates is true iff s dominates every class of other. An empty other is
// dominated by any set.
func (s PrivilegeSet) Dominates(ctx context.Context, d Dominator, other PrivilegeSet) (bool, error) {
	for _, c := range other {
		ok, err := s.DominatesClass(ctx, d, c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// DominatesAny is the disjunctive form: true iff s dominates at least one
// class of other.
func (s PrivilegeSet) DominatesAny(ctx context.Context, d Dominator, other PrivilegeSet) (bool, error) {
	for _, c := range other {
		ok, err := s.DominatesClass(ctx, d, c)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Viewer is the identity and privileges a view is computed for.
type Viewer struct {
	ActorID    string
	Privileges PrivilegeSet
}
