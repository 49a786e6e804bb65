package usecase

import (
	"context"
	"errors"
	"fmt"

	"lineage/internal/domain"
)

// Lattice answers dominance questions against a PrivilegeStore.
type Lattice struct {
	Store PrivilegeStore
}

func NewLattice(store PrivilegeStore) *Lattice {
	return &Lattice{Store: store}
}

// Seed loads def into the store.
func (l *Lattice) Seed(ctx context.Context, def domain.LatticeDefinition) error {
	if l == nil || l.Store == nil {
		return errors.New("lattice requires a privilege store")
	}
	for _, class := range def.Classes {
		if err := l.Store.PutClass(ctx, class); err != nil {
			return fmt.Errorf("put class %s: %w", class.ID, err)
		}
	}
	for _, d := range def.Dominance {
		if err := l.Store.AddDominance(ctx, d); err != nil {
			return fmt.Errorf("add dominance %s>%s: %w", d.Dominator, d.Dominated, err)
		}
	}
	return nil
}

// Dominates is true if a and b are the same class, or b is transitively
// reachable from a. A reachable class whose identity differs from b is a
// lattice integrity failure.
func (l *Lattice) Dominates(ctx context.Context, a, b domain.PrivilegeClass) (bool, error) {
	if a.ID == b.ID {
		return true, nil
	}
	if l == nil || l.Store == nil {
		return false, errors.New("lattice requires a privilege store")
	}
	reached, err := l.Store.ReachableClass(ctx, a.ID, b.ID)
	if err != nil {
		return false, err
	}
	if reached == nil {
		return false, nil
	}
	if reached.ID != b.ID {
		return false, fmt.Errorf("%w: query %s>%s reached %s", domain.ErrLatticeInconsistency, a.ID, b.ID, reached.ID)
	}
	return true, nil
}

// DominatesByID is the client-facing form of Dominates.
func (l *Lattice) DominatesByID(ctx context.Context, a, b string) (bool, error) {
	return l.Dominates(ctx, domain.PrivilegeClass{ID: a}, domain.PrivilegeClass{ID: b})
}

// Admits reports whether viewer may see node as stored.
func Admits(ctx context.Context, d domain.Dominator, viewer domain.Viewer, node *domain.Node) (bool, error) {
	return viewer.Privileges.Dominates(ctx, d, node.Privileges)
}

// Session memoises dominance answers for the lifetime of one request.
type Session struct {
	lattice *Lattice
	memo    map[[2]string]bool
}

func (l *Lattice) Session() *Session {
	return &Session{lattice: l, memo: make(map[[2]string]bool)}
}

func (s *Session) Dominates(ctx context.Context, a, b domain.PrivilegeClass) (bool, error) {
	key := [2]string{a.ID, b.ID}
	if v, ok := s.memo[key]; ok {
		return v, nil
	}
	v, err := s.lattice.Dominates(ctx, a, b)
	if err != nil {
		return false, err
	}
	s.memo[key] = v
	return v, nil
}

var (
	_ domain.Dominator = (*Lattice)(nil)
	_ domain.Dominator = (*Session)(nil)
)
