package usecase

import (
	"context"

	"lineage/internal/domain"
)

// PrivilegePreference prefers the substitute backed by a strictly
// dominating privilege set; otherwise the one exposing more quality
// metadata.
type PrivilegePreference struct {
	Dominator domain.Dominator
}

func (p PrivilegePreference) Prefer(ctx context.Context, a, b *domain.Node) (bool, error) {
	aOverB, err := a.Privileges.Dominates(ctx, p.Dominator, b.Privileges)
	if err != nil {
		return false, err
	}
	bOverA, err := b.Privileges.Dominates(ctx, p.Dominator, a.Privileges)
	if err != nil {
		return false, err
	}
	switch {
	case aOverB && !bOverA:
		return true, nil
	case bOverA && !aOverB:
		return false, nil
	}
	return qualityOf(a) > qualityOf(b), nil
}

func qualityOf(n *domain.Node) int {
	if n == nil || n.Surrogate == nil {
		return 0
	}
	return len(n.Surrogate.Quality)
}

// Mediator picks one node among several candidates.
type Mediator struct {
	Preference ObjectPreference
}

// MostPreferable keeps the current best and replaces it only when a later
// candidate is strictly preferred.
func (m Mediator) MostPreferable(ctx context.Context, candidates []*domain.Node) (*domain.Node, error) {
	if len(candidates) == 0 {
		return nil, domain.ErrNoCandidates
	}
	best := candidates[0]
	if len(candidates) == 1 || m.Preference == nil {
		return best, nil
	}
	for _, c := range candidates[1:] {
		better, err := m.Preference.Prefer(ctx, c, best)
		if err != nil {
			return nil, err
		}
		if better {
			best = c
		}
	}
	return best, nil
}
