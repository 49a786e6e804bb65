package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"lineage/internal/domain"
)

// AccessResolver decides per node whether a viewer sees it as stored or
// through a substitute. One resolver serves one request.
type AccessResolver struct {
	Dominator   domain.Dominator
	Registry    *SurrogateRegistry
	Mediator    Mediator
	Placeholder domain.EdgePolicy
	Logger      *zap.Logger
}

func NewAccessResolver(d domain.Dominator, registry *SurrogateRegistry, placeholder domain.EdgePolicy, logger *zap.Logger) *AccessResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessResolver{
		Dominator:   d,
		Registry:    registry,
		Mediator:    Mediator{Preference: PrivilegePreference{Dominator: d}},
		Placeholder: placeholder,
		Logger:      logger,
	}
}

// Resolve never returns a node the viewer is not entitled to see. Failing
// surrogate functions are skipped; if none yields an admissible substitute
// a placeholder is returned.
func (r *AccessResolver) Resolve(ctx context.Context, node *domain.Node, viewer domain.Viewer) (domain.Access, error) {
	ok, err := Admits(ctx, r.Dominator, viewer, node)
	if err != nil {
		return domain.Access{}, err
	}
	if ok {
		return domain.Access{Kind: domain.FullAccess, Node: node}, nil
	}

	candidates, err := r.candidates(ctx, node, viewer)
	if err != nil {
		return domain.Access{}, err
	}
	if len(candidates) > 0 {
		best, err := r.Mediator.MostPreferable(ctx, candidates)
		if err != nil {
			return domain.Access{}, err
		}
		return domain.Access{Kind: domain.SurrogateAccess, Node: best}, nil
	}
	return domain.Access{
		Kind:        domain.SurrogateAccess,
		Node:        Placeholder(node, r.Placeholder),
		Placeholder: true,
	}, nil
}

func (r *AccessResolver) candidates(ctx context.Context, node *domain.Node, viewer domain.Viewer) ([]*domain.Node, error) {
	var out []*domain.Node
	for _, name := range node.SurrogateFuncs {
		fn, ok := r.Registry.Lookup(name)
		if !ok {
			r.Logger.Warn("unknown surrogate function", zap.String("node", node.ID), zap.String("func", name))
			continue
		}
		sub, err := fn.Surrogate(ctx, node, viewer)
		if err != nil {
			if errors.Is(err, domain.ErrSurrogateUnavailable) {
				r.Logger.Debug("surrogate unavailable", zap.String("node", node.ID), zap.String("func", name))
			} else {
				r.Logger.Warn("surrogate function failed", zap.String("node", node.ID), zap.String("func", name), zap.Error(err))
			}
			continue
		}
		if sub == nil || sub.ID != node.ID || sub.Surrogate == nil {
			r.Logger.Warn("surrogate function returned an invalid substitute", zap.String("node", node.ID), zap.String("func", name))
			continue
		}
		if err := sub.Validate(); err != nil {
			r.Logger.Warn("surrogate function returned an invalid substitute", zap.String("node", node.ID), zap.String("func", name), zap.Error(err))
			continue
		}
		visible, err := viewer.Privileges.Dominates(ctx, r.Dominator, sub.Privileges)
		if err != nil {
			return nil, err
		}
		if !visible {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}
