package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lineage/internal/domain"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type ServiceOptions struct {
	Registry    *SurrogateRegistry
	Placeholder domain.EdgePolicy
	Cache       FingerprintCache
	Observer    ViewObserver
	Logger      *zap.Logger
}

// LineageService is the client-facing surface over a graph store and a
// privilege lattice.
type LineageService struct {
	Store    GraphStore
	Lattice  *Lattice
	Views    *ViewBuilder
	Taints   *TaintService
	Reporter *Reporter
}

func NewLineageService(store GraphStore, privileges PrivilegeStore, opts ServiceOptions) *LineageService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = DefaultSurrogateRegistry()
	}
	placeholder := opts.Placeholder
	if placeholder == nil {
		placeholder = domain.InferAll
	}
	lattice := NewLattice(privileges)
	return &LineageService{
		Store:   store,
		Lattice: lattice,
		Views: &ViewBuilder{
			Store:       store,
			Lattice:     lattice,
			Registry:    registry,
			Placeholder: placeholder,
			Observer:    opts.Observer,
			Logger:      logger,
		},
		Taints: &TaintService{
			Store:       store,
			Lattice:     lattice,
			Registry:    registry,
			Placeholder: placeholder,
			Logger:      logger,
		},
		Reporter: &Reporter{Store: store, Cache: opts.Cache, Logger: logger},
	}
}

func (s *LineageService) Report(ctx context.Context, c *domain.Collection) (ReportResult, error) {
	return s.Reporter.Report(ctx, c)
}

func (s *LineageService) GetGraph(ctx context.Context, seeds []string, viewer domain.Viewer, settings domain.TraversalSettings) (*domain.LineageDAG, error) {
	return s.Views.Build(ctx, seeds, viewer, settings)
}

// Fling returns the nearest surviving descendants of id in the viewer's
// view of its neighborhood.
func (s *LineageService) Fling(ctx context.Context, id string, viewer domain.Viewer, settings domain.TraversalSettings) ([]string, error) {
	settings.IncludeEdges = true
	dag, err := s.Views.Build(ctx, []string{id}, viewer, settings)
	if err != nil {
		return nil, err
	}
	if !dag.ContainsNode(id) {
		return nil, domain.ErrNotFound
	}
	return dag.Fling(id), nil
}

// Search matches term against names and metadata, or against a single
// metadata field when key is set. Matches are shown through the viewer's
// access rules.
func (s *LineageService) Search(ctx context.Context, term, key string, max int, viewer domain.Viewer) (*domain.LineageDAG, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrInvalidInput)
	}
	max = clampLimit(max)
	var (
		nodes []*domain.Node
		err   error
	)
	if key != "" {
		nodes, err = s.Store.FindByMetadata(ctx, key, term, max)
	} else {
		nodes, err = s.Store.Search(ctx, term, max)
	}
	if err != nil {
		return nil, err
	}
	raw := domain.NewCollection()
	for _, n := range nodes {
		if _, err := raw.AddNode(n); err != nil {
			return nil, err
		}
	}
	return s.Views.Materialize(ctx, raw, nil, viewer, domain.TraversalSettings{})
}

func (s *LineageService) Actors(ctx context.Context, max int) ([]domain.Actor, error) {
	return s.Store.ListActors(ctx, clampLimit(max))
}

func (s *LineageService) Workflows(ctx context.Context, max int, viewer domain.Viewer) (*domain.LineageDAG, error) {
	nodes, err := s.Store.ListWorkflows(ctx, clampLimit(max))
	if err != nil {
		return nil, err
	}
	raw := domain.NewCollection()
	for _, n := range nodes {
		if _, err := raw.AddNode(n); err != nil {
			return nil, err
		}
	}
	return s.Views.Materialize(ctx, raw, nil, viewer, domain.TraversalSettings{})
}

func (s *LineageService) WorkflowMembers(ctx context.Context, workflowID string, max int, viewer domain.Viewer) (*domain.LineageDAG, error) {
	raw, err := s.Store.WorkflowMembers(ctx, workflowID, clampLimit(max))
	if err != nil {
		return nil, err
	}
	return s.Views.Materialize(ctx, raw, nil, viewer, domain.TraversalSettings{IncludeEdges: true})
}

// Dominates compares two stored privilege classes.
func (s *LineageService) Dominates(ctx context.Context, a, b string) (bool, error) {
	for _, id := range []string{a, b} {
		if _, err := s.Lattice.Store.GetClass(ctx, id); err != nil {
			return false, err
		}
	}
	return s.Lattice.DominatesByID(ctx, a, b)
}

func (s *LineageService) DirectTaints(ctx context.Context, id string, viewer domain.Viewer) ([]*domain.Node, error) {
	return s.Taints.DirectTaints(ctx, id, viewer)
}

func (s *LineageService) IndirectTaintSources(ctx context.Context, id string, viewer domain.Viewer) ([]*domain.Node, error) {
	return s.Taints.IndirectTaintSources(ctx, id, viewer)
}

func (s *LineageService) Mark(ctx context.Context, id, claimant, description string) (*domain.Node, error) {
	return s.Taints.Mark(ctx, id, claimant, description)
}

func clampLimit(max int) int {
	if max <= 0 {
		return DefaultListLimit
	}
	if max > MaxListLimit {
		return MaxListLimit
	}
	return max
}
