package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lineage/internal/domain"
	"lineage/internal/usecase"
)

type GraphRepository struct {
	db *gorm.DB
}

func NewGraphRepository(db *gorm.DB) *GraphRepository {
	return &GraphRepository{db: db}
}

func (r *GraphRepository) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model NodeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "node", id)
	}
	return nodeFromModel(model)
}

func (r *GraphRepository) GetActor(ctx context.Context, id string) (*domain.Actor, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ActorModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "actor", id)
	}
	a := actorFromModel(model)
	return &a, nil
}

func (r *GraphRepository) IncidentEdges(ctx context.Context, id string, dir domain.Direction, types ...domain.EdgeType) ([]domain.Edge, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Model(&EdgeModel{})
	switch dir {
	case domain.DirectionAncestors:
		query = query.Where("to_id = ?", id)
	case domain.DirectionDescendants:
		query = query.Where("from_id = ?", id)
	default:
		query = query.Where("from_id = ? OR to_id = ?", id, id)
	}
	if len(types) > 0 {
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		query = query.Where("type IN ?", names)
	}
	var models []EdgeModel
	if err := query.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Edge, 0, len(models))
	for _, m := range models {
		out = append(out, edgeFromModel(m))
	}
	return out, nil
}

func (r *GraphRepository) IncidentNPEs(ctx context.Context, id string, types ...string) ([]domain.NonProvenanceEdge, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Where("from_id = ? OR to_id = ?", id, id)
	if len(types) > 0 {
		query = query.Where("type IN ?", types)
	}
	var models []NonProvenanceEdgeModel
	if err := query.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.NonProvenanceEdge, 0, len(models))
	for _, m := range models {
		out = append(out, npeFromModel(m))
	}
	return out, nil
}

func (r *GraphRepository) Neighborhood(ctx context.Context, seeds []string, settings domain.TraversalSettings) (*domain.Collection, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	return usecase.ExpandNeighborhood(ctx, r, seeds, settings)
}

func (r *GraphRepository) FindByMetadata(ctx context.Context, key, value string, max int) ([]*domain.Node, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	return r.findNodes(ctx, max, "metadata ->> ? = ?", key, value)
}

func (r *GraphRepository) Search(ctx context.Context, term string, max int) ([]*domain.Node, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	pattern := likePattern(term)
	return r.findNodes(ctx, max, "name ILIKE ? OR metadata::text ILIKE ?", pattern, pattern)
}

func (r *GraphRepository) ListWorkflows(ctx context.Context, max int) ([]*domain.Node, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	return r.findNodes(ctx, max, "kind = ?", string(domain.KindWorkflow))
}

func (r *GraphRepository) findNodes(ctx context.Context, max int, where string, args ...any) ([]*domain.Node, error) {
	query := r.db.WithContext(ctx).Where(where, args...).Order("created_at ASC, id ASC")
	if max > 0 {
		query = query.Limit(max)
	}
	var models []NodeModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Node, 0, len(models))
	for _, m := range models {
		n, err := nodeFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *GraphRepository) ListActors(ctx context.Context, max int) ([]domain.Actor, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	query := r.db.WithContext(ctx).Order("id ASC")
	if max > 0 {
		query = query.Limit(max)
	}
	var models []ActorModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Actor, 0, len(models))
	for _, m := range models {
		out = append(out, actorFromModel(m))
	}
	return out, nil
}

func (r *GraphRepository) WorkflowMembers(ctx context.Context, workflowID string, max int) (*domain.Collection, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	out := domain.NewCollection()
	wf, err := r.GetNode(ctx, workflowID)
	switch {
	case err == nil:
		if _, err := out.AddNode(wf); err != nil {
			return nil, err
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	query := r.db.WithContext(ctx).Where("workflow = ?", workflowID).Order("id ASC")
	if max > 0 {
		query = query.Limit(max)
	}
	var edges []EdgeModel
	if err := query.Find(&edges).Error; err != nil {
		return nil, err
	}
	if len(edges) == 0 && out.NodeCount() == 0 {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, domain.ErrNotFound)
	}
	ids := map[string]struct{}{}
	for _, e := range edges {
		ids[e.FromID] = struct{}{}
		ids[e.ToID] = struct{}{}
	}
	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	var models []NodeModel
	if len(keys) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", keys).Find(&models).Error; err != nil {
			return nil, err
		}
	}
	for _, m := range models {
		n, err := nodeFromModel(m)
		if err != nil {
			return nil, err
		}
		if _, err := out.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, m := range edges {
		if _, err := out.AddEdge(edgeFromModel(m)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteCollection inserts c in one transaction. Rows that already exist are
// left untouched, so repeated reports are idempotent.
func (r *GraphRepository) WriteCollection(ctx context.Context, c *domain.Collection) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := func(v any) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(v).Error
		}
		for _, a := range c.Actors() {
			created := a.Created
			if created.IsZero() {
				created = now
			}
			if err := insert(&ActorModel{ID: a.ID, Name: a.Name, Type: a.Type, CreatedAt: created.UTC()}); err != nil {
				return fmt.Errorf("insert actor %s: %w", a.ID, err)
			}
		}
		for _, n := range c.NodesByCreated() {
			model, err := nodeToModel(n)
			if err != nil {
				return err
			}
			if model.CreatedAt.IsZero() {
				model.CreatedAt = now
			}
			if err := insert(&model); err != nil {
				return fmt.Errorf("insert node %s: %w", n.ID, err)
			}
		}
		for _, e := range c.Edges() {
			if err := r.requireNodes(tx, c, e.From, e.To); err != nil {
				return fmt.Errorf("edge %s: %w", e.ID(), err)
			}
			model := EdgeModel{ID: e.ID(), FromID: e.From, ToID: e.To, Type: string(e.Type), Workflow: e.Workflow, CreatedAt: now}
			if err := insert(&model); err != nil {
				return fmt.Errorf("insert edge %s: %w", e.ID(), err)
			}
		}
		for _, e := range c.NPEs() {
			if r.requireNodes(tx, c, e.From) != nil && r.requireNodes(tx, c, e.To) != nil {
				return fmt.Errorf("npe %s: %w", e.ID, domain.ErrDanglingReference)
			}
			created := e.Created
			if created.IsZero() {
				created = now
			}
			model := NonProvenanceEdgeModel{ID: e.ID, FromID: e.From, ToID: e.To, Type: e.Type, CreatedAt: created.UTC()}
			if err := insert(&model); err != nil {
				return fmt.Errorf("insert npe %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (r *GraphRepository) requireNodes(tx *gorm.DB, c *domain.Collection, ids ...string) error {
	for _, id := range ids {
		if c.ContainsNode(id) {
			continue
		}
		var count int64
		if err := tx.Model(&NodeModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("node %s: %w", id, domain.ErrDanglingReference)
		}
	}
	return nil
}

var _ usecase.GraphStore = (*GraphRepository)(nil)
