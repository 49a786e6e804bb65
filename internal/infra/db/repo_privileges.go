package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lineage/internal/domain"
	"lineage/internal/usecase"
)

type PrivilegeRepository struct {
	db *gorm.DB
}

func NewPrivilegeRepository(db *gorm.DB) *PrivilegeRepository {
	return &PrivilegeRepository{db: db}
}

func (r *PrivilegeRepository) GetClass(ctx context.Context, id string) (*domain.PrivilegeClass, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model PrivilegeClassModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "privilege class", id)
	}
	return &domain.PrivilegeClass{ID: model.ID, Name: model.Name, Description: model.Description}, nil
}

func (r *PrivilegeRepository) PutClass(ctx context.Context, class domain.PrivilegeClass) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if strings.TrimSpace(class.ID) == "" {
		return errors.New("privilege class id is required")
	}
	model := PrivilegeClassModel{ID: class.ID, Name: class.Name, Description: class.Description}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description"}),
		}).
		Create(&model).Error
}

func (r *PrivilegeRepository) AddDominance(ctx context.Context, d domain.Dominance) error {
	if r.db == nil {
		return errDBUnavailable
	}
	for _, id := range []string{d.Dominator, d.Dominated} {
		if _, err := r.GetClass(ctx, id); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&DominanceModel{DominatorID: d.Dominator, DominatedID: d.Dominated}).Error
}

const reachableClassSQL = `
WITH RECURSIVE reach(id) AS (
	SELECT dominated_id FROM privilege_dominance WHERE dominator_id = ?
	UNION
	SELECT d.dominated_id FROM privilege_dominance d JOIN reach r ON d.dominator_id = r.id
)
SELECT c.id, c.name, c.description
FROM privilege_classes c
JOIN reach ON reach.id = c.id
WHERE c.id = ?
LIMIT 1`

// ReachableClass follows the dominance relation from `from` with a
// recursive query and returns the row found for `to`.
func (r *PrivilegeRepository) ReachableClass(ctx context.Context, from, to string) (*domain.PrivilegeClass, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var rows []PrivilegeClassModel
	if err := r.db.WithContext(ctx).Raw(reachableClassSQL, from, to).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("reachable class %s>%s: %w", from, to, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &domain.PrivilegeClass{ID: rows[0].ID, Name: rows[0].Name, Description: rows[0].Description}, nil
}

var _ usecase.PrivilegeStore = (*PrivilegeRepository)(nil)
