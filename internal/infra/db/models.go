package db

import "time"

type NodeModel struct {
	ID             string `gorm:"primaryKey"`
	Kind           string `gorm:"index;not null"`
	Subtype        string
	Name           string    `gorm:"index;not null"`
	OwnerID        *string   `gorm:"index"`
	Uncertainty    float64   `gorm:"not null"`
	Privileges     []byte    `gorm:"type:jsonb;not null"`
	SurrogateFuncs []byte    `gorm:"type:jsonb;not null"`
	Metadata       []byte    `gorm:"type:jsonb;not null"`
	Payload        []byte    `gorm:"type:jsonb;not null"`
	CreatedAt      time.Time `gorm:"index;not null"`
}

func (NodeModel) TableName() string {
	return "nodes"
}

type EdgeModel struct {
	ID        string    `gorm:"primaryKey"`
	FromID    string    `gorm:"index;not null"`
	ToID      string    `gorm:"index;not null"`
	Type      string    `gorm:"index;not null"`
	Workflow  string    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (EdgeModel) TableName() string {
	return "edges"
}

type NonProvenanceEdgeModel struct {
	ID        string    `gorm:"primaryKey"`
	FromID    string    `gorm:"index;not null"`
	ToID      string    `gorm:"index;not null"`
	Type      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (NonProvenanceEdgeModel) TableName() string {
	return "non_provenance_edges"
}

type ActorModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Type      string
	CreatedAt time.Time `gorm:"not null"`
}

func (ActorModel) TableName() string {
	return "actors"
}

type PrivilegeClassModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
}

func (PrivilegeClassModel) TableName() string {
	return "privilege_classes"
}

type DominanceModel struct {
	DominatorID string `gorm:"primaryKey"`
	DominatedID string `gorm:"primaryKey"`
}

func (DominanceModel) TableName() string {
	return "privilege_dominance"
}
