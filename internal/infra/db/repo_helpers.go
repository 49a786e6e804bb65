package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"lineage/internal/domain"
)

var errDBUnavailable = errors.New("db unavailable")

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return err
}

func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	return "%" + escaped + "%"
}

func nodeToModel(n *domain.Node) (NodeModel, error) {
	record, subtype := domain.RecordOf(n.Payload)
	payload, err := json.Marshal(record)
	if err != nil {
		return NodeModel{}, err
	}
	metadata := n.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return NodeModel{}, err
	}
	privileges, err := json.Marshal(n.Privileges.IDs())
	if err != nil {
		return NodeModel{}, err
	}
	funcs := n.SurrogateFuncs
	if funcs == nil {
		funcs = []string{}
	}
	sgfs, err := json.Marshal(funcs)
	if err != nil {
		return NodeModel{}, err
	}
	model := NodeModel{
		ID:             n.ID,
		Kind:           string(n.Kind()),
		Subtype:        string(subtype),
		Name:           n.Name,
		Uncertainty:    n.Uncertainty,
		Privileges:     privileges,
		SurrogateFuncs: sgfs,
		Metadata:       meta,
		Payload:        payload,
		CreatedAt:      n.Created.UTC(),
	}
	if n.OwnerID != "" {
		owner := n.OwnerID
		model.OwnerID = &owner
	}
	return model, nil
}

func nodeFromModel(m NodeModel) (*domain.Node, error) {
	var record domain.PayloadRecord
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &record); err != nil {
			return nil, fmt.Errorf("node %s payload: %w", m.ID, err)
		}
	}
	payload, err := domain.PayloadFrom(domain.NodeKind(m.Kind), domain.DataSubtype(m.Subtype), record)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", m.ID, err)
	}
	var meta domain.Metadata
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("node %s metadata: %w", m.ID, err)
		}
	}
	var privileges, funcs []string
	if len(m.Privileges) > 0 {
		if err := json.Unmarshal(m.Privileges, &privileges); err != nil {
			return nil, fmt.Errorf("node %s privileges: %w", m.ID, err)
		}
	}
	if len(m.SurrogateFuncs) > 0 {
		if err := json.Unmarshal(m.SurrogateFuncs, &funcs); err != nil {
			return nil, fmt.Errorf("node %s surrogate funcs: %w", m.ID, err)
		}
	}
	n := &domain.Node{
		ID:             m.ID,
		Name:           m.Name,
		Created:        m.CreatedAt.UTC(),
		Metadata:       meta,
		Uncertainty:    m.Uncertainty,
		Privileges:     domain.NewPrivilegeSet(privileges...),
		SurrogateFuncs: funcs,
		Payload:        payload,
	}
	if m.OwnerID != nil {
		n.OwnerID = *m.OwnerID
	}
	return n, nil
}

func edgeFromModel(m EdgeModel) domain.Edge {
	return domain.Edge{From: m.FromID, To: m.ToID, Type: domain.EdgeType(m.Type), Workflow: m.Workflow}
}

func npeFromModel(m NonProvenanceEdgeModel) domain.NonProvenanceEdge {
	return domain.NonProvenanceEdge{ID: m.ID, From: m.FromID, To: m.ToID, Type: m.Type, Created: m.CreatedAt.UTC()}
}

func actorFromModel(m ActorModel) domain.Actor {
	return domain.Actor{ID: m.ID, Name: m.Name, Type: m.Type, Created: m.CreatedAt.UTC()}
}
