package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lineage/internal/domain"
)

// FingerprintKey is the metadata field carrying a data node's content hash.
const FingerprintKey = "sha256"

type ReportResult struct {
	Nodes        int               `json:"nodes"`
	Edges        int               `json:"edges"`
	NPEs         int               `json:"npes"`
	Actors       int               `json:"actors"`
	Deduplicated int               `json:"deduplicated"`
	Dropped      int               `json:"dropped"`
	Remapped     map[string]string `json:"remapped,omitempty"`
}

// Reporter writes collections to the store. Data nodes whose content is
// already stored are replaced by the stored node, and edges are moved onto
// it. References that resolve neither in the batch nor in the store are
// dropped.
type Reporter struct {
	Store  GraphStore
	Cache  FingerprintCache
	Logger *zap.Logger
}

func (r *Reporter) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Reporter) Report(ctx context.Context, c *domain.Collection) (ReportResult, error) {
	var res ReportResult
	if c == nil {
		return res, fmt.Errorf("%w: empty collection", domain.ErrInvalidNode)
	}
	log := r.logger()
	batch := domain.NewCollection()
	remap := map[string]string{}
	fresh := map[string]string{}

	for _, a := range c.Actors() {
		batch.AddActor(a)
	}

	for _, n := range c.NodesByCreated() {
		fp := fingerprintOf(n)
		if fp != "" {
			if id, ok := fresh[fp]; ok {
				remap[n.ID] = id
				res.Deduplicated++
				continue
			}
			existing, err := r.lookupFingerprint(ctx, fp)
			if err != nil {
				return ReportResult{}, err
			}
			if existing != "" && existing != n.ID {
				remap[n.ID] = existing
				res.Deduplicated++
				continue
			}
		}
		n = n.Clone()
		if n.OwnerID != "" && !batch.ContainsActor(n.OwnerID) {
			ok, err := r.actorExists(ctx, n.OwnerID)
			if err != nil {
				return ReportResult{}, err
			}
			if !ok {
				log.Warn("dropping owner reference", zap.String("node", n.ID), zap.String("owner", n.OwnerID), zap.Error(domain.ErrDanglingReference))
				n.OwnerID = ""
				res.Dropped++
			}
		}
		if _, err := batch.AddNode(n); err != nil {
			return ReportResult{}, fmt.Errorf("node %s: %w", n.ID, err)
		}
		if fp != "" {
			fresh[fp] = n.ID
		}
	}

	resolve := func(id string) string {
		if to, ok := remap[id]; ok {
			return to
		}
		return id
	}
	known := map[string]bool{}
	exists := func(id string) (bool, error) {
		if batch.ContainsNode(id) {
			return true, nil
		}
		if v, ok := known[id]; ok {
			return v, nil
		}
		_, err := r.Store.GetNode(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			known[id] = false
		case err != nil:
			return false, err
		default:
			known[id] = true
		}
		return known[id], nil
	}

	for _, e := range c.Edges() {
		e.From, e.To = resolve(e.From), resolve(e.To)
		if e.From == e.To {
			continue
		}
		fromOK, err := exists(e.From)
		if err != nil {
			return ReportResult{}, err
		}
		toOK, err := exists(e.To)
		if err != nil {
			return ReportResult{}, err
		}
		if !fromOK || !toOK {
			log.Warn("dropping edge", zap.String("edge", e.ID()), zap.Error(domain.ErrDanglingReference))
			res.Dropped++
			continue
		}
		if _, err := batch.AddEdge(e); err != nil {
			return ReportResult{}, fmt.Errorf("edge %s: %w", e.ID(), err)
		}
	}

	for _, e := range c.NPEs() {
		e.From, e.To = resolve(e.From), resolve(e.To)
		anchored := false
		for _, id := range []string{e.From, e.To} {
			if !domain.IsOID(id) {
				continue
			}
			ok, err := exists(id)
			if err != nil {
				return ReportResult{}, err
			}
			anchored = anchored || ok
		}
		if !anchored {
			log.Warn("dropping non-provenance edge", zap.String("npe", e.ID), zap.Error(domain.ErrDanglingReference))
			res.Dropped++
			continue
		}
		if _, err := batch.AddNPE(e); err != nil {
			return ReportResult{}, fmt.Errorf("npe %s: %w", e.ID, err)
		}
	}

	if err := r.Store.WriteCollection(ctx, batch); err != nil {
		return ReportResult{}, err
	}
	if r.Cache != nil {
		for fp, id := range fresh {
			r.Cache.Add(fp, id)
		}
	}

	res.Nodes = batch.NodeCount()
	res.Edges = batch.EdgeCount()
	res.NPEs = batch.NPECount()
	res.Actors = batch.ActorCount()
	if len(remap) > 0 {
		res.Remapped = remap
	}
	log.Info("collection reported",
		zap.Int("nodes", res.Nodes),
		zap.Int("edges", res.Edges),
		zap.Int("deduplicated", res.Deduplicated),
		zap.Int("dropped", res.Dropped))
	return res, nil
}

func fingerprintOf(n *domain.Node) string {
	if n.Kind() != domain.KindData {
		return ""
	}
	return n.Metadata[FingerprintKey]
}

func (r *Reporter) lookupFingerprint(ctx context.Context, fp string) (string, error) {
	if r.Cache != nil {
		if id, ok := r.Cache.Get(fp); ok {
			return id, nil
		}
	}
	found, err := r.Store.FindByMetadata(ctx, FingerprintKey, fp, 1)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", nil
	}
	if r.Cache != nil {
		r.Cache.Add(fp, found[0].ID)
	}
	return found[0].ID, nil
}

func (r *Reporter) actorExists(ctx context.Context, id string) (bool, error) {
	_, err := r.Store.GetActor(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
