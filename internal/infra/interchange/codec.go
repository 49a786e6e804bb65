package interchange

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"lineage/internal/domain"
)

// Codec converts between collections and interchange documents. Per-item
// problems are logged and the item is skipped; only a document without
// nodes or links is rejected.
type Codec struct {
	Logger *zap.Logger
}

func NewCodec(logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{Logger: logger}
}

func (c *Codec) log() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Probe checks the required top-level structure without decoding.
func Probe(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: not valid json", domain.ErrMalformedInterchangeDocument)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("%w: top level must be an object", domain.ErrMalformedInterchangeDocument)
	}
	for _, field := range []string{"nodes", "links"} {
		v := root.Get(field)
		if !v.Exists() || !v.IsArray() {
			return fmt.Errorf("%w: %q array is required", domain.ErrMalformedInterchangeDocument, field)
		}
	}
	return nil
}

func (c *Codec) DecodeReader(r io.Reader) (*domain.Collection, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read interchange document: %w", err)
	}
	return c.Decode(data)
}

// Decode returns the collection held by data and the seeds it names.
func (c *Codec) Decode(data []byte) (*domain.Collection, []string, error) {
	if err := Probe(data); err != nil {
		return nil, nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedInterchangeDocument, err)
	}
	col, err := c.FromDocument(doc)
	if err != nil {
		return nil, nil, err
	}
	return col, doc.Seeds, nil
}

func (c *Codec) FromDocument(doc Document) (*domain.Collection, error) {
	log := c.log()
	out := domain.NewCollection()

	for _, a := range doc.Actors {
		if a.ID == "" {
			log.Warn("skipping actor without id", zap.String("name", a.Name))
			continue
		}
		out.AddActor(domain.Actor{ID: a.ID, Name: a.Name, Created: a.Created, Type: a.Type})
	}

	// ids[i] is the OID of doc.Nodes[i], or "" when the node was skipped.
	ids := make([]string, len(doc.Nodes))
	for i, nd := range doc.Nodes {
		n, err := nodeFromDoc(nd)
		if err == nil {
			_, err = out.AddNode(n)
		}
		if err != nil {
			log.Warn("skipping node", zap.Int("index", i), zap.String("id", nd.ID), zap.Error(err))
			continue
		}
		ids[i] = n.ID
		for k, v := range nd.Tags {
			out.Tag(n.ID, k, v)
		}
	}

	for i, l := range doc.Links {
		from := endpoint(l.From, l.Source, ids)
		to := endpoint(l.To, l.Target, ids)
		if !out.ContainsNode(from) || !out.ContainsNode(to) {
			log.Warn("dropping link", zap.Int("index", i), zap.String("from", from), zap.String("to", to),
				zap.Error(domain.ErrDanglingReference))
			continue
		}
		typ := l.Type
		if typ == "" {
			typ = l.Label
		}
		et, ok := domain.ParseEdgeType(typ)
		if !ok {
			log.Warn("skipping link", zap.Int("index", i), zap.String("type", typ), zap.Error(domain.ErrInvalidEdge))
			continue
		}
		e := domain.NewEdge(from, to, et)
		if l.Workflow != "" {
			e.Workflow = l.Workflow
		}
		e.Inferred = l.Inferred
		if _, err := out.AddEdge(e); err != nil {
			log.Warn("skipping link", zap.Int("index", i), zap.Error(err))
		}
	}

	for i, nd := range doc.NPEs {
		npe := domain.NonProvenanceEdge{ID: nd.ID, From: nd.From, To: nd.To, Type: nd.Type, Created: nd.Created}
		if _, err := out.AddNPE(npe); err != nil {
			log.Warn("skipping non-provenance edge", zap.Int("index", i), zap.Error(err))
		}
	}
	return out, nil
}

func endpoint(id string, index int, ids []string) string {
	if id != "" {
		return id
	}
	if index >= 0 && index < len(ids) {
		return ids[index]
	}
	return ""
}

func nodeFromDoc(nd NodeDoc) (*domain.Node, error) {
	kind, ok := domain.ParseNodeKind(nd.Type)
	if nd.Type == "" {
		kind, ok = domain.KindGeneric, true
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown node type %q", domain.ErrInvalidNode, nd.Type)
	}
	var record domain.PayloadRecord
	if nd.Payload != nil {
		record = *nd.Payload
	}
	payload, err := domain.PayloadFrom(kind, domain.DataSubtype(nd.Subtype), record)
	if err != nil {
		return nil, err
	}
	id := nd.ID
	if id == "" {
		id = domain.NewOID()
	}
	var metadata domain.Metadata
	if len(nd.Metadata) > 0 {
		metadata = domain.Metadata(nd.Metadata).Clone()
	}
	return &domain.Node{
		ID:             id,
		Name:           nd.Label,
		Created:        nd.Created,
		OwnerID:        nd.Owner,
		Metadata:       metadata,
		Uncertainty:    nd.Uncertainty,
		Privileges:     domain.NewPrivilegeSet(nd.Privileges...),
		SurrogateFuncs: append([]string(nil), nd.SGFs...),
		Payload:        payload,
	}, nil
}

// ToDocument renders c. Edges whose endpoints are not in c cannot be
// addressed by index and are left out.
func (c *Codec) ToDocument(col *domain.Collection) Document {
	return c.toDocument(col, nil)
}

// ViewDocument renders a materialized view, including how each node is
// shown and the view's seeds.
func (c *Codec) ViewDocument(dag *domain.LineageDAG) Document {
	doc := c.toDocument(dag.Collection, dag.Access)
	doc.Seeds = append([]string(nil), dag.Seeds...)
	return doc
}

func (c *Codec) Encode(col *domain.Collection) ([]byte, error) {
	return json.MarshalIndent(c.ToDocument(col), "", "  ")
}

func (c *Codec) EncodeView(dag *domain.LineageDAG) ([]byte, error) {
	return json.MarshalIndent(c.ViewDocument(dag), "", "  ")
}

func (c *Codec) toDocument(col *domain.Collection, access map[string]domain.AccessKind) Document {
	log := c.log()
	doc := Document{Nodes: []NodeDoc{}, Links: []LinkDoc{}}
	index := make(map[string]int, col.NodeCount())
	for i, n := range col.NodesByCreated() {
		index[n.ID] = i
		nd := nodeToDoc(n)
		if tags := col.Tags(n.ID); len(tags) > 0 {
			nd.Tags = tags
		}
		if kind, ok := access[n.ID]; ok {
			nd.Access = kind.String()
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, e := range col.Edges() {
		source, okFrom := index[e.From]
		target, okTo := index[e.To]
		if !okFrom || !okTo {
			log.Warn("leaving out edge", zap.String("edge", e.ID()), zap.Error(domain.ErrDanglingReference))
			continue
		}
		doc.Links = append(doc.Links, LinkDoc{
			Source:   source,
			Target:   target,
			From:     e.From,
			To:       e.To,
			Label:    string(e.Type),
			Type:     string(e.Type),
			Workflow: e.Workflow,
			Inferred: e.Inferred,
		})
	}
	for _, a := range col.Actors() {
		doc.Actors = append(doc.Actors, ActorDoc{ID: a.ID, Name: a.Name, Created: a.Created, Type: a.Type})
	}
	for _, e := range col.NPEs() {
		doc.NPEs = append(doc.NPEs, NPEDoc{ID: e.ID, From: e.From, To: e.To, Type: e.Type, Created: e.Created})
	}
	return doc
}

func nodeToDoc(n *domain.Node) NodeDoc {
	record, subtype := domain.RecordOf(n.Payload)
	nd := NodeDoc{
		ID:          n.ID,
		Label:       n.Name,
		Type:        string(n.Kind()),
		Subtype:     string(subtype),
		Created:     n.Created,
		Owner:       n.OwnerID,
		Uncertainty: n.Uncertainty,
		Privileges:  n.Privileges.IDs(),
		SGFs:        append([]string(nil), n.SurrogateFuncs...),
	}
	if len(n.Metadata) > 0 {
		nd.Metadata = n.Metadata.Clone()
	}
	if record != (domain.PayloadRecord{}) {
		nd.Payload = &record
	}
	if n.Surrogate != nil {
		nd.Surrogate = &SurrogateDoc{
			Policy:          n.Surrogate.EdgePolicy().Name(),
			Quality:         n.Surrogate.Quality.Clone(),
			MoreInformation: n.Surrogate.MoreInformation,
		}
	}
	return nd
}
