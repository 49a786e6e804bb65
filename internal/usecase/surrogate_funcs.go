package usecase

import (
	"context"
	"sort"
	"sync"

	"lineage/internal/domain"
)

const (
	SurrogateRedact = "redact"
	SurrogateHide   = "hide"
	SurrogateLabel  = "label"

	restrictedLabel = "(restricted)"
)

// SurrogateRegistry resolves the stable names stored on nodes to live
// functions. It is built once at startup and read concurrently afterwards.
type SurrogateRegistry struct {
	mu    sync.RWMutex
	funcs map[string]SurrogateFunc
}

func NewSurrogateRegistry(funcs ...SurrogateFunc) *SurrogateRegistry {
	r := &SurrogateRegistry{funcs: make(map[string]SurrogateFunc, len(funcs))}
	for _, f := range funcs {
		r.Register(f)
	}
	return r
}

// DefaultSurrogateRegistry holds the built-in redact, hide and label
// functions.
func DefaultSurrogateRegistry() *SurrogateRegistry {
	return NewSurrogateRegistry(
		Redactor{FuncName: SurrogateRedact, Policy: domain.InferAll},
		Redactor{FuncName: SurrogateHide, Policy: domain.HideAll},
		Redactor{FuncName: SurrogateLabel, KeepName: true, Policy: domain.ShowAll},
	)
}

func (r *SurrogateRegistry) Register(f SurrogateFunc) {
	if f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[f.Name()] = f
}

func (r *SurrogateRegistry) Lookup(name string) (SurrogateFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[name]
	return f, ok
}

func (r *SurrogateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Redactor is a configurable surrogate function. The substitute keeps the
// node's identity and kind, drops its owner and payload, and keeps only the
// listed metadata keys.
type Redactor struct {
	FuncName string
	// KeepName exposes the original name instead of Label.
	KeepName     bool
	Label        string
	KeepMetadata []string
	Policy       domain.EdgePolicy
	// Privileges are required to see the substitute itself.
	Privileges      domain.PrivilegeSet
	MoreInformation string
}

func (r Redactor) Name() string { return r.FuncName }

func (r Redactor) Surrogate(_ context.Context, node *domain.Node, _ domain.Viewer) (*domain.Node, error) {
	quality := domain.Metadata{}
	name := r.Label
	if name == "" {
		name = restrictedLabel
	}
	if r.KeepName {
		name = node.Name
		quality["name"] = "exact"
	}
	var meta domain.Metadata
	for _, key := range r.KeepMetadata {
		value, ok := node.Metadata[key]
		if !ok {
			continue
		}
		if meta == nil {
			meta = domain.Metadata{}
		}
		meta[key] = value
		quality["metadata:"+key] = "exact"
	}
	policy := r.Policy
	if policy == nil {
		policy = domain.InferAll
	}
	return &domain.Node{
		ID:          node.ID,
		Name:        name,
		Created:     node.Created,
		Metadata:    meta,
		Uncertainty: node.Uncertainty,
		Privileges:  append(domain.PrivilegeSet(nil), r.Privileges...),
		Payload:     domain.BlankPayload(node.Payload),
		Surrogate: &domain.SurrogateDetail{
			Quality:         quality,
			MoreInformation: r.MoreInformation,
			Policy:          policy,
		},
	}, nil
}

// SurrogateFuncOf adapts a plain function into a named SurrogateFunc.
func SurrogateFuncOf(name string, fn func(ctx context.Context, node *domain.Node, viewer domain.Viewer) (*domain.Node, error)) SurrogateFunc {
	return namedFunc{name: name, fn: fn}
}

type namedFunc struct {
	name string
	fn   func(ctx context.Context, node *domain.Node, viewer domain.Viewer) (*domain.Node, error)
}

func (f namedFunc) Name() string { return f.name }

func (f namedFunc) Surrogate(ctx context.Context, node *domain.Node, viewer domain.Viewer) (*domain.Node, error) {
	return f.fn(ctx, node, viewer)
}

// Placeholder is the minimal substitute emitted when no surrogate function
// can run. It carries no name, metadata, owner, payload or quality.
func Placeholder(node *domain.Node, policy domain.EdgePolicy) *domain.Node {
	if policy == nil {
		policy = domain.InferAll
	}
	return &domain.Node{
		ID:      node.ID,
		Name:    restrictedLabel,
		Created: node.Created,
		Payload: domain.BlankPayload(node.Payload),
		Surrogate: &domain.SurrogateDetail{
			Policy: policy,
		},
	}
}
