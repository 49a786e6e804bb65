package policyopa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"lineage/internal/domain"
	"lineage/internal/infra/hashing"
)

// DefaultQuery is the rule a policy module must define. It evaluates to
// one of "show", "hide", "infer" or "abstain".
const DefaultQuery = "data.lineage.edges.marking"

// Voter asks a Rego module how an edge incident to a surrogate should be
// marked.
type Voter struct {
	query      rego.PreparedEvalQuery
	policyHash string
}

// NewVoterFromPath loads every module under path.
func NewVoterFromPath(ctx context.Context, path string) (*Voter, error) {
	hash, err := PolicyHashFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("hash edge policy: %w", err)
	}
	v, err := prepare(ctx, rego.Load([]string{path}, nil))
	if err != nil {
		return nil, err
	}
	v.policyHash = hash
	return v, nil
}

// NewVoterFromModule compiles a single in-memory module.
func NewVoterFromModule(ctx context.Context, filename, source string) (*Voter, error) {
	v, err := prepare(ctx, rego.Module(filename, source))
	if err != nil {
		return nil, err
	}
	v.policyHash, err = hashFiles([]policyFile{{Path: filename, SHA256: hashing.SHA256Hex([]byte(source))}})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func prepare(ctx context.Context, source func(*rego.Rego)) (*Voter, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(DefaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		source,
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare edge policy: %w", err)
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}
	return &Voter{query: prepared}, nil
}

func (v *Voter) PolicyHash() string {
	return v.policyHash
}

// Vote evaluates the policy with self standing in for the stored node.
func (v *Voter) Vote(ctx context.Context, e domain.Edge, self, other *domain.Node) (domain.EdgeMarking, error) {
	return v.VoteFor(ctx, e, self, other, self)
}

// VoteFor evaluates the policy for the substitute self of the stored node
// origin. origin is exposed to the policy as input.origin and never leaves
// the server.
func (v *Voter) VoteFor(ctx context.Context, e domain.Edge, self, other, origin *domain.Node) (domain.EdgeMarking, error) {
	if v == nil {
		return domain.MarkAbstain, errors.New("edge voter is nil")
	}
	results, err := v.query.Eval(ctx, rego.EvalInput(voteInput(e, self, other, origin)))
	if err != nil {
		return domain.MarkAbstain, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.MarkAbstain, nil
	}
	value, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return domain.MarkAbstain, fmt.Errorf("edge policy returned %T, want string", results[0].Expressions[0].Value)
	}
	return domain.ParseEdgeMarking(value)
}

func voteInput(e domain.Edge, self, other, origin *domain.Node) map[string]any {
	direction := "outgoing"
	if self != nil && e.To == self.ID {
		direction = "incoming"
	}
	return map[string]any{
		"edge": map[string]any{
			"id":        e.ID(),
			"from":      e.From,
			"to":        e.To,
			"type":      string(e.Type),
			"workflow":  e.Workflow,
			"direction": direction,
		},
		"self":   nodeInput(self),
		"other":  nodeInput(other),
		"origin": nodeInput(origin),
	}
}

func nodeInput(n *domain.Node) map[string]any {
	if n == nil {
		return nil
	}
	metadata := map[string]any{}
	for k, v := range n.Metadata {
		metadata[k] = v
	}
	privileges := make([]any, 0, len(n.Privileges))
	for _, id := range n.Privileges.IDs() {
		privileges = append(privileges, id)
	}
	return map[string]any{
		"id":         n.ID,
		"name":       n.Name,
		"kind":       string(n.Kind()),
		"owner":      n.OwnerID,
		"privileges": privileges,
		"metadata":   metadata,
		"surrogate":  n.IsSurrogate(),
	}
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}
