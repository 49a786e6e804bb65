package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins keeps edge policies pure: no clock, network or randomness.
var allowedBuiltins = map[string]struct{}{
	"and":               {},
	"assign":            {},
	"concat":            {},
	"contains":          {},
	"count":             {},
	"endswith":          {},
	"eq":                {},
	"equal":             {},
	"gt":                {},
	"gte":               {},
	"internal.member_2": {},
	"internal.member_3": {},
	"lower":             {},
	"lt":                {},
	"lte":               {},
	"neq":               {},
	"object.get":        {},
	"or":                {},
	"regex.match":       {},
	"split":             {},
	"sprintf":           {},
	"startswith":        {},
	"trim":              {},
	"upper":             {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(allowedBuiltins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
