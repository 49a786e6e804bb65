package policyopa

import (
	"context"

	"lineage/internal/domain"
	"lineage/internal/usecase"
)

// SurrogateName is the registry name of the Rego-backed surrogate function.
const SurrogateName = "policy"

// SurrogateFunc redacts the node and lets v decide each incident edge. The
// substitute's votes see the stored node as input.origin.
func SurrogateFunc(v *Voter) usecase.SurrogateFunc {
	return usecase.SurrogateFuncOf(SurrogateName, func(ctx context.Context, node *domain.Node, viewer domain.Viewer) (*domain.Node, error) {
		redactor := usecase.Redactor{
			FuncName: SurrogateName,
			Policy:   domain.VoterPolicy{Label: "REGO", Voter: originVoter{voter: v, origin: node.Clone()}},
		}
		return redactor.Surrogate(ctx, node, viewer)
	})
}

type originVoter struct {
	voter  *Voter
	origin *domain.Node
}

func (o originVoter) Vote(ctx context.Context, e domain.Edge, self, other *domain.Node) (domain.EdgeMarking, error) {
	return o.voter.VoteFor(ctx, e, self, other, o.origin)
}
