package domain

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidNode              = errors.New("invalid node")
	ErrMetadataTooLarge         = errors.New("metadata entry too large")
	ErrInvalidEdge              = errors.New("invalid edge")
	ErrInvalidNonProvenanceEdge = errors.New("invalid non-provenance edge")
	ErrDanglingReference        = errors.New("dangling reference")

	ErrLatticeInconsistency = errors.New("privilege lattice inconsistency")

	ErrSurrogateUnavailable = errors.New("surrogate unavailable")
	ErrNoCandidates         = errors.New("no surrogate candidates")

	ErrMalformedInterchangeDocument = errors.New("malformed interchange document")
)
