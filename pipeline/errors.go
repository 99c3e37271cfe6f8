package pipeline

import "errors"

var (
	// ErrInvalidGraph is returned when beakers and edges do not form a
	// usable DAG (unknown endpoints, duplicate names, cycles).
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrSeedNotFound is returned when running a seed that was never registered.
	ErrSeedNotFound = errors.New("seed not found")

	// ErrSeedAlreadyRun is returned when re-running a seed without reset.
	ErrSeedAlreadyRun = errors.New("seed already run")

	// ErrNoEdgeResult is returned when a transform produces no result for an
	// item and the edge does not allow filtering.
	ErrNoEdgeResult = errors.New("no edge result")
)
