package flow

import "errors"

var (
	// ErrStaleTime is returned when fluxes are requested for a time the
	// evaluator was not initialized for
	ErrStaleTime = errors.New("flow: evaluator not initialized for the requested time")

	// ErrUnknownBoundary is returned for a leaf vertex without a recognized
	// boundary-condition variant
	ErrUnknownBoundary = errors.New("flow: undefined boundary type")

	// ErrSingularSystem is returned when the junction Newton solve hits a
	// singular Jacobian
	ErrSingularSystem = errors.New("flow: singular jacobian in junction solve")

	// ErrDimensionMismatch is returned for inconsistently sized inputs
	ErrDimensionMismatch = errors.New("flow: dimension mismatch")
)
