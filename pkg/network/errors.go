package network

import "errors"

var (
	// ErrFinalized is returned when mutating a graph after FinalizeBCs
	ErrFinalized = errors.New("network: graph topology is finalized")

	// ErrUnknownVertex is returned for an out-of-range vertex id
	ErrUnknownVertex = errors.New("network: unknown vertex id")

	// ErrUnknownEdge is returned for an out-of-range edge id
	ErrUnknownEdge = errors.New("network: unknown edge id")

	// ErrSelfLoop is returned when connecting a vertex to itself
	ErrSelfLoop = errors.New("network: vessel cannot connect a vertex to itself")

	// ErrNoMicroEdges is returned when a vessel is created without micro-segments
	ErrNoMicroEdges = errors.New("network: vessel needs at least one micro-segment")

	// ErrUnclassifiedVertex is returned by FinalizeBCs for a leaf without a boundary condition
	ErrUnclassifiedVertex = errors.New("network: leaf vertex has no boundary condition")

	// ErrIsolatedVertex is returned by FinalizeBCs for a vertex without incident vessels
	ErrIsolatedVertex = errors.New("network: vertex has no incident vessels")

	// ErrBoundaryOnInteriorVertex is returned by FinalizeBCs when a boundary
	// condition was assigned to a vertex with more than one incident vessel
	ErrBoundaryOnInteriorVertex = errors.New("network: boundary condition on interior vertex")

	// ErrBoundaryAlreadySet is returned when assigning a second boundary condition
	ErrBoundaryAlreadySet = errors.New("network: vertex already has a boundary condition")

	// ErrMissingPhysicalData is returned by FinalizeBCs for a vessel without parameters
	ErrMissingPhysicalData = errors.New("network: vessel has no physical data")
)
