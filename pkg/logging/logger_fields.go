package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Solver field helpers

// Component names the package or subsystem emitting the entry
func Component(name string) Field {
	return String("component", name)
}

// Rank identifies the SPMD rank
func Rank(r int) Field {
	return Int("rank", r)
}

// Vessel identifies a macro-edge
func Vessel(id int) Field {
	return Int("vessel_id", id)
}

// Vertex identifies a junction or boundary vertex
func Vertex(id int) Field {
	return Int("vertex_id", id)
}

// SimTime is the simulation time of the entry
func SimTime(t float64) Field {
	return Float64("t", t)
}

// Iterations counts solver iterations
func Iterations(n int) Field {
	return Int("iterations", n)
}

// Residual is a nonlinear solver residual
func Residual(r float64) Field {
	return Float64("residual", r)
}
