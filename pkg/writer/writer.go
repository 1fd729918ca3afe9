// Package writer persists solver output: CSV time series of the vessel tips
// and compressed checkpoints of the solution vector for restart.
package writer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var (
	// ErrCorruptCheckpoint is returned for unreadable checkpoint files
	ErrCorruptCheckpoint = errors.New("writer: corrupt checkpoint")

	// ErrLayoutMismatch is returned when a checkpoint was written for a
	// different discretization layout
	ErrLayoutMismatch = errors.New("writer: checkpoint layout mismatch")
)

// NewRunID returns a fresh identifier tying the output files of one run
// together.
func NewRunID() string {
	return uuid.NewString()
}

// EnsureDir creates the output directory tree.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writer: creating %s: %w", dir, err)
	}
	return nil
}

// rankFile names a per-rank output file inside the run directory.
func rankFile(dir, runID, stem string, rank int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_rank%d.%s", stem, runID, rank, ext))
}
