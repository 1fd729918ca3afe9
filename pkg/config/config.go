// Package config loads and validates the simulation configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig wraps struct-tag validation failures
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// validate is a singleton validator instance
	validate = validator.New()
)

// TransportConfig selects how the ranks talk to each other.
type TransportConfig struct {
	// Kind is "local" for a single-process run or "bus" for the nanomsg
	// bus transport across processes.
	Kind string `yaml:"kind" validate:"required,oneof=local bus"`
	// Rank of this process, 0-based.
	Rank int `yaml:"rank" validate:"gte=0"`
	// PeerAddrs lists one listen address per rank, in rank order. Required
	// for the bus transport.
	PeerAddrs []string `yaml:"peer_addrs" validate:"required_if=Kind bus,dive,min=1"`
}

// OutputConfig controls the solver output.
type OutputConfig struct {
	// Directory receiving the CSV and checkpoint files.
	Directory string `yaml:"directory"`
	// Interval is the number of timesteps between output snapshots.
	Interval int `yaml:"interval" validate:"gte=1"`
	// Checkpoints enables periodic solution checkpoints.
	Checkpoints bool `yaml:"checkpoints"`
}

// SimulationConfig is the full configuration of one solver run.
type SimulationConfig struct {
	// MeshFile is the JSON network description.
	MeshFile string `yaml:"mesh_file" validate:"required"`
	// BoundaryFile optionally overrides boundary data from a second JSON file.
	BoundaryFile string `yaml:"boundary_file"`

	// Degree of the polynomial basis per micro-segment, 0 through 3.
	Degree int `yaml:"degree" validate:"gte=0,lte=3"`
	// Tau is the timestep; zero selects the CFL-stable bound.
	Tau float64 `yaml:"tau" validate:"gte=0"`
	// TEnd is the simulated time span.
	TEnd float64 `yaml:"t_end" validate:"gt=0"`
	// Method is the Runge-Kutta scheme.
	Method string `yaml:"method" validate:"oneof=ssp-rk2 ssp-rk3"`
	// HeartAmplitude is the peak of the default inflow waveform, used when
	// the mesh marks an inflow vertex without its own waveform data.
	HeartAmplitude float64 `yaml:"heart_amplitude" validate:"gte=0"`

	Transport TransportConfig `yaml:"transport"`
	Output    OutputConfig    `yaml:"output"`
}

// DefaultConfig returns a runnable single-rank configuration; the mesh file
// still has to be filled in.
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		Degree:         2,
		Tau:            0, // CFL bound
		TEnd:           1.0,
		Method:         "ssp-rk2",
		HeartAmplitude: 485.0,
		Transport: TransportConfig{
			Kind: "local",
			Rank: 0,
		},
		Output: OutputConfig{
			Directory: "output",
			Interval:  100,
		},
	}
}

// Load reads a yaml configuration file on top of the defaults and validates
// the result.
func Load(path string) (SimulationConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func (c *SimulationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Transport.Kind == "bus" {
		if c.Transport.Rank >= len(c.Transport.PeerAddrs) {
			return fmt.Errorf("%w: rank %d outside the %d configured peers",
				ErrInvalidConfig, c.Transport.Rank, len(c.Transport.PeerAddrs))
		}
	}
	if c.Tau > 0 && c.Tau > c.TEnd {
		return fmt.Errorf("%w: tau %v exceeds t_end %v", ErrInvalidConfig, c.Tau, c.TEnd)
	}
	return nil
}

// Size returns the number of ranks of the configured world.
func (c *SimulationConfig) Size() int {
	if c.Transport.Kind == "bus" {
		return len(c.Transport.PeerAddrs)
	}
	return 1
}
