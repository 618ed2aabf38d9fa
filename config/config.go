// Package config carries each role's launch parameters and reconciles them
// across the universe before any computation starts.
//
// Every rank is launched with role-local Params. Synchronize runs the
// two-phase handshake that validates them, propagates the solver's view of
// the run to everyone, cross-checks the tracker's expectations against it,
// and either hands back one identical RunConfig on every rank or aborts the
// whole run in a way every rank observes at the same collective.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so step costs can be written as "100ms" in
// YAML config files.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Params are one role's launch parameters, supplied at process start via
// flags or a config file. GridPoints and Iterations must agree across roles;
// Particles is meaningful for trackers only.
type Params struct {
	StepCost   Duration `yaml:"step_cost"`
	Iterations int      `yaml:"iterations"`
	GridPoints int      `yaml:"grid_points"`
	Particles  int      `yaml:"particles,omitempty"`
}

// File is the on-disk layout of a run configuration: a section per role.
// A missing section means the role is not launched from this file.
type File struct {
	SolverRanks  int     `yaml:"solver_ranks"`
	TrackerRanks int     `yaml:"tracker_ranks"`
	Solver       *Params `yaml:"solver,omitempty"`
	Tracker      *Params `yaml:"tracker,omitempty"`
}

// Load reads a run configuration file.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return f, nil
}

// RunConfig is the synchronized, universe-wide view of the run. After
// Synchronize completes without abort, every rank of both roles holds a
// bit-identical copy; it is immutable from then on.
type RunConfig struct {
	GridPoints      int
	NumParticles    int
	SolverRanks     int
	TrackerRanks    int
	Iterations      int
	SolverStepCost  time.Duration
	TrackerStepCost time.Duration
}

// ValidateSolver checks a solver's launch parameters against its group size.
func ValidateSolver(p Params, ranks int) error {
	if p.GridPoints <= 0 {
		return fmt.Errorf("no grid points specified (got %d)", p.GridPoints)
	}
	if p.GridPoints%ranks != 0 {
		return fmt.Errorf("number of grid points (%d) must be divisible by number of solver ranks (%d)", p.GridPoints, ranks)
	}
	if p.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive (got %d)", p.Iterations)
	}
	if p.StepCost < 0 {
		return fmt.Errorf("step cost must not be negative (got %s)", time.Duration(p.StepCost))
	}
	return nil
}

// ValidateTracker checks a tracker's launch parameters against its group
// size and the already-synchronized solver fields.
func ValidateTracker(p Params, ranks, gridPoints, iterations int) error {
	if p.Particles <= 0 {
		return fmt.Errorf("no particles specified (got %d)", p.Particles)
	}
	if p.Particles%ranks != 0 {
		return fmt.Errorf("number of particles (%d) must be divisible by number of tracker ranks (%d)", p.Particles, ranks)
	}
	if p.GridPoints != gridPoints {
		return fmt.Errorf("tracker expects %d grid points but the solver declared %d", p.GridPoints, gridPoints)
	}
	if p.Iterations != iterations {
		return fmt.Errorf("tracker expects %d iterations but the solver declared %d", p.Iterations, iterations)
	}
	if p.StepCost < 0 {
		return fmt.Errorf("step cost must not be negative (got %s)", time.Duration(p.StepCost))
	}
	return nil
}
