package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValidateSolver(t *testing.T) {
	valid := Params{StepCost: Duration(10 * time.Millisecond), Iterations: 2, GridPoints: 12}

	tests := []struct {
		name    string
		mutate  func(*Params)
		ranks   int
		wantErr bool
	}{
		{"valid", func(*Params) {}, 3, false},
		{"single rank", func(*Params) {}, 1, false},
		{"zero grid points", func(p *Params) { p.GridPoints = 0 }, 3, true},
		{"negative grid points", func(p *Params) { p.GridPoints = -12 }, 3, true},
		{"uneven grid split", func(p *Params) { p.GridPoints = 10 }, 3, true},
		{"zero iterations", func(p *Params) { p.Iterations = 0 }, 3, true},
		{"negative step cost", func(p *Params) { p.StepCost = Duration(-time.Second) }, 3, true},
		{"zero step cost is fine", func(p *Params) { p.StepCost = 0 }, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := ValidateSolver(p, tt.ranks)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTracker(t *testing.T) {
	valid := Params{StepCost: Duration(time.Millisecond), Iterations: 2, GridPoints: 12, Particles: 10}

	tests := []struct {
		name    string
		mutate  func(*Params)
		ranks   int
		wantErr bool
	}{
		{"valid", func(*Params) {}, 5, false},
		{"zero particles", func(p *Params) { p.Particles = 0 }, 5, true},
		{"uneven particle split", func(*Params) {}, 4, true},
		{"grid disagrees with solver", func(p *Params) { p.GridPoints = 16 }, 5, true},
		{"iterations disagree with solver", func(p *Params) { p.Iterations = 3 }, 5, true},
		{"negative step cost", func(p *Params) { p.StepCost = Duration(-time.Second) }, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := ValidateTracker(p, tt.ranks, 12, 2)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"150ms"`), &d))
	assert.Equal(t, 150*time.Millisecond, time.Duration(d))

	out, err := yaml.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, "150ms\n", string(out))
}

func TestDurationYAMLRejectsGarbage(t *testing.T) {
	var d Duration
	assert.Error(t, yaml.Unmarshal([]byte(`"soon"`), &d))
}

func TestLoadFile(t *testing.T) {
	raw := `
solver_ranks: 3
tracker_ranks: 2
solver:
  step_cost: "100ms"
  iterations: 2
  grid_points: 12
tracker:
  step_cost: "50ms"
  iterations: 2
  grid_points: 12
  particles: 10
`
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, f.SolverRanks)
	assert.Equal(t, 2, f.TrackerRanks)
	require.NotNil(t, f.Solver)
	require.NotNil(t, f.Tracker)
	assert.Equal(t, 100*time.Millisecond, time.Duration(f.Solver.StepCost))
	assert.Equal(t, 12, f.Solver.GridPoints)
	assert.Equal(t, 10, f.Tracker.Particles)
	assert.Equal(t, 50*time.Millisecond, time.Duration(f.Tracker.StepCost))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver: [not a mapping"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
