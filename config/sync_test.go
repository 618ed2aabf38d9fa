package config

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gthomsen/coupled-models-demo/comm"
	"github.com/gthomsen/coupled-models-demo/role"
	"github.com/gthomsen/coupled-models-demo/types"
)

// synchronizeAll partitions a live world and runs Synchronize on every rank,
// returning each rank's config and error.
func synchronizeAll(t *testing.T, solvers, trackers int, paramsOf func(types.Role) Params) ([]RunConfig, []error) {
	t.Helper()
	size := solvers + trackers
	comms, err := comm.NewWorld(size)
	require.NoError(t, err)

	cfgs := make([]RunConfig, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank, c := range comms {
		wg.Add(1)
		go func(rank int, c *comm.Comm) {
			defer wg.Done()
			r := types.Solver
			if rank >= solvers {
				r = types.Tracker
			}
			g, perr := role.Partition(c, r)
			require.NoError(t, perr)
			cfgs[rank], errs[rank] = Synchronize(c, g, paramsOf(r), zap.NewNop())
		}(rank, c)
	}
	wg.Wait()
	return cfgs, errs
}

func TestSynchronizeAgreement(t *testing.T) {
	solverParams := Params{StepCost: Duration(time.Millisecond), Iterations: 2, GridPoints: 12}
	trackerParams := Params{StepCost: Duration(2 * time.Millisecond), Iterations: 2, GridPoints: 12, Particles: 10}

	cfgs, errs := synchronizeAll(t, 3, 5, func(r types.Role) Params {
		if r == types.Solver {
			return solverParams
		}
		return trackerParams
	})

	want := RunConfig{
		GridPoints:      12,
		NumParticles:    10,
		SolverRanks:     3,
		TrackerRanks:    5,
		Iterations:      2,
		SolverStepCost:  time.Millisecond,
		TrackerStepCost: 2 * time.Millisecond,
	}
	for rank := range cfgs {
		require.NoError(t, errs[rank], "rank %d", rank)
		// the synchronized config must be bit-identical on every rank of
		// both roles.
		assert.Empty(t, cmp.Diff(want, cfgs[rank]), "rank %d", rank)
	}
}

func TestSynchronizeSolverOnly(t *testing.T) {
	cfgs, errs := synchronizeAll(t, 3, 0, func(types.Role) Params {
		return Params{Iterations: 2, GridPoints: 12}
	})

	for rank := range cfgs {
		require.NoError(t, errs[rank], "rank %d", rank)
		assert.Equal(t, 12, cfgs[rank].GridPoints)
		assert.Equal(t, 3, cfgs[rank].SolverRanks)
		assert.Equal(t, 0, cfgs[rank].TrackerRanks)
		assert.Equal(t, 0, cfgs[rank].NumParticles)
	}
}

func TestSynchronizeRejectsInvalidSolverConfig(t *testing.T) {
	// 10 grid points over 3 solver ranks does not divide evenly; the
	// solver root detects it and every rank of both roles observes the
	// same verdict.
	_, errs := synchronizeAll(t, 3, 2, func(r types.Role) Params {
		return Params{Iterations: 2, GridPoints: 10, Particles: 10}
	})

	for rank, err := range errs {
		assert.ErrorIs(t, err, ErrMismatch, "rank %d", rank)
	}
}

func TestSynchronizeRejectsGridDisagreementBetweenRoles(t *testing.T) {
	_, errs := synchronizeAll(t, 3, 2, func(r types.Role) Params {
		if r == types.Solver {
			return Params{Iterations: 2, GridPoints: 12}
		}
		return Params{Iterations: 2, GridPoints: 16, Particles: 10}
	})

	for rank, err := range errs {
		assert.ErrorIs(t, err, ErrMismatch, "rank %d", rank)
	}
}

func TestSynchronizeRejectsIterationDisagreement(t *testing.T) {
	_, errs := synchronizeAll(t, 2, 2, func(r types.Role) Params {
		if r == types.Solver {
			return Params{Iterations: 2, GridPoints: 12}
		}
		return Params{Iterations: 5, GridPoints: 12, Particles: 4}
	})

	for rank, err := range errs {
		assert.ErrorIs(t, err, ErrMismatch, "rank %d", rank)
	}
}

func TestSynchronizeRejectsIndivisibleParticles(t *testing.T) {
	// 10 particles over 2 tracker ranks divides evenly, over 4 it does
	// not; phase 2 must catch the latter.
	_, errs := synchronizeAll(t, 2, 4, func(r types.Role) Params {
		if r == types.Solver {
			return Params{Iterations: 2, GridPoints: 12}
		}
		return Params{Iterations: 2, GridPoints: 12, Particles: 10}
	})

	for rank, err := range errs {
		assert.ErrorIs(t, err, ErrMismatch, "rank %d", rank)
	}
}
