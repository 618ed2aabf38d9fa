package coupling

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gthomsen/coupled-models-demo/comm"
	"github.com/gthomsen/coupled-models-demo/config"
	"github.com/gthomsen/coupled-models-demo/types"
)

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "partitioned", StatePartitioned.String())
	assert.Equal(t, "configured", StateConfigured.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestRunnerSolverOnlyWorld(t *testing.T) {
	comms, err := comm.NewWorld(2)
	require.NoError(t, err)

	params := config.Params{Iterations: 3, GridPoints: 8}

	runners := make([]*Runner, 2)
	statuses := make([]int, 2)
	var wg sync.WaitGroup
	for rank, c := range comms {
		wg.Add(1)
		go func(rank int, c *comm.Comm) {
			defer wg.Done()
			r := NewRunner(c, types.Solver, params, nil)
			runners[rank] = r
			statuses[rank], _ = r.Run()
		}(rank, c)
	}
	wg.Wait()

	for rank, r := range runners {
		assert.Equal(t, types.ExitOK, statuses[rank])
		assert.Equal(t, StateDone, r.State())
		assert.Equal(t, 3, r.Steps())
		assert.Equal(t, 8, r.LastField().Len())
		assert.Empty(t, r.Particles())
	}
}

func TestRunnerTrackerAloneExitsCleanly(t *testing.T) {
	comms, err := comm.NewWorld(3)
	require.NoError(t, err)

	params := config.Params{Iterations: 2, GridPoints: 12, Particles: 6}

	var wg sync.WaitGroup
	for _, c := range comms {
		wg.Add(1)
		go func(c *comm.Comm) {
			defer wg.Done()
			r := NewRunner(c, types.Tracker, params, nil)
			status, rerr := r.Run()

			// expected outcome, not a failure: no error, zero timesteps.
			assert.NoError(t, rerr)
			assert.Equal(t, types.ExitNoSolver, status)
			assert.Equal(t, 0, r.Steps())
		}(c)
	}
	wg.Wait()
}

func TestRunnerAbortsOnMismatchBeforeRunning(t *testing.T) {
	comms, err := comm.NewWorld(4)
	require.NoError(t, err)

	// solver declares 12 grid points, trackers were launched expecting 16.
	paramsOf := func(r types.Role) config.Params {
		if r == types.Solver {
			return config.Params{Iterations: 2, GridPoints: 12}
		}
		return config.Params{Iterations: 2, GridPoints: 16, Particles: 4}
	}

	runners := make([]*Runner, 4)
	statuses := make([]int, 4)
	var wg sync.WaitGroup
	for rank, c := range comms {
		wg.Add(1)
		go func(rank int, c *comm.Comm) {
			defer wg.Done()
			role := types.Solver
			if rank >= 2 {
				role = types.Tracker
			}
			r := NewRunner(c, role, paramsOf(role), nil)
			runners[rank] = r
			statuses[rank], _ = r.Run()
		}(rank, c)
	}
	wg.Wait()

	for rank, r := range runners {
		assert.Equal(t, types.ExitConfigMismatch, statuses[rank], "rank %d", rank)
		assert.Equal(t, StateAborted, r.State(), "rank %d", rank)
		// an aborted rank never enters Running.
		assert.Equal(t, 0, r.Steps(), "rank %d", rank)
	}
}
