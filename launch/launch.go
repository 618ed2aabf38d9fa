// Package launch boots a coupled run: it creates the universe, starts one
// goroutine per rank, and aggregates their exit statuses into the process
// exit status.
package launch

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gthomsen/coupled-models-demo/comm"
	"github.com/gthomsen/coupled-models-demo/config"
	"github.com/gthomsen/coupled-models-demo/coupling"
	"github.com/gthomsen/coupled-models-demo/grid"
	"github.com/gthomsen/coupled-models-demo/model"
	"github.com/gthomsen/coupled-models-demo/types"
)

// Options describe a whole run: how many ranks each role gets and each
// role's launch parameters. Rank placement follows launch-group order:
// solver ranks first, then tracker ranks.
type Options struct {
	SolverRanks  int
	TrackerRanks int
	Solver       config.Params
	Tracker      config.Params

	// Optional substitutes for the toy advance operations.
	AdvanceGrid      model.AdvanceGrid
	AdvanceParticles model.AdvanceParticles

	Log *zap.Logger
}

// RankResult is one rank's outcome.
type RankResult struct {
	WorldRank int
	Role      types.Role
	Status    int
	State     coupling.State
	Steps     int
	Field     grid.Field // last assembled whole-grid field
	Particles []float64
	Err       error
}

// Result is the outcome of a whole run.
type Result struct {
	RunID  string
	Status int // worst per-rank status; the process exit status
	Ranks  []RankResult
}

// Run executes a coupled run to completion and returns every rank's
// outcome. It blocks until all ranks have finished.
func Run(o Options) (Result, error) {
	size := o.SolverRanks + o.TrackerRanks
	if size <= 0 {
		return Result{}, fmt.Errorf("need at least one rank, got %d solver + %d tracker", o.SolverRanks, o.TrackerRanks)
	}

	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	comms, err := comm.NewWorld(size)
	if err != nil {
		return Result{}, err
	}

	results := make([]RankResult, size)
	var g errgroup.Group
	for rank := 0; rank < size; rank++ {
		rank := rank
		g.Go(func() error {
			r := types.Solver
			params := o.Solver
			if rank >= o.SolverRanks {
				r = types.Tracker
				params = o.Tracker
			}

			runner := coupling.NewRunner(comms[rank], r, params,
				log.With(zap.Int("rank", rank), zap.String("role", r.String())))
			if o.AdvanceGrid != nil {
				runner.SetAdvanceGrid(o.AdvanceGrid)
			}
			if o.AdvanceParticles != nil {
				runner.SetAdvanceParticles(o.AdvanceParticles)
			}

			status, rerr := runner.Run()
			results[rank] = RankResult{
				WorldRank: rank,
				Role:      r,
				Status:    status,
				State:     runner.State(),
				Steps:     runner.Steps(),
				Field:     runner.LastField(),
				Particles: runner.Particles(),
				Err:       rerr,
			}
			return nil
		})
	}
	// rank outcomes travel through results; the group is only a join point.
	_ = g.Wait()

	res := Result{RunID: runID, Ranks: results}
	for _, r := range results {
		if r.Status > res.Status {
			res.Status = r.Status
		}
	}
	return res, nil
}
