package config

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gthomsen/coupled-models-demo/comm"
	"github.com/gthomsen/coupled-models-demo/role"
	"github.com/gthomsen/coupled-models-demo/types"
)

// ErrMismatch is returned by Synchronize on every rank when any rank's
// configuration failed validation or disagreed with another role's. The
// detection travels through the same collectives as a successful handshake,
// so all ranks return it together rather than timing out independently.
var ErrMismatch = errors.New("configuration mismatch")

// solverShared are the fields the solver declares for the whole run.
type solverShared struct {
	GridPoints  int
	Iterations  int
	SolverRanks int
	StepCost    time.Duration
}

// trackerShared are the fields the tracker declares once the solver's view
// has been acknowledged universe-wide.
type trackerShared struct {
	Particles int
	StepCost  time.Duration
}

// Synchronize runs the two-phase configuration handshake and returns the
// synchronized RunConfig, identical on every rank.
//
// Phase 1: the solver representative validates its parameters and
// broadcasts its error count, then the shared fields, to the whole
// universe. Every rank cross-checks the received values against its own
// launch expectations, and an all-reduce of the local error counts decides
// the run's fate at a single synchronization point.
//
// Phase 2 runs only when trackers are present alongside the solver, and
// never before phase 1 has completed universe-wide: the tracker
// representative validates against the solver-declared fields and the same
// broadcast-then-all-reduce handshake repeats, rooted at the tracker side.
//
// Precondition: a solver group exists. Trackers that found themselves alone
// must exit before calling this. Collective over the world group.
func Synchronize(world *comm.Comm, g role.Groups, p Params, log *zap.Logger) (RunConfig, error) {
	// phase 1: solver declares the run.
	errCount := 0
	if world.GlobalRank() == g.SolverRoot {
		if err := ValidateSolver(p, g.SolverRanks); err != nil {
			log.Error("solver configuration invalid", zap.Error(err))
			errCount = 1
		}
	}

	count, err := world.BcastInt(g.SolverRoot, errCount)
	if err != nil {
		return RunConfig{}, err
	}
	if count > 0 {
		return RunConfig{}, ErrMismatch
	}

	var shared solverShared
	if world.GlobalRank() == g.SolverRoot {
		shared = solverShared{
			GridPoints:  p.GridPoints,
			Iterations:  p.Iterations,
			SolverRanks: g.SolverRanks,
			StepCost:    time.Duration(p.StepCost),
		}
	}
	v, err := world.Bcast(g.SolverRoot, shared)
	if err != nil {
		return RunConfig{}, err
	}
	sv := v.(solverShared)

	local := 0
	if p.GridPoints != sv.GridPoints {
		log.Error("grid size disagrees with the solver's declaration",
			zap.Int("rank", world.GlobalRank()),
			zap.String("role", g.Role.String()),
			zap.Int("expected", p.GridPoints),
			zap.Int("declared", sv.GridPoints))
		local = 1
	}
	if p.Iterations != sv.Iterations {
		log.Error("iteration count disagrees with the solver's declaration",
			zap.Int("rank", world.GlobalRank()),
			zap.String("role", g.Role.String()),
			zap.Int("expected", p.Iterations),
			zap.Int("declared", sv.Iterations))
		local = 1
	}
	if g.Role == types.Solver && sv.GridPoints%g.SolverRanks != 0 {
		// the root validated this already, but every solver rank re-checks
		// its own partition expectation on the received values.
		local = 1
	}

	total, err := world.AllreduceSum(local)
	if err != nil {
		return RunConfig{}, err
	}
	if total > 0 {
		return RunConfig{}, ErrMismatch
	}

	cfg := RunConfig{
		GridPoints:     sv.GridPoints,
		Iterations:     sv.Iterations,
		SolverRanks:    sv.SolverRanks,
		TrackerRanks:   g.TrackerRanks,
		SolverStepCost: sv.StepCost,
	}

	if !g.Coupled || g.TrackerRanks == 0 {
		return cfg, nil
	}

	// phase 2: tracker declares its side against the solver's view.
	errCount = 0
	if world.GlobalRank() == g.TrackerRoot {
		if err := ValidateTracker(p, g.TrackerRanks, sv.GridPoints, sv.Iterations); err != nil {
			log.Error("tracker configuration invalid", zap.Error(err))
			errCount = 1
		}
	}

	count, err = world.BcastInt(g.TrackerRoot, errCount)
	if err != nil {
		return RunConfig{}, err
	}
	if count > 0 {
		return RunConfig{}, ErrMismatch
	}

	var tracker trackerShared
	if world.GlobalRank() == g.TrackerRoot {
		tracker = trackerShared{
			Particles: p.Particles,
			StepCost:  time.Duration(p.StepCost),
		}
	}
	v, err = world.Bcast(g.TrackerRoot, tracker)
	if err != nil {
		return RunConfig{}, err
	}
	ts := v.(trackerShared)

	local = 0
	if g.Role == types.Tracker {
		if ts.Particles != p.Particles {
			log.Error("particle count disagrees with the tracker root's declaration",
				zap.Int("rank", world.GlobalRank()),
				zap.Int("expected", p.Particles),
				zap.Int("declared", ts.Particles))
			local = 1
		}
		if ts.Particles%g.TrackerRanks != 0 {
			local = 1
		}
	}

	total, err = world.AllreduceSum(local)
	if err != nil {
		return RunConfig{}, err
	}
	if total > 0 {
		return RunConfig{}, ErrMismatch
	}

	cfg.NumParticles = ts.Particles
	cfg.TrackerStepCost = ts.StepCost
	return cfg, nil
}
