// Package coupling drives one rank through a coupled run: partition into
// role groups, synchronize configuration, then advance and exchange the
// field for a fixed number of timesteps.
package coupling

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gthomsen/coupled-models-demo/comm"
	"github.com/gthomsen/coupled-models-demo/config"
	"github.com/gthomsen/coupled-models-demo/grid"
	"github.com/gthomsen/coupled-models-demo/model"
	"github.com/gthomsen/coupled-models-demo/role"
	"github.com/gthomsen/coupled-models-demo/transfer"
	"github.com/gthomsen/coupled-models-demo/types"
)

// State is where a rank stands in the run's lifecycle. Transitions are
// strictly forward. Aborted is terminal: validation failures land there
// before Running, so an aborted rank never executes a timestep, and a
// transport failure mid-run lands there as the whole job fails together.
type State int

const (
	StateInit State = iota
	StatePartitioned
	StateConfigured
	StateRunning
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePartitioned:
		return "partitioned"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Runner executes the coupling loop for a single rank.
type Runner struct {
	world  *comm.Comm
	role   types.Role
	params config.Params
	log    *zap.Logger

	advanceGrid      model.AdvanceGrid
	advanceParticles model.AdvanceParticles

	state     State
	steps     int
	lastField grid.Field
	particles []float64
}

// NewRunner builds a runner for one rank. Nil advance functions default to
// the toy stand-ins; a nil logger defaults to a no-op one.
func NewRunner(world *comm.Comm, r types.Role, p config.Params, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		world:  world,
		role:   r,
		params: p,
		log:    log,
		state:  StateInit,
	}
}

// SetAdvanceGrid substitutes the solver's advance operation.
func (r *Runner) SetAdvanceGrid(f model.AdvanceGrid) { r.advanceGrid = f }

// SetAdvanceParticles substitutes the tracker's advance operation.
func (r *Runner) SetAdvanceParticles(f model.AdvanceParticles) { r.advanceParticles = f }

// State returns the rank's current lifecycle state.
func (r *Runner) State() State { return r.state }

// Steps returns how many timesteps the rank has completed.
func (r *Runner) Steps() int { return r.steps }

// LastField returns the whole-grid field assembled by the most recent
// timestep's transfer. Zero before the first timestep.
func (r *Runner) LastField() grid.Field { return r.lastField }

// Particles returns the rank's particle set. Empty on solver ranks.
func (r *Runner) Particles() []float64 { return r.particles }

// Run drives the rank from Init to Done and returns its exit status. The
// error carries detail when the status is non-zero; a tracker exiting
// because no solver is present returns ExitNoSolver with a nil error, since
// that is an expected outcome.
func (r *Runner) Run() (int, error) {
	groups, err := role.Partition(r.world, r.role)
	if err != nil {
		return r.fail(err)
	}
	r.state = StatePartitioned

	// the toy stand-ins want the role-local rank, which exists only now.
	if r.advanceGrid == nil {
		r.advanceGrid = model.ToySolver(groups.App.Rank())
	}
	if r.advanceParticles == nil {
		r.advanceParticles = model.ToyTracker()
	}

	if r.role == types.Tracker && !groups.SolverPresent() {
		// we are alone in the universe: a clean early exit, not a failure.
		if groups.App.Rank() == 0 {
			r.log.Info("no solver detected, tracker exiting",
				zap.Int("tracker_ranks", groups.TrackerRanks))
		}
		r.state = StateDone
		return types.ExitNoSolver, nil
	}

	cfg, err := config.Synchronize(r.world, groups, r.params, r.log)
	if err != nil {
		if errors.Is(err, config.ErrMismatch) {
			// every rank reached the same verdict through the same
			// collectives; poison the world so nothing can outlive it.
			r.world.Abort(types.ExitConfigMismatch)
			r.state = StateAborted
			return types.ExitConfigMismatch, err
		}
		return r.fail(err)
	}
	r.state = StateConfigured

	if r.role == types.Solver && groups.App.Rank() == 0 {
		r.log.Info("starting the solver",
			zap.Int("solver_ranks", cfg.SolverRanks),
			zap.Int("tracker_ranks", cfg.TrackerRanks),
			zap.Int("grid_points", cfg.GridPoints),
			zap.Int("iterations", cfg.Iterations))
	}

	exchange := transfer.NewExchange(r.world, groups.App, groups.Coupled)

	var partition grid.Field
	if r.role == types.Solver {
		part, perr := grid.NewPartitioning(cfg.GridPoints, cfg.SolverRanks)
		if perr != nil {
			// synchronization guarantees divisibility; reaching this means
			// the run state diverged underneath us.
			return r.fail(perr)
		}
		partition = grid.NewField(part.PerRank())
	} else {
		r.particles = make([]float64, cfg.NumParticles/cfg.TrackerRanks)
	}

	r.state = StateRunning
	for step := 0; step < cfg.Iterations; step++ {
		switch r.role {
		case types.Solver:
			partition = r.advanceGrid(partition, cfg.SolverStepCost)

			start := time.Now()
			full, terr := exchange.Step(partition)
			if terr != nil {
				return r.fail(terr)
			}
			r.lastField = full
			if groups.App.Rank() == 0 {
				r.log.Debug("transferred solution",
					zap.Int("step", step),
					zap.Duration("elapsed", time.Since(start)))
			}

		case types.Tracker:
			full, terr := exchange.Step(grid.Field{})
			if terr != nil {
				return r.fail(terr)
			}
			r.lastField = full
			r.particles = r.advanceParticles(r.particles, full, cfg.TrackerStepCost)
		}
		r.steps++
	}

	r.state = StateDone
	if groups.App.Rank() == 0 {
		r.log.Info("run complete",
			zap.String("role", r.role.String()),
			zap.Int("steps", r.steps))
	}
	return types.ExitOK, nil
}

// fail converts an unexpected error into a coordinated transport abort so
// no peer is left blocked inside a collective this rank will never join.
func (r *Runner) fail(err error) (int, error) {
	var abort *comm.AbortError
	if errors.As(err, &abort) {
		// the world is already poisoned; adopt the originating status.
		r.state = StateAborted
		return abort.Status, err
	}
	r.world.Abort(types.ExitTransport)
	r.state = StateAborted
	return types.ExitTransport, err
}
