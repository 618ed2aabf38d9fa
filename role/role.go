// Package role splits the universe into solver and tracker groups.
//
// Each rank arrives with a statically assigned role from its launch
// parameters. Partitioning all-gathers the role names across the universe
// and splits the world group along them, so every rank ends up with a
// role-local communicator and a consistent picture of how many ranks each
// role has — without either role importing the other's internals.
package role

import (
	"github.com/gthomsen/coupled-models-demo/comm"
	"github.com/gthomsen/coupled-models-demo/types"
)

// Groups is the result of partitioning as seen by one rank.
type Groups struct {
	Role types.Role
	App  *comm.Comm // this rank's role-local group

	// Coupled reports whether both roles are present in the universe.
	Coupled bool

	SolverRanks  int
	TrackerRanks int

	// World ranks of each role's representative (the lowest-ranked member,
	// local rank 0 of its group), or -1 when the role is absent. These are
	// the broadcast roots during configuration synchronization.
	SolverRoot  int
	TrackerRoot int
}

// Partition forms the role groups. Collective over the world group: every
// rank must call it exactly once with its own role.
func Partition(world *comm.Comm, r types.Role) (Groups, error) {
	names, err := world.AllgatherString(r.String())
	if err != nil {
		return Groups{}, err
	}

	app, err := world.Split(r.String())
	if err != nil {
		return Groups{}, err
	}

	g := Groups{Role: r, App: app, SolverRoot: -1, TrackerRoot: -1}
	for i, n := range names {
		switch n {
		case types.Solver.String():
			if g.SolverRanks == 0 {
				g.SolverRoot = i
			}
			g.SolverRanks++
		case types.Tracker.String():
			if g.TrackerRanks == 0 {
				g.TrackerRoot = i
			}
			g.TrackerRanks++
		}
	}
	// same check as comparing the split group against the world: unequal
	// sizes mean the other role is out there.
	g.Coupled = app.Size() != world.Size()
	return g, nil
}

// SolverPresent reports whether any solver rank exists in the universe.
// A tracker that finds no solver exits early with ExitNoSolver; that is an
// expected outcome, not an error.
func (g Groups) SolverPresent() bool {
	return g.SolverRanks > 0
}
