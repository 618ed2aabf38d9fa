// Package transfer implements the per-timestep hand-off of the solved field
// from solver partitions to a universe-visible whole grid.
//
// The baseline is three blocking all-gathers per timestep, one per velocity
// component. In a coupled run they are scoped to the full universe: solver
// ranks contribute their partitions, tracker ranks contribute empty buffers,
// and every rank of both roles ends the step holding the complete field,
// assembled in ascending solver-rank order. In a solver-only run the gather
// stays within the solver group.
//
// Exchange is the stable seam for alternative transports: fused collectives,
// non-blocking overlap, or partial-grid distribution can replace the
// baseline without changing the coupling loop's contract.
package transfer

import (
	"github.com/gthomsen/coupled-models-demo/comm"
	"github.com/gthomsen/coupled-models-demo/grid"
)

// Exchange performs the collective transfer for one rank.
type Exchange struct {
	world   *comm.Comm
	app     *comm.Comm
	coupled bool
}

// NewExchange builds the transfer for a rank. world is the universe group,
// app the rank's role-local group, coupled whether both roles are present.
func NewExchange(world, app *comm.Comm, coupled bool) *Exchange {
	return &Exchange{world: world, app: app, coupled: coupled}
}

// Step runs one timestep's transfer and returns the assembled whole field.
// Solver ranks pass their freshly advanced partition; tracker ranks pass the
// zero Field and only receive. Blocks until every participating rank has
// entered the step; the returned field is read-only for this timestep and
// superseded by the next call.
func (e *Exchange) Step(local grid.Field) (grid.Field, error) {
	c := e.world
	if !e.coupled {
		// no trackers to feed: assemble within the solver group only.
		c = e.app
	}

	x, err := c.Allgather(local.X)
	if err != nil {
		return grid.Field{}, err
	}
	y, err := c.Allgather(local.Y)
	if err != nil {
		return grid.Field{}, err
	}
	z, err := c.Allgather(local.Z)
	if err != nil {
		return grid.Field{}, err
	}
	return grid.Field{X: x, Y: y, Z: z}, nil
}
