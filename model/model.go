// Package model declares the external collaborator interfaces the coupling
// protocol drives: the numerical core that advances the grid field and the
// integrator that advances particles through it. Both are opaque to the
// protocol; the stand-ins here consume their step cost as simulated compute
// and produce deterministic results so transfers can be verified. A real
// solver or tracker substitutes its own functions without touching the
// coupling packages.
package model

import (
	"time"

	"github.com/gthomsen/coupled-models-demo/grid"
)

// AdvanceGrid computes one timestep of the field on a solver rank's
// partition and returns the updated partition.
type AdvanceGrid func(partition grid.Field, cost time.Duration) grid.Field

// AdvanceParticles integrates a tracker rank's particles one timestep
// through the assembled whole-grid field and returns the updated set.
type AdvanceParticles func(particles []float64, field grid.Field, cost time.Duration) []float64

// ToySolver returns a stand-in grid advance: it sleeps for the step cost and
// stamps every point of the partition with the owning rank's value, the
// simplest result that makes assembly order observable downstream.
func ToySolver(rank int) AdvanceGrid {
	return func(partition grid.Field, cost time.Duration) grid.Field {
		time.Sleep(cost)
		partition.Fill(float64(rank))
		return partition
	}
}

// ToyTracker returns a stand-in particle advance: it sleeps for the step
// cost and advects every particle by the mean of the field's X component.
func ToyTracker() AdvanceParticles {
	return func(particles []float64, field grid.Field, cost time.Duration) []float64 {
		time.Sleep(cost)
		if field.Len() == 0 {
			return particles
		}
		mean := 0.0
		for _, v := range field.X {
			mean += v
		}
		mean /= float64(field.Len())

		next := make([]float64, len(particles))
		for i, p := range particles {
			next[i] = p + mean
		}
		return next
	}
}
