package grid

import "fmt"

// The global grid is divided into equal-sized contiguous partitions, one per
// solver rank, in ascending solver-local-rank order. The partition count is
// fixed for the whole run; the grid size must divide evenly across it, which
// is validated before any computation starts.

// Partitioning describes how the global grid is split across solver ranks.
type Partitioning struct {
	Points int // total grid points
	Ranks  int // solver ranks sharing the grid
}

// NewPartitioning validates and returns the partitioning of points across
// ranks. Points must be positive and divide evenly by ranks.
func NewPartitioning(points, ranks int) (Partitioning, error) {
	if ranks <= 0 {
		return Partitioning{}, fmt.Errorf("need at least one solver rank, got %d", ranks)
	}
	if points <= 0 {
		return Partitioning{}, fmt.Errorf("grid points must be positive, got %d", points)
	}
	if points%ranks != 0 {
		return Partitioning{}, fmt.Errorf("grid points (%d) must be divisible by number of solver ranks (%d)", points, ranks)
	}
	return Partitioning{Points: points, Ranks: ranks}, nil
}

// PerRank returns the number of grid points each solver rank owns.
func (p Partitioning) PerRank() int {
	return p.Points / p.Ranks
}

// Offset returns the global index of the first point owned by local rank r.
func (p Partitioning) Offset(r int) int {
	return r * p.PerRank()
}

// Field holds one velocity value per grid point for each spatial component.
// A solver rank's Field covers its partition; the assembled Field covers the
// whole grid. All three components always have the same length.
type Field struct {
	X []float64
	Y []float64
	Z []float64
}

// NewField allocates a zeroed field of n points.
func NewField(n int) Field {
	return Field{
		X: make([]float64, n),
		Y: make([]float64, n),
		Z: make([]float64, n),
	}
}

// Len returns the number of grid points the field covers.
func (f Field) Len() int {
	return len(f.X)
}

// Fill sets every value of every component to v.
func (f Field) Fill(v float64) {
	for i := range f.X {
		f.X[i] = v
		f.Y[i] = v
		f.Z[i] = v
	}
}
