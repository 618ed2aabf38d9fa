package types

// Role is the static classification of a rank, fixed at launch.
// Every rank belongs to exactly one role for its whole lifetime.
type Role int

const (
	Solver Role = iota
	Tracker
)

// String returns the role name, which doubles as the color string when
// partitioning the universe into role groups.
func (r Role) String() string {
	switch r {
	case Solver:
		return "solver"
	case Tracker:
		return "tracker"
	}
	return "unknown"
}

// Exit statuses form the external contract of a run. ExitNoSolver is an
// expected outcome for a tracker launched without a solver, not a failure.
const (
	ExitOK             = 0
	ExitConfigMismatch = 2
	ExitNoSolver       = 3
	ExitTransport      = 4
)

// StatusText maps an exit status to a short label for logs.
func StatusText(status int) string {
	switch status {
	case ExitOK:
		return "ok"
	case ExitConfigMismatch:
		return "configuration mismatch"
	case ExitNoSolver:
		return "no solver detected"
	case ExitTransport:
		return "transport failure"
	}
	return "unknown"
}
