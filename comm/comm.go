// Package comm provides the process topology for a coupled run: a fixed
// universe of ranks and blocking collective operations over groups of them.
//
// The universe is realized in-process, one goroutine per rank, all sharing a
// World. Every collective blocks until each member of its group has reached
// the matching call; the Comm interface is deliberately transport-shaped so
// a networked implementation could be substituted without changing callers.
//
// There is no partial-failure path. The only cancellation primitive is
// Abort, which poisons the whole world: every pending and future collective
// on any member returns an AbortError carrying the abort status, so no rank
// is ever left blocked on a rendezvous that cannot complete.
package comm

import (
	"fmt"
	"sync"

	"github.com/gthomsen/coupled-models-demo/types"
)

// AbortError is the value every collective returns once the world has been
// poisoned. Status is the exit status the aborting rank requested.
type AbortError struct {
	Status int
	Rank   int // world rank that triggered the abort
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted by rank %d: %s", e.Rank, types.StatusText(e.Status))
}

// World is the full set of participating ranks. It owns the shared state
// behind every group's collectives and the coordinated-abort flag.
type World struct {
	size int

	mu     sync.Mutex
	failed *AbortError
	groups map[string]*group
	nextID int
	world  *group
}

// NewWorld creates a universe of size ranks and returns one communicator
// handle per rank, in rank order. Each handle belongs to exactly one rank
// goroutine.
func NewWorld(size int) ([]*Comm, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world size must be positive, got %d", size)
	}
	w := &World{
		size:   size,
		groups: make(map[string]*group),
		nextID: 1,
	}
	w.world = newGroup(w, 0, size)

	members := make([]int, size)
	for i := range members {
		members[i] = i
	}

	comms := make([]*Comm, size)
	for i := 0; i < size; i++ {
		comms[i] = &Comm{w: w, g: w.world, rank: i, members: members}
	}
	return comms, nil
}

// err returns the poison value, if any.
func (w *World) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed != nil {
		return w.failed
	}
	return nil
}

// abort records the poison value and wakes every blocked collective.
// The first abort wins; later ones are ignored.
func (w *World) abort(e *AbortError) {
	w.mu.Lock()
	if w.failed != nil {
		w.mu.Unlock()
		return
	}
	w.failed = e
	groups := make([]*group, 0, len(w.groups)+1)
	groups = append(groups, w.world)
	for _, g := range w.groups {
		groups = append(groups, g)
	}
	w.mu.Unlock()

	for _, g := range groups {
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	}
}

// intern returns the shared group state for key, creating it on first use.
// Every member of a split derives the same key, so all of them end up on
// the same group object.
func (w *World) intern(key string, size int) *group {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.groups[key]
	if !ok {
		g = newGroup(w, w.nextID, size)
		w.nextID++
		w.groups[key] = g
	}
	return g
}

// Comm is one rank's handle on a group. Handles come from NewWorld or Split;
// the group they point at is fixed for the handle's lifetime.
type Comm struct {
	w       *World
	g       *group
	rank    int   // local rank within the group, 0..len(members)-1
	members []int // world ranks of the group, ascending

	splits int // how often this handle has split, disambiguates group keys
}

// Rank returns this rank's position within the group.
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in the group.
func (c *Comm) Size() int { return len(c.members) }

// GlobalRank returns this rank's identity in the full universe.
func (c *Comm) GlobalRank() int { return c.members[c.rank] }

// WorldSize returns the size of the full universe.
func (c *Comm) WorldSize() int { return c.w.size }

// Abort poisons the world with the given exit status. Every collective in
// flight or issued afterwards, on any rank, fails with an AbortError
// carrying the status.
func (c *Comm) Abort(status int) {
	c.w.abort(&AbortError{Status: status, Rank: c.GlobalRank()})
}

// Split partitions the group by name: ranks contributing equal names form a
// new group, ordered by their rank in the parent group. Returns this rank's
// handle on its new group. Collective over the parent group.
func (c *Comm) Split(name string) (*Comm, error) {
	names, err := c.AllgatherString(name)
	if err != nil {
		return nil, err
	}

	var members []int
	local := -1
	for i, n := range names {
		if n != name {
			continue
		}
		if i == c.rank {
			local = len(members)
		}
		members = append(members, c.members[i])
	}

	// all members of the parent have performed the same number of splits,
	// so the key is identical across them and unique among groups.
	c.splits++
	key := fmt.Sprintf("split/%d/%d/%s", c.g.id, c.splits, name)
	g := c.w.intern(key, len(members))
	return &Comm{w: c.w, g: g, rank: local, members: members}, nil
}
