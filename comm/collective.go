package comm

import "sync"

// group is the state shared by all members of one communicator. Collectives
// rendezvous through it: each arriving rank deposits its contribution into a
// slot, the last arrival advances the generation and releases everyone, and
// each rank reads the full slot array before returning.
//
// Slots are double-buffered by generation parity. A rank can enter the next
// collective before a slow peer has returned from the current one, but it
// writes the other parity's slots, and a slow peer always finishes reading
// under the lock before it can arrive at the next generation. Two buffers
// are therefore sufficient to keep generations from clobbering each other.
type group struct {
	world *World
	id    int
	size  int

	mu      sync.Mutex
	cond    *sync.Cond
	gen     uint64
	arrived int
	slots   [2][]any
}

func newGroup(w *World, id, size int) *group {
	g := &group{world: w, id: id, size: size}
	g.cond = sync.NewCond(&g.mu)
	g.slots[0] = make([]any, size)
	g.slots[1] = make([]any, size)
	return g
}

// rendezvous runs one collective: deposit contrib at the local rank's slot,
// block until every member has arrived, and return the full contribution
// array in local-rank order. Fails with the world's AbortError if the world
// is poisoned before or while blocked.
func (g *group) rendezvous(local int, contrib any) ([]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.world.err(); err != nil {
		return nil, err
	}

	gen := g.gen
	p := gen % 2
	g.slots[p][local] = contrib
	g.arrived++

	if g.arrived == g.size {
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for gen == g.gen {
			// a completed generation always delivers; the poison check
			// only fires while the collective is still incomplete.
			if err := g.world.err(); err != nil {
				return nil, err
			}
			g.cond.Wait()
		}
	}

	out := make([]any, g.size)
	copy(out, g.slots[p])
	return out, nil
}

// Barrier blocks until every member of the group has entered it.
func (c *Comm) Barrier() error {
	_, err := c.g.rendezvous(c.rank, nil)
	return err
}

// Bcast distributes the root rank's value to every member of the group.
// Non-root ranks pass their local value, which is ignored, and receive the
// root's value back unchanged.
func (c *Comm) Bcast(root int, v any) (any, error) {
	out, err := c.g.rendezvous(c.rank, v)
	if err != nil {
		return nil, err
	}
	return out[root], nil
}

// BcastInt distributes a single integer from the root rank.
func (c *Comm) BcastInt(root, v int) (int, error) {
	out, err := c.Bcast(root, v)
	if err != nil {
		return 0, err
	}
	return out.(int), nil
}

// AllgatherInt collects one integer from every member, in local-rank order.
func (c *Comm) AllgatherInt(v int) ([]int, error) {
	out, err := c.g.rendezvous(c.rank, v)
	if err != nil {
		return nil, err
	}
	vals := make([]int, len(out))
	for i, o := range out {
		vals[i] = o.(int)
	}
	return vals, nil
}

// AllgatherString collects one string from every member, in local-rank order.
func (c *Comm) AllgatherString(s string) ([]string, error) {
	out, err := c.g.rendezvous(c.rank, s)
	if err != nil {
		return nil, err
	}
	vals := make([]string, len(out))
	for i, o := range out {
		vals[i] = o.(string)
	}
	return vals, nil
}

// Allgather collects a float64 buffer from every member and returns the
// concatenation in local-rank order. Empty and nil contributions are legal
// and contribute nothing, which is how ranks outside a producing role take
// part in a group-wide gather without supplying data.
//
// The contribution is copied at the rendezvous, so the caller may reuse or
// mutate its buffer as soon as the call returns.
func (c *Comm) Allgather(buf []float64) ([]float64, error) {
	contrib := append([]float64(nil), buf...)
	out, err := c.g.rendezvous(c.rank, contrib)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, o := range out {
		total += len(o.([]float64))
	}
	gathered := make([]float64, 0, total)
	for _, o := range out {
		gathered = append(gathered, o.([]float64)...)
	}
	return gathered, nil
}

// AllreduceSum returns the sum of every member's value. This is the
// coordinated status check: each rank contributes its local error count and
// every rank observes the same total at the same synchronization point.
func (c *Comm) AllreduceSum(v int) (int, error) {
	vals, err := c.AllgatherInt(v)
	if err != nil {
		return 0, err
	}
	sum := 0
	for _, x := range vals {
		sum += x
	}
	return sum, nil
}
