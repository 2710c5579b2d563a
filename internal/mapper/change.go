package mapper

import "sync"

// Observation classifies a field's content before it is overwritten.
type Observation int

const (
	// ObservationFirst means nothing was inserted into the column yet.
	ObservationFirst Observation = iota
	// ObservationStale means the field still holds the previous row's value.
	ObservationStale
	// ObservationDiverged means the field holds something else.
	ObservationDiverged
)

func (o Observation) String() string {
	switch o {
	case ObservationStale:
		return "stale"
	case ObservationDiverged:
		return "diverged"
	default:
		return "first"
	}
}

// ChangeTracker remembers the last value inserted per column. Its verdict is
// informational; fields are cleared and replaced whatever it reports.
type ChangeTracker struct {
	mu   sync.Mutex
	prev map[int]string
}

// NewChangeTracker returns an empty tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{prev: make(map[int]string)}
}

// Compare classifies current against the value last recorded for col.
func (c *ChangeTracker) Compare(col int, current string) Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.prev[col]
	switch {
	case !ok:
		return ObservationFirst
	case prev == current:
		return ObservationStale
	default:
		return ObservationDiverged
	}
}

// Record stores the value just inserted into col.
func (c *ChangeTracker) Record(col int, inserted string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prev[col] = inserted
}
