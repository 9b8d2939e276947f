package app

import (
	"sync"

	"github.com/railgun-trading/railgun/business/rings/domain"
)

// StabilityTracker remembers the best ring of the previous cycle and how
// many consecutive cycles it has stayed on top. A ring that flickers to
// the top for one tick is noise; one that holds the lead across cycles is
// signal worth committing capital to.
type StabilityTracker struct {
	mu      sync.Mutex
	current string
	streak  int
}

// NewStabilityTracker creates an empty tracker.
func NewStabilityTracker() *StabilityTracker {
	return &StabilityTracker{}
}

// Observe records this cycle's best ring and returns its streak: 0 on
// first sighting, incremented each consecutive cycle it stays best.
func (t *StabilityTracker) Observe(best domain.Ring) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := best.String()
	if id == t.current {
		t.streak++
	} else {
		t.current = id
		t.streak = 0
	}
	return t.streak
}

// Clear forgets the tracked ring, for example after an executed trade.
func (t *StabilityTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = ""
	t.streak = 0
}
