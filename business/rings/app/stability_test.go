package app

import (
	"testing"

	"github.com/railgun-trading/railgun/business/rings/domain"
)

func TestStabilityTracker_Observe(t *testing.T) {
	a := domain.NewRing("AAA", "BNB", "BUSD")
	b := domain.NewRing("BBB", "BNB", "BUSD")

	tr := NewStabilityTracker()

	steps := []struct {
		best domain.Ring
		want int
	}{
		{best: a, want: 0}, // first sighting
		{best: a, want: 1},
		{best: a, want: 2},
		{best: b, want: 0}, // lead change resets
		{best: b, want: 1},
		{best: a, want: 0}, // a returning starts over
	}

	for i, step := range steps {
		if got := tr.Observe(step.best); got != step.want {
			t.Errorf("step %d: Observe(%s) = %d, want %d", i, step.best.Base, got, step.want)
		}
	}
}

func TestStabilityTracker_Clear(t *testing.T) {
	a := domain.NewRing("AAA", "BNB", "BUSD")

	tr := NewStabilityTracker()
	tr.Observe(a)
	tr.Observe(a)
	tr.Clear()

	if got := tr.Observe(a); got != 0 {
		t.Errorf("Observe after Clear = %d, want 0", got)
	}
}
