package detection

import (
	"sync"
	"time"
)

// DebounceTrigger fires when the top category's moving sum reaches the
// threshold. A category that just fired is held back for the suppression
// window, a different category may fire at once.
type DebounceTrigger struct {
	mu          sync.RWMutex
	threshold   int
	suppression time.Duration
	last        Category
	lastAt      time.Time
}

// NewDebounceTrigger returns a trigger in the NoDetection state.
func NewDebounceTrigger(threshold int, suppression time.Duration) *DebounceTrigger {
	return &DebounceTrigger{
		threshold:   threshold,
		suppression: suppression,
		last:        NoDetection,
	}
}

// Evaluate applies the trigger rule to one smoothed frame. It always returns
// the held category; ev is non-nil only when a new detection fired.
func (t *DebounceTrigger) Evaluate(top Category, acc []int, now time.Time) (reported Category, ev *Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if top < 0 || int(top) >= len(acc) {
		return t.last, nil
	}

	score := acc[top]
	if score < t.threshold {
		return t.last, nil
	}
	if top == t.last && now.Before(t.lastAt.Add(t.suppression)) {
		return t.last, nil
	}

	t.last = top
	t.lastAt = now
	return t.last, newEvent(top, score, now)
}

// State returns the held category and the time it last fired.
func (t *DebounceTrigger) State() (Category, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.lastAt
}

// Threshold returns the firing level.
func (t *DebounceTrigger) Threshold() int { return t.threshold }

// Suppression returns the refractory period.
func (t *DebounceTrigger) Suppression() time.Duration { return t.suppression }

// Reset returns the trigger to NoDetection.
func (t *DebounceTrigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = NoDetection
	t.lastAt = time.Time{}
}
