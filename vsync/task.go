package vsync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Task is a single cancellable delayed action. Scheduling again replaces the pending run.
type Task struct {
	clock clockwork.Clock

	m          sync.Mutex
	timer      clockwork.Timer
	generation uint64
}

func NewTask(clock clockwork.Clock) *Task {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Task{clock: clock}
}

// Schedule returns the generation of the new run. Callers that serialize
// on their own lock re-check it with Current once they hold that lock.
func (t *Task) Schedule(d time.Duration, f func()) uint64 {
	t.m.Lock()
	defer t.m.Unlock()

	t.stopLocked()
	t.generation++
	gen := t.generation
	t.timer = t.clock.AfterFunc(d, func() {
		t.m.Lock()
		if gen != t.generation {
			t.m.Unlock()
			return
		}
		t.timer = nil
		t.m.Unlock()
		f()
	})
	return gen
}

// Current reports whether gen is still the latest Schedule, with no Cancel since.
func (t *Task) Current(gen uint64) bool {
	t.m.Lock()
	defer t.m.Unlock()
	return gen == t.generation
}

// Cancel reports whether a pending run was dropped.
func (t *Task) Cancel() bool {
	t.m.Lock()
	defer t.m.Unlock()
	t.generation++
	return t.stopLocked()
}

func (t *Task) Pending() bool {
	t.m.Lock()
	defer t.m.Unlock()
	return t.timer != nil
}

func (t *Task) stopLocked() bool {
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	return true
}
