package runguard

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Run identifies one admitted maintenance run.
type Run struct {
	ID        string
	StartedAt time.Time
}

// Guard admits at most one task at a time. A second TryStart while a task
// is in flight is rejected rather than queued.
type Guard struct {
	busy atomic.Bool

	mu      sync.RWMutex
	current *Run
	last    *Run
}

func New() *Guard {
	return &Guard{}
}

// TryStart runs task on a new goroutine when the guard is idle and reports
// whether it was admitted. The guard re-arms when task returns or panics.
func (g *Guard) TryStart(task func(Run)) (Run, bool) {
	run, ok := g.admit()
	if !ok {
		return Run{}, false
	}

	go func() {
		defer g.release(run)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("run", run.ID).Msgf("maintenance run panicked: %v\n%s", r, debug.Stack())
			}
		}()
		task(run)
	}()
	return run, true
}

// Do runs task on the calling goroutine when the guard is idle. The bool
// result is false when another run holds the guard.
func (g *Guard) Do(task func(Run)) (Run, bool) {
	run, ok := g.admit()
	if !ok {
		return Run{}, false
	}
	defer g.release(run)
	task(run)
	return run, true
}

// admit flips the busy flag and publishes the run in one critical section,
// so a rejected caller always observes the run holding the guard.
func (g *Guard) admit() (Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.busy.CompareAndSwap(false, true) {
		return Run{}, false
	}
	run := Run{ID: uuid.NewString(), StartedAt: time.Now()}
	g.current = &run
	return run, true
}

func (g *Guard) release(run Run) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = nil
	g.last = &run
	g.busy.Store(false)
}

func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// Current returns the run holding the guard, if any.
func (g *Guard) Current() (Run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return Run{}, false
	}
	return *g.current, true
}

// Last returns the most recently finished run.
func (g *Guard) Last() (Run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.last == nil {
		return Run{}, false
	}
	return *g.last, true
}
