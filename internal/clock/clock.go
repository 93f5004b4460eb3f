// internal/clock/clock.go
//
// Scheduling seam used by the round engine.
// Responsibilities:
//   - Clock: current time, one-shot callbacks, repeating callbacks.
//   - Timer: handle for cancelling a scheduled callback.
//   - Real(): implementation backed by the time package.
//
// Fake (fake.go) provides deterministic virtual time for tests.

package clock

import (
	"sync"
	"time"
)

// Timer cancels a scheduled callback.
// Stop reports whether the call stopped a still-pending timer.
type Timer interface {
	Stop() bool
}

// Clock is the time source handed to the engine.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d.
	AfterFunc(d time.Duration, f func()) Timer
	// Every runs f every d until the returned Timer is stopped.
	Every(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package.
// Callbacks run on their own goroutines.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realClock) Every(d time.Duration, f func()) Timer {
	t := &repeating{ticker: time.NewTicker(d), quit: make(chan struct{})}
	go t.run(f)
	return t
}

// repeating drives f from a time.Ticker until stopped.
type repeating struct {
	ticker *time.Ticker
	quit   chan struct{}
	once   sync.Once
}

func (t *repeating) run(f func()) {
	for {
		select {
		case <-t.quit:
			return
		case <-t.ticker.C:
			select {
			case <-t.quit:
				return
			default:
			}
			f()
		}
	}
}

func (t *repeating) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.quit)
		stopped = true
	})
	return stopped
}
