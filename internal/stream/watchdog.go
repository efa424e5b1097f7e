// ABOUTME: Stall watchdog for a playing stream
// ABOUTME: Fires once when no audio arrives within the timeout and reports recovery
package stream

import (
	"sync"
	"time"
)

type watchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
	onStall func()
	stalled bool
	stopped bool
}

// newWatchdog arms nothing until the first kick; a zero timeout disables it
func newWatchdog(timeout time.Duration, onStall func()) *watchdog {
	return &watchdog{timeout: timeout, onStall: onStall}
}

// kick records incoming audio and reports whether the stream just recovered
func (w *watchdog) kick() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timeout <= 0 || w.stopped {
		return false
	}

	recovered := w.stalled
	w.stalled = false
	if w.timer == nil {
		w.timer = time.AfterFunc(w.timeout, w.fire)
	} else {
		w.timer.Reset(w.timeout)
	}
	return recovered
}

func (w *watchdog) fire() {
	w.mu.Lock()
	if w.stopped || w.stalled {
		w.mu.Unlock()
		return
	}
	w.stalled = true
	w.mu.Unlock()

	w.onStall()
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
