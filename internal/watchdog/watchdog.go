// Package watchdog provides a one-shot, cancellable timer that interrupts an
// in-flight operation after a deadline.
package watchdog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Watchdog fires its interrupt function at most once, after the configured
// delay, unless disarmed first. All methods are safe on a nil *Watchdog,
// which represents "no timeout armed".
type Watchdog struct {
	timer     *time.Timer
	once      sync.Once
	fired     atomic.Bool
	disarmed  atomic.Bool
	interrupt func()
}

// Arm starts a watchdog that calls interrupt after d. Returns nil when d <= 0.
func Arm(d time.Duration, interrupt func()) *Watchdog {
	if d <= 0 {
		return nil
	}
	w := &Watchdog{interrupt: interrupt}
	w.timer = time.AfterFunc(d, w.fire)
	return w
}

func (w *Watchdog) fire() {
	if w.disarmed.Load() {
		return
	}
	w.once.Do(func() {
		w.fired.Store(true)
		w.interrupt()
	})
}

// Disarm stops the watchdog. It reports whether the interrupt was prevented.
// Disarming an already-fired or already-disarmed watchdog is a no-op.
func (w *Watchdog) Disarm() bool {
	if w == nil {
		return false
	}
	w.disarmed.Store(true)
	return w.timer.Stop()
}

// Fired reports whether the interrupt function has been called.
func (w *Watchdog) Fired() bool {
	if w == nil {
		return false
	}
	return w.fired.Load()
}
