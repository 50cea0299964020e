package requirements

import (
	"math"
	"time"
)

// deadlineTimer is a cancellable one-shot timer, split into construction
// and arming to mirror Python's threading.Timer(d, fn) / .start() split
// that the original pattern nodes rely on (a timer is built once, then
// started only along some code paths). Stop before Start, and Stop
// after the timer already fired, are both safe no-ops — required
// because Prevention and Response arm their timer only under some
// paths (per the concurrency model's cancel-before-start requirement).
type deadlineTimer struct {
	d    time.Duration
	fn   func()
	t    *time.Timer
	done bool
}

// newDeadlineTimer constructs a timer for duration d that will call fn
// when armed with Start. A non-finite or non-positive d means "no
// deadline": Start becomes a no-op and fn is never called.
func newDeadlineTimer(d time.Duration, fn func()) *deadlineTimer {
	return &deadlineTimer{d: d, fn: fn}
}

// isFinite reports whether a duration value represents an armed
// deadline, as opposed to the "no timeout" sentinel (+Inf seconds,
// translated to a non-positive or infinite Duration upstream).
func isFinite(d time.Duration) bool {
	return d > 0 && d < time.Duration(math.MaxInt64)
}

// Start arms the timer. No-op if d is not finite or Stop has already
// been called; a timer that fired without being stopped can be armed
// again.
func (dt *deadlineTimer) Start() {
	if dt.done || !isFinite(dt.d) {
		return
	}
	dt.t = time.AfterFunc(dt.d, dt.fn)
}

// Stop cancels the timer if armed. Safe to call multiple times and
// safe to call before Start.
func (dt *deadlineTimer) Stop() {
	dt.done = true
	if dt.t != nil {
		dt.t.Stop()
	}
}

// secondsToDuration converts a spec-level timeout in seconds (with
// math.Inf(1) meaning "no deadline") to a time.Duration recognized by
// isFinite.
func secondsToDuration(seconds float64) time.Duration {
	if math.IsInf(seconds, 1) || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
