package throttle

import (
	"sync"
	"time"
)

// window is a fixed-window transaction counter.
//
// A window opens with its first transaction and lasts length. The
// transaction that would push the count past perMinute is deferred to a new
// window opening length+margin after the current one started; callers
// admitted to a window that has not opened yet wait for it.
type window struct {
	mu        sync.Mutex
	length    time.Duration
	margin    time.Duration
	perMinute int
	start     time.Time
	count     int
}

type admission struct {
	wait   time.Duration
	count  int
	capped bool
}

func newWindow(length, margin time.Duration, perMinute int) *window {
	return &window{length: length, margin: margin, perMinute: perMinute}
}

// admit counts one transaction at now and reports how long the caller must
// wait before the transaction may complete.
func (w *window) admit(now time.Time) admission {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := now.Sub(w.start)
	if elapsed > w.length {
		w.start = now
		w.count = 0
		elapsed = 0
	}

	w.count++
	if w.count > w.perMinute {
		// elapsed <= length here, so wait >= margin.
		wait := w.length - elapsed + w.margin
		w.start = now.Add(wait)
		w.count = 1
		return admission{wait: wait, count: w.count, capped: true}
	}

	if elapsed < 0 {
		return admission{wait: -elapsed, count: w.count}
	}
	return admission{count: w.count}
}

func (w *window) current() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

func (w *window) setPerMinute(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.perMinute = n
}

func (w *window) limit() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.perMinute
}
