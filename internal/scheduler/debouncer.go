// Package scheduler decides when re-analysis runs. A Debouncer coalesces
// bursts of change signals per key into a single run after a quiet period.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrShutdown is returned by ExecuteNow after Shutdown.
var ErrShutdown = errors.New("scheduler: shut down")

// Func is the work a Debouncer runs for a key.
type Func[K comparable] func(key K) error

// run is one scheduled invocation. It is owned by the pending map until its
// timer callback claims it, or until it is cancelled.
type run struct {
	timer     *time.Timer
	cancelled bool
}

// Debouncer runs fn(key) once no Submit(key) has happened for delay. Runs of
// the same key never overlap; runs of different keys are independent.
type Debouncer[K comparable] struct {
	delay  time.Duration
	fn     Func[K]
	logger *slog.Logger

	mu      sync.Mutex
	pending map[K]*run
	running map[K]int
	locks   map[K]*sync.Mutex
	changed chan struct{} // closed and replaced on every state change
	closed  bool
}

// NewDebouncer creates a Debouncer. A nil logger uses slog.Default().
func NewDebouncer[K comparable](delay time.Duration, fn Func[K], logger *slog.Logger) *Debouncer[K] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer[K]{
		delay:   delay,
		fn:      fn,
		logger:  logger,
		pending: make(map[K]*run),
		running: make(map[K]int),
		locks:   make(map[K]*sync.Mutex),
		changed: make(chan struct{}),
	}
}

// Delay returns the quiet period.
func (d *Debouncer[K]) Delay() time.Duration { return d.delay }

// Submit schedules a run for key after the quiet period, pushing back the
// deadline of a run that is already pending. Submits after Shutdown are
// ignored.
func (d *Debouncer[K]) Submit(key K) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for {
		r, ok := d.pending[key]
		if !ok {
			d.installLocked(key)
			return
		}
		if r.timer.Stop() {
			r.timer.Reset(d.delay)
			return
		}
		// The timer fired and its callback is waiting for d.mu. Retire the
		// run so the callback backs off, then install a fresh one.
		r.cancelled = true
		delete(d.pending, key)
	}
}

func (d *Debouncer[K]) installLocked(key K) {
	r := &run{}
	r.timer = time.AfterFunc(d.delay, func() { d.fire(key, r) })
	d.pending[key] = r
	d.notifyLocked()
}

// fire is the timer callback of r.
func (d *Debouncer[K]) fire(key K, r *run) {
	d.mu.Lock()
	if r.cancelled || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	lock := d.claimLocked(key)
	d.mu.Unlock()

	_ = d.execute(key, lock)
}

// ExecuteNow cancels the pending run of key, if any, and runs fn(key) in
// the calling goroutine. It waits for a run of key that is already in
// progress to finish first. fn's error is returned as well as logged.
func (d *Debouncer[K]) ExecuteNow(key K) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrShutdown
	}
	if r, ok := d.pending[key]; ok {
		r.timer.Stop()
		r.cancelled = true
		delete(d.pending, key)
	}
	lock := d.claimLocked(key)
	d.mu.Unlock()

	return d.execute(key, lock)
}

// claimLocked registers a run of key as in progress and returns the key's
// execution lock.
func (d *Debouncer[K]) claimLocked(key K) *sync.Mutex {
	d.running[key]++
	lock, ok := d.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[key] = lock
	}
	return lock
}

func (d *Debouncer[K]) execute(key K, lock *sync.Mutex) (err error) {
	lock.Lock()
	defer func() {
		lock.Unlock()
		d.mu.Lock()
		if d.running[key]--; d.running[key] <= 0 {
			delete(d.running, key)
			delete(d.locks, key)
		}
		d.notifyLocked()
		d.mu.Unlock()
	}()
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("scheduler.panic", "key", key, "panic", p)
			err = fmt.Errorf("scheduler: run %v panicked: %v", key, p)
		}
	}()

	start := time.Now()
	if err = d.fn(key); err != nil {
		d.logger.Warn("scheduler.run", "key", key, "err", err)
		return err
	}
	d.logger.Debug("scheduler.run", "key", key, "elapsed", time.Since(start))
	return nil
}

// Pending reports whether a run of key is scheduled but not yet started.
func (d *Debouncer[K]) Pending(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// WaitIdle blocks until key has neither a pending nor a running run, or
// until timeout elapses. It reports whether key became idle.
func (d *Debouncer[K]) WaitIdle(key K, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		d.mu.Lock()
		_, pending := d.pending[key]
		busy := pending || d.running[key] > 0
		changed := d.changed
		d.mu.Unlock()

		if !busy {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return false
		}
	}
}

// Shutdown cancels every pending run. Runs already in progress complete.
func (d *Debouncer[K]) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for key, r := range d.pending {
		r.timer.Stop()
		r.cancelled = true
		delete(d.pending, key)
	}
	d.notifyLocked()
	d.logger.Debug("scheduler.shutdown")
}

func (d *Debouncer[K]) notifyLocked() {
	close(d.changed)
	d.changed = make(chan struct{})
}
