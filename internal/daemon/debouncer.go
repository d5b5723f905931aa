package daemon

import (
	"context"
	"sync"
	"time"
)

// Debouncer coalesces bursts of change notifications into single triggers:
//   - a quiet window must elapse after the last notification
//   - a max delay bounds how long a trigger can be postponed by a steady
//     stream of notifications
//
// It is safe to call Notify from multiple goroutines.
type Debouncer struct {
	quietWindow time.Duration
	maxDelay    time.Duration

	mu      sync.Mutex
	pending bool
	firstAt time.Time
	count   int

	notifyCh chan struct{}
	out      chan int
}

// NewDebouncer creates a debouncer. maxDelay values at or below quietWindow
// are raised to 10x the quiet window.
func NewDebouncer(quietWindow, maxDelay time.Duration) *Debouncer {
	if quietWindow <= 0 {
		quietWindow = 2 * time.Second
	}
	if maxDelay <= quietWindow {
		maxDelay = 10 * quietWindow
	}
	return &Debouncer{
		quietWindow: quietWindow,
		maxDelay:    maxDelay,
		notifyCh:    make(chan struct{}, 1),
		out:         make(chan int, 1),
	}
}

// Notify records one change. It never blocks.
func (d *Debouncer) Notify() {
	d.mu.Lock()
	if !d.pending {
		d.pending = true
		d.firstAt = time.Now()
		d.count = 0
	}
	d.count++
	d.mu.Unlock()

	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
}

// Triggers delivers the number of coalesced notifications per trigger.
func (d *Debouncer) Triggers() <-chan int { return d.out }

// Run owns the timers. It returns when ctx is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	quiet := time.NewTimer(time.Hour)
	stopTimer(quiet)
	deadline := time.NewTimer(time.Hour)
	stopTimer(deadline)
	defer quiet.Stop()
	defer deadline.Stop()

	var quietC, deadlineC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case <-d.notifyCh:
			resetTimer(quiet, d.quietWindow)
			quietC = quiet.C
			if deadlineC == nil {
				resetTimer(deadline, d.maxDelay)
				deadlineC = deadline.C
			}

		case <-quietC:
			d.emit(ctx)
			quietC, deadlineC = nil, nil
			stopTimer(deadline)

		case <-deadlineC:
			d.emit(ctx)
			quietC, deadlineC = nil, nil
			stopTimer(quiet)
		}
	}
}

func (d *Debouncer) emit(ctx context.Context) {
	d.mu.Lock()
	n := d.count
	d.pending = false
	d.count = 0
	d.mu.Unlock()
	if n == 0 {
		return
	}
	select {
	case d.out <- n:
	case <-ctx.Done():
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, after time.Duration) {
	stopTimer(t)
	t.Reset(after)
}
