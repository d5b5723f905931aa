package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitTrigger(t *testing.T, d *Debouncer, timeout time.Duration) int {
	t.Helper()
	select {
	case n := <-d.Triggers():
		return n
	case <-time.After(timeout):
		t.Fatal("expected a trigger before timeout")
		return 0
	}
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(50*time.Millisecond, time.Second)
	go d.Run(ctx)

	for i := 0; i < 5; i++ {
		d.Notify()
		time.Sleep(5 * time.Millisecond)
	}

	n := waitTrigger(t, d, time.Second)
	assert.Equal(t, 5, n)

	// No further trigger without new notifications.
	select {
	case <-d.Triggers():
		t.Fatal("unexpected second trigger")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncerMaxDelayBoundsPostponement(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Quiet window never elapses because notifications keep arriving.
	d := NewDebouncer(80*time.Millisecond, 200*time.Millisecond)
	go d.Run(ctx)

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.Notify()
			}
		}
	}()
	defer close(stop)

	start := time.Now()
	waitTrigger(t, d, 2*time.Second)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDebouncerSeparateBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := NewDebouncer(30*time.Millisecond, time.Second)
	go d.Run(ctx)

	d.Notify()
	require.Equal(t, 1, waitTrigger(t, d, time.Second))

	d.Notify()
	d.Notify()
	require.Equal(t, 2, waitTrigger(t, d, time.Second))
}

func TestDebouncerDefaults(t *testing.T) {
	d := NewDebouncer(0, 0)
	assert.Equal(t, 2*time.Second, d.quietWindow)
	assert.Equal(t, 20*time.Second, d.maxDelay)
}
