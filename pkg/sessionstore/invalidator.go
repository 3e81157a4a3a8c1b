package sessionstore

import (
	"sync"
	"time"
)

// InvalidationSink receives the fire-and-forget signal that dependent
// caches (the session resolver outside this core) must drop stale
// entries.
type InvalidationSink interface {
	Invalidate()
}

// defaultDebounce is how long after the last mutation the sink fires.
const defaultDebounce = 100 * time.Millisecond

// invalidator debounces invalidation signals with a single-flight
// timer: a burst of store mutations collapses into one sink call, and
// the write path never blocks on the sink.
type invalidator struct {
	sink  InvalidationSink
	delay time.Duration

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

func newInvalidator(sink InvalidationSink, delay time.Duration) *invalidator {
	if delay <= 0 {
		delay = defaultDebounce
	}
	return &invalidator{sink: sink, delay: delay}
}

// trigger schedules an invalidation. Already-scheduled signals are
// left in place so a steady stream of writes still fires periodically
// instead of being pushed out forever.
func (i *invalidator) trigger() {
	if i == nil || i.sink == nil {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed || i.pending != nil {
		return
	}

	i.pending = time.AfterFunc(i.delay, func() {
		i.mu.Lock()
		i.pending = nil
		closed := i.closed
		i.mu.Unlock()

		if !closed {
			i.sink.Invalidate()
		}
	})
}

// close cancels any pending signal and stops future ones.
func (i *invalidator) close() {
	if i == nil {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.closed = true
	if i.pending != nil {
		i.pending.Stop()
		i.pending = nil
	}
}
