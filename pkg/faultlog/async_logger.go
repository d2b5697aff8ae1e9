package faultlog

import (
	"context"
	"sync/atomic"
)

// DefaultQueueSize is the AsyncLogger queue capacity used when size <= 0.
const DefaultQueueSize = 1024

// AsyncLogger decouples callers from a slow Logger. Log never blocks: when
// the queue is full the event is dropped and counted. Run delivers queued
// events to the wrapped logger on its own goroutine.
type AsyncLogger struct {
	next    Logger
	queue   chan Event
	dropped atomic.Uint64
}

// NewAsyncLogger wraps next with a queue of the given size.
func NewAsyncLogger(next Logger, size int) *AsyncLogger {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if next == nil {
		next = NoopLogger{}
	}
	return &AsyncLogger{
		next:  next,
		queue: make(chan Event, size),
	}
}

// Log enqueues the event or drops it if the queue is full.
func (a *AsyncLogger) Log(event Event) {
	select {
	case a.queue <- event:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (a *AsyncLogger) Dropped() uint64 {
	return a.dropped.Load()
}

// Pending returns the number of queued events.
func (a *AsyncLogger) Pending() int {
	return len(a.queue)
}

// Run delivers events until ctx is cancelled, then drains whatever is
// still queued before returning.
func (a *AsyncLogger) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.Drain()
			return
		case event := <-a.queue:
			a.next.Log(event)
		}
	}
}

// Drain delivers every currently queued event without blocking for more.
func (a *AsyncLogger) Drain() {
	for {
		select {
		case event := <-a.queue:
			a.next.Log(event)
		default:
			return
		}
	}
}

var _ Logger = (*AsyncLogger)(nil)
