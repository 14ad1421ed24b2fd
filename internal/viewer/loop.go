package viewer

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by operations on a controller whose loop has
// stopped.
var ErrClosed = errors.New("viewer: controller closed")

// Loop runs posted functions one at a time, in posting order, on a single
// goroutine. Post never blocks, so timers, watchers and socket readers can
// hand work to the loop while it waits on them.
type Loop struct {
	name string

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewLoop returns a loop that is not yet running.
func NewLoop(name string) *Loop {
	return &Loop{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues f. It reports false when the loop has stopped.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs f on the loop and waits for it. It must not be called from the
// loop itself.
func (l *Loop) Call(f func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		f()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Run drains the queue until ctx is cancelled. Work posted before the
// cancellation is observed still runs.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, f := range batch {
			l.run(f)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			rest := l.queue
			l.queue = nil
			l.mu.Unlock()
			for _, f := range rest {
				l.run(f)
			}
			return
		case <-l.wake:
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s: recovered panic: %v\n%s", l.name, r, debug.Stack())
		}
	}()
	f()
}
