// Package clock abstracts delayed execution so timer-driven state machines
// can be driven by hand in tests.
package clock

import "time"

// Timer is a pending delayed call.
type Timer interface {
	// Stop prevents the call from running. It reports whether the call was
	// still pending.
	Stop() bool
}

// Scheduler runs functions after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is a Scheduler backed by time.AfterFunc.
type Real struct{}

// AfterFunc implements Scheduler.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// PostFunc posts a function somewhere for later execution, usually onto an
// event loop.
type PostFunc func(func())

// Posting wraps a Scheduler so that expired timers hand their function to
// post instead of running it on the timer goroutine.
func Posting(s Scheduler, post PostFunc) Scheduler {
	return &posting{inner: s, post: post}
}

type posting struct {
	inner Scheduler
	post  PostFunc
}

func (p *posting) AfterFunc(d time.Duration, f func()) Timer {
	return p.inner.AfterFunc(d, func() { p.post(f) })
}
