// Package stability waits for a file that is being rewritten to settle
// before it is reloaded.
package stability

import (
	"errors"
	"os"
	"time"

	"github.com/pdfview/pdfview/internal/clock"
	"github.com/pdfview/pdfview/internal/document"
)

// ErrGaveUp is reported when a chain exceeds its poll budget.
var ErrGaveUp = errors.New("stability: file did not settle")

// StatFunc returns the current size of the file at path.
type StatFunc func(path string) (int64, error)

// ValidateFunc checks that the file at path is complete.
type ValidateFunc func(path string) error

// Options configures a Detector.
type Options struct {
	// Settle is the delay between a change notification and the first poll.
	Settle time.Duration
	// Interval is the delay between polls.
	Interval time.Duration
	// MaxPolls bounds a chain; zero polls until stopped.
	MaxPolls int

	Stat     StatFunc
	Validate ValidateFunc

	// OnStable runs once per chain, after a stable and valid observation.
	OnStable func()
	// OnGiveUp runs when MaxPolls is exhausted.
	OnGiveUp func(error)
}

// Detector polls a file's size after each change until two consecutive
// polls agree and the content validates. A new change restarts the chain.
//
// A Detector is not safe for concurrent use; the scheduler it is given must
// run callbacks on the goroutine that calls Restart and Stop.
type Detector struct {
	path  func() string
	sched clock.Scheduler
	opts  Options

	timer    clock.Timer
	gen      uint64
	lastSize int64
	polls    int
	stopped  bool
}

// New returns a Detector for the file named by path. path is called on
// every poll so a renamed file is followed.
func New(path func() string, sched clock.Scheduler, opts Options) *Detector {
	if opts.Stat == nil {
		opts.Stat = StatSize
	}
	if opts.Validate == nil {
		opts.Validate = func(p string) error { return document.Validate(p, false) }
	}
	if opts.Interval <= 0 {
		opts.Interval = 150 * time.Millisecond
	}
	return &Detector{path: path, sched: sched, opts: opts, lastSize: -1}
}

// Restart cancels any running chain and starts a new one.
func (d *Detector) Restart() {
	if d.stopped {
		return
	}
	d.cancel()
	d.lastSize = -1
	d.polls = 0
	d.schedule(d.opts.Settle)
}

// Cancel stops the running chain, if any, without stopping the detector.
// It reports whether a chain was running.
func (d *Detector) Cancel() bool {
	running := d.timer != nil
	d.cancel()
	return running
}

// Running reports whether a chain is in flight.
func (d *Detector) Running() bool {
	return d.timer != nil
}

// Stop cancels the running chain and makes the detector inert.
func (d *Detector) Stop() {
	d.stopped = true
	d.cancel()
}

// SetOptions replaces timing options for future chains.
func (d *Detector) SetOptions(settle, interval time.Duration, maxPolls int) {
	d.opts.Settle = settle
	if interval > 0 {
		d.opts.Interval = interval
	}
	d.opts.MaxPolls = maxPolls
}

func (d *Detector) cancel() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Detector) schedule(delay time.Duration) {
	gen := d.gen
	d.timer = d.sched.AfterFunc(delay, func() { d.poll(gen) })
}

func (d *Detector) poll(gen uint64) {
	if d.stopped || gen != d.gen {
		return
	}
	d.timer = nil
	d.polls++

	if d.opts.MaxPolls > 0 && d.polls > d.opts.MaxPolls {
		d.gen++
		if d.opts.OnGiveUp != nil {
			d.opts.OnGiveUp(ErrGaveUp)
		}
		return
	}

	path := d.path()
	size, err := d.opts.Stat(path)
	if err != nil || size == 0 {
		// Missing or empty: the writer truncated it and has not finished.
		d.lastSize = 0
		d.schedule(d.opts.Interval)
		return
	}
	if size != d.lastSize {
		d.lastSize = size
		d.schedule(d.opts.Interval)
		return
	}
	if err := d.opts.Validate(path); err != nil {
		d.schedule(d.opts.Interval)
		return
	}

	d.gen++
	if d.opts.OnStable != nil {
		d.opts.OnStable()
	}
}

// StatSize is the default StatFunc.
func StatSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
