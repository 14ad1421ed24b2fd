package viewer

import (
	"io"
	"log"
)

// Disposer releases a group of resources in reverse order of acquisition.
// It is owned by the loop and is not safe for concurrent use.
type Disposer struct {
	fns      []func()
	disposed bool
}

// Add registers f. After Dispose, f runs immediately.
func (d *Disposer) Add(f func()) {
	if d.disposed {
		f()
		return
	}
	d.fns = append(d.fns, f)
}

// AddCloser registers c.Close, logging its error under name.
func (d *Disposer) AddCloser(name string, c io.Closer) {
	d.Add(func() {
		if err := c.Close(); err != nil {
			log.Printf("viewer: closing %s: %v", name, err)
		}
	})
}

// Dispose runs every registered function once, newest first.
func (d *Disposer) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true
	for i := len(d.fns) - 1; i >= 0; i-- {
		d.fns[i]()
	}
	d.fns = nil
}

// Disposed reports whether Dispose has run.
func (d *Disposer) Disposed() bool { return d.disposed }
