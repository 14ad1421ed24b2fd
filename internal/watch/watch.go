// Package watch reports changes to a single file.
//
// The parent directory is watched rather than the file itself so that
// writers which replace the file (write to a temporary name, then rename)
// keep producing events.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change observed.
type Op int

const (
	Changed Op = iota + 1
	Deleted
	Renamed
)

// RenameWindow is how long a file that was renamed away may take to show
// up under its new name in the same directory before it counts as deleted.
const RenameWindow = 250 * time.Millisecond

func (o Op) String() string {
	switch o {
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Event is one observed change. NewPath is set for Renamed.
type Event struct {
	Path    string
	Op      Op
	NewPath string
}

// Handler receives events. It is called from the subscription's goroutine
// and must not block.
type Handler func(Event)

// Subscription is an active watch. Close releases it.
type Subscription struct {
	path    string
	info    os.FileInfo
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// File starts watching path and delivers events to h until the returned
// subscription is closed.
func File(path string, h Handler) (*Subscription, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			log.Printf("watch: closing watcher after add error: %v", closeErr)
		}
		return nil, fmt.Errorf("watch: adding %s: %w", filepath.Dir(abs), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		path:    abs,
		info:    statOrNil(abs),
		watcher: watcher,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx, h)
	return s, nil
}

// Close stops the subscription. No events are delivered after Close
// returns.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.watcher.Close()
		<-s.done
	})
	return err
}

func (s *Subscription) run(ctx context.Context, h Handler) {
	defer close(s.done)

	// A rename away from the watched name is held until RenameWindow
	// passes or the same file appears under another name.
	var pending <-chan time.Time
	var timer *time.Timer
	stopPending := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, pending = nil, nil
	}
	defer stopPending()

	deliver := func(e Event) bool {
		if ctx.Err() != nil {
			return false
		}
		h(e)
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-pending:
			timer, pending = nil, nil
			if !deliver(Event{Path: s.path, Op: Deleted}) {
				return
			}
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if name != s.path {
				if pending == nil || !event.Has(fsnotify.Create) || filepath.Dir(name) != filepath.Dir(s.path) {
					continue
				}
				if fi := statOrNil(name); fi != nil && s.info != nil && os.SameFile(s.info, fi) {
					stopPending()
					if !deliver(Event{Path: s.path, Op: Renamed, NewPath: name}) {
						return
					}
				}
				continue
			}
			op, ok := classify(event, s.path)
			if !ok {
				continue
			}
			if op == Deleted && event.Has(fsnotify.Rename) && s.info != nil {
				if pending == nil {
					timer = time.NewTimer(RenameWindow)
					pending = timer.C
				}
				continue
			}
			stopPending()
			if op == Changed {
				s.info = statOrNil(s.path)
			}
			if !deliver(Event{Path: s.path, Op: op}) {
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %s: %v", s.path, err)
		}
	}
}

// classify maps a raw event to an Op. A rename or removal of the file is a
// deletion unless something already took its place.
func classify(event fsnotify.Event, path string) (Op, bool) {
	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		return Changed, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if _, err := os.Stat(path); err == nil {
			return Changed, true
		}
		return Deleted, true
	default:
		return 0, false
	}
}

func statOrNil(path string) os.FileInfo {
	fi, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return fi
}
