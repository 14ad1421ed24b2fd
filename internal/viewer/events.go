package viewer

import (
	"sync"

	"github.com/pdfview/pdfview/internal/protocol"
)

// EventKind names a state change of a viewer.
type EventKind string

const (
	EventOpened    EventKind = "opened"
	EventDestroyed EventKind = "destroyed"
	EventReady     EventKind = "ready"
	EventTitle     EventKind = "title"
	EventOutline   EventKind = "outline"
	EventPosition  EventKind = "position"
	EventHash      EventKind = "hash"
	EventClick     EventKind = "click"
	EventRefreshed EventKind = "refreshed"
	EventReloaded  EventKind = "reloaded"
)

// Event is delivered to subscribers after a viewer changes.
type Event struct {
	Kind    EventKind              `json:"kind"`
	Viewer  State                  `json:"viewer"`
	Outline []protocol.OutlineNode `json:"outline,omitempty"`
	Click   *protocol.Click        `json:"click,omitempty"`
}

// Listener receives events. Listeners run on a dedicated goroutine, one
// event at a time, so they may call back into the controller.
type Listener func(Event)

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]Listener
}

func (ls *listeners) add(fn Listener) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.fns == nil {
		ls.fns = make(map[int]Listener)
	}
	id := ls.next
	ls.next++
	ls.fns[id] = fn
	return func() {
		ls.mu.Lock()
		delete(ls.fns, id)
		ls.mu.Unlock()
	}
}

func (ls *listeners) snapshot() []Listener {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]Listener, 0, len(ls.fns))
	for i := 0; i < ls.next; i++ {
		if fn, ok := ls.fns[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
