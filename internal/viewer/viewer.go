// Package viewer owns the set of open documents and drives the protocol
// between the daemon and each browser frame rendering one of them.
package viewer

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfview/pdfview/internal/protocol"
	"github.com/pdfview/pdfview/internal/stability"
	"github.com/pdfview/pdfview/internal/synctex"
	"github.com/pdfview/pdfview/internal/watch"
)

var (
	// ErrNotFound is returned when a document does not exist on disk.
	ErrNotFound = errors.New("viewer: document not found")
	// ErrUnsupported is returned for paths that are not viewable documents.
	ErrUnsupported = errors.New("viewer: unsupported document")
	// ErrUnknownViewer is returned when no open viewer has the given tag or
	// path.
	ErrUnknownViewer = errors.New("viewer: no such viewer")
	// ErrNotReady is returned for requests that need a loaded frame.
	ErrNotReady = errors.New("viewer: frame not ready")
	// ErrNoMapper is returned when source synchronisation is not configured.
	ErrNoMapper = errors.New("viewer: source sync not configured")
)

// Frame is the host end of the bridge to one browser frame.
type Frame interface {
	Send(msg protocol.HostMessage) error
	Close() error
}

// Releaser is implemented by frames that can disconnect without ending
// their session, so they reconnect to a restarted daemon.
type Releaser interface {
	Release() error
}

// Severity grades a Notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a passive, user-facing message.
type Notice struct {
	Severity  Severity
	Title     string
	Message   string
	ViewerTag string
}

// Host is what the controller needs from its surroundings.
type Host interface {
	// OpenDocument opens a source file at a zero-based line.
	OpenDocument(ctx context.Context, path string, line, column int) error
	// DispatchCommand runs a named editor action on behalf of a viewer.
	DispatchCommand(ctx context.Context, name, tag string) error
	// ShowViewer brings a frame for the viewer on screen.
	ShowViewer(tag, hash string) error
	// Notify shows a passive notice. It must not block.
	Notify(n Notice)
}

// Mapper translates between source and page positions.
type Mapper interface {
	Forward(ctx context.Context, req synctex.ForwardRequest) (protocol.SyncPosition, error)
	Inverse(ctx context.Context, req synctex.InverseRequest) (synctex.SourceLocation, error)
}

// WatchFunc subscribes to changes of one file.
type WatchFunc func(path string, h watch.Handler) (io.Closer, error)

// WatchFile is the default WatchFunc.
func WatchFile(path string, h watch.Handler) (io.Closer, error) {
	return watch.File(path, h)
}

// Saved is the persisted form of a viewer.
type Saved struct {
	Tag  string `json:"tag"`
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// State is a snapshot of a viewer.
type State struct {
	Tag            string    `json:"tag"`
	Path           string    `json:"path"`
	Title          string    `json:"title"`
	Hash           string    `json:"hash,omitempty"`
	Ready          bool      `json:"ready"`
	Attached       bool      `json:"attached"`
	AutoRefresh    bool      `json:"auto_refresh"`
	BuildPaused    bool      `json:"build_paused"`
	PendingRefresh bool      `json:"pending_refresh"`
	Pages          int       `json:"pages,omitempty"`
	CurrentDests   []string  `json:"current_dests,omitempty"`
	OpenedAt       time.Time `json:"opened_at"`
}

// Viewer is one open document. All fields are owned by the controller's
// loop.
type Viewer struct {
	tag  string
	path string
	hash string

	ready              bool
	reloading          bool
	autoRefresh        bool
	buildPaused        bool
	changedWhilePaused bool
	pendingRefresh     bool
	pendingNav         protocol.HostMessage
	debug              bool
	destroyed          bool

	pages    int
	revision int
	outline  []protocol.OutlineNode
	hasOut   bool
	dests    []string
	openedAt time.Time

	frame    Frame
	detector *stability.Detector

	ctx    context.Context
	cancel context.CancelFunc

	// life holds everything released on destroy; files holds what is tied
	// to the current path and is replaced when the path changes.
	life  Disposer
	files *Disposer
}

func (v *Viewer) title() string {
	return filepath.Base(v.path)
}

func (v *Viewer) state() State {
	return State{
		Tag:            v.tag,
		Path:           v.path,
		Title:          v.title(),
		Hash:           v.hash,
		Ready:          v.ready,
		Attached:       v.frame != nil,
		AutoRefresh:    v.autoRefresh,
		BuildPaused:    v.buildPaused,
		PendingRefresh: v.pendingRefresh,
		Pages:          v.pages,
		CurrentDests:   append([]string(nil), v.dests...),
		OpenedAt:       v.openedAt,
	}
}

// sameDocument reports whether a build of file produces this viewer's
// document: the same path, or the same directory and stem.
func (v *Viewer) sameDocument(file string) bool {
	if file == v.path {
		return true
	}
	if filepath.Dir(file) != filepath.Dir(v.path) {
		return false
	}
	return stem(file) == stem(v.path)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// normalizeHash strips the fragment marker from a destination hash.
func normalizeHash(h string) string {
	return strings.TrimPrefix(h, "#")
}
