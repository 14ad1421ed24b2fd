package viewer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pdfview/pdfview/internal/clock"
	"github.com/pdfview/pdfview/internal/config"
	"github.com/pdfview/pdfview/internal/document"
	"github.com/pdfview/pdfview/internal/protocol"
	"github.com/pdfview/pdfview/internal/stability"
	"github.com/pdfview/pdfview/internal/synctex"
	"github.com/pdfview/pdfview/internal/watch"
)

// ActionToggleRefreshing is the keyboard action that flips a viewer's auto
// refresh setting.
const ActionToggleRefreshing = "toggle-refreshing"

// Options configures a Controller. Only Config and Host are normally set;
// the rest exist so tests can substitute time and the file system.
type Options struct {
	Config *config.Config
	Host   Host
	Mapper Mapper

	Clock    clock.Scheduler
	Watch    WatchFunc
	Stat     stability.StatFunc
	Validate stability.ValidateFunc
}

// Controller owns every open viewer. Its exported methods are safe for
// concurrent use; they run on the controller's loop, which must be started
// with Run.
type Controller struct {
	loop   *Loop
	events *Loop
	subs   listeners

	host      Host
	mapper    Mapper
	sched     clock.Scheduler
	watchFile WatchFunc
	stat      stability.StatFunc
	validate  stability.ValidateFunc
	newTag    func() string

	mapperTimeout atomic.Int64

	// Owned by the loop.
	base    context.Context
	cfg     config.Config
	viewers map[string]*Viewer
}

// NewController returns a controller that is ready to Run.
func NewController(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Controller{
		loop:      NewLoop("viewer"),
		events:    NewLoop("viewer events"),
		host:      opts.Host,
		mapper:    opts.Mapper,
		watchFile: opts.Watch,
		stat:      opts.Stat,
		validate:  opts.Validate,
		newTag:    uuid.NewString,
		base:      context.Background(),
		cfg:       *cfg,
		viewers:   make(map[string]*Viewer),
	}
	if c.host == nil {
		c.host = nopHost{}
	}
	if c.watchFile == nil {
		c.watchFile = WatchFile
	}
	sched := opts.Clock
	if sched == nil {
		sched = clock.Real{}
	}
	c.sched = clock.Posting(sched, func(f func()) { c.loop.Post(f) })
	c.mapperTimeout.Store(int64(cfg.MapperTimeout()))
	return c
}

// Run processes viewer work until ctx is cancelled, then releases every
// viewer without reporting it destroyed, so saved sessions survive a
// restart.
func (c *Controller) Run(ctx context.Context) error {
	c.base = ctx

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	go c.events.Run(eventsCtx)

	c.loop.Run(ctx)

	for _, v := range c.viewers {
		v.destroyed = true
		if r, ok := v.frame.(Releaser); ok {
			if err := r.Release(); err != nil {
				log.Printf("viewer: releasing frame of %s: %v", v.tag, err)
			}
			v.frame = nil
		}
		v.life.Dispose()
	}
	c.viewers = make(map[string]*Viewer)

	stopEvents()
	<-c.events.Done()
	return nil
}

// Subscribe registers fn for every event. The returned function removes it.
func (c *Controller) Subscribe(fn Listener) func() {
	return c.subs.add(fn)
}

// ObserveViewers calls fn with each newly opened viewer.
func (c *Controller) ObserveViewers(fn func(State)) func() {
	return c.Subscribe(func(e Event) {
		if e.Kind == EventOpened {
			fn(e.Viewer)
		}
	})
}

// Open shows the document at path, reusing a viewer that already has it.
// A non-empty hash scrolls to that destination.
func (c *Controller) Open(path, hash string) (State, error) {
	abs, err := absPath(path)
	if err != nil {
		return State{}, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return State{}, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return State{}, fmt.Errorf("opening %s: %w", abs, err)
	}

	var st State
	err = c.call(func() error {
		if !c.cfg.MatchesDocument(abs) {
			return fmt.Errorf("%w: %s", ErrUnsupported, abs)
		}
		if v := c.byPath(abs); v != nil {
			if hash := normalizeHash(hash); hash != "" {
				c.navigate(v, protocol.SetDestination{Dest: hash})
			}
			if v.frame == nil {
				c.show(v)
			}
			st = v.state()
			return nil
		}
		v, err := c.open(c.newTag(), abs, hash)
		if err != nil {
			return err
		}
		c.show(v)
		st = v.state()
		return nil
	})
	return st, err
}

// Restore recreates saved viewers whose documents still exist. Records for
// missing documents are returned so the caller can forget them.
func (c *Controller) Restore(saved []Saved) (restored []State, missing []Saved, err error) {
	err = c.call(func() error {
		for _, s := range saved {
			if _, ok := c.viewers[s.Tag]; ok {
				continue
			}
			if c.byPath(s.Path) != nil {
				missing = append(missing, s)
				continue
			}
			if _, err := os.Stat(s.Path); err != nil {
				log.Printf("viewer: not restoring %s: %v", s.Path, err)
				missing = append(missing, s)
				continue
			}
			v, err := c.open(s.Tag, s.Path, s.Hash)
			if err != nil {
				log.Printf("viewer: restoring %s: %v", s.Path, err)
				missing = append(missing, s)
				continue
			}
			restored = append(restored, v.state())
		}
		return nil
	})
	return restored, missing, err
}

// List returns every open viewer, oldest first.
func (c *Controller) List() []State {
	var out []State
	_ = c.call(func() error {
		for _, v := range c.snapshot() {
			out = append(out, v.state())
		}
		return nil
	})
	return out
}

// FindByTag returns the viewer with the given tag.
func (c *Controller) FindByTag(tag string) (State, error) {
	var st State
	err := c.withViewer(tag, func(v *Viewer) error {
		st = v.state()
		return nil
	})
	return st, err
}

// FindByPath returns the viewer showing path.
func (c *Controller) FindByPath(path string) (State, error) {
	abs, err := absPath(path)
	if err != nil {
		return State{}, err
	}
	var st State
	err = c.call(func() error {
		v := c.byPath(abs)
		if v == nil {
			return fmt.Errorf("%w: %s", ErrUnknownViewer, abs)
		}
		st = v.state()
		return nil
	})
	return st, err
}

// ReloadAll fully reloads every viewer.
func (c *Controller) ReloadAll() error {
	return c.call(func() error {
		for _, v := range c.snapshot() {
			if v.destroyed {
				continue
			}
			c.reload(v)
		}
		return nil
	})
}

// Reload fully reloads one viewer. A reload already in flight absorbs
// further requests.
func (c *Controller) Reload(tag string) error {
	return c.withViewer(tag, func(v *Viewer) error {
		c.reload(v)
		return nil
	})
}

// Refresh reloads the document content keeping page and zoom. When the
// frame is not ready the refresh runs once it is.
func (c *Controller) Refresh(tag string) error {
	return c.withViewer(tag, func(v *Viewer) error {
		c.refresh(v)
		return nil
	})
}

// PauseAutoRefresh stops file changes from refreshing the viewer until
// ResumeAutoRefresh.
func (c *Controller) PauseAutoRefresh(tag string) error {
	return c.withViewer(tag, func(v *Viewer) error {
		c.pause(v)
		return nil
	})
}

// ResumeAutoRefresh undoes PauseAutoRefresh, refreshing if the document
// changed in between.
func (c *Controller) ResumeAutoRefresh(tag string) error {
	return c.withViewer(tag, func(v *Viewer) error {
		c.resume(v)
		return nil
	})
}

// OnBuildStart pauses every viewer built from file.
func (c *Controller) OnBuildStart(file string) ([]State, error) {
	return c.forBuild(file, c.pause)
}

// OnBuildFinish resumes every viewer built from file.
func (c *Controller) OnBuildFinish(file string) ([]State, error) {
	return c.forBuild(file, c.resume)
}

func (c *Controller) forBuild(file string, f func(*Viewer)) ([]State, error) {
	abs, err := absPath(file)
	if err != nil {
		return nil, err
	}
	var out []State
	err = c.call(func() error {
		for _, v := range c.snapshot() {
			if v.destroyed || !v.sameDocument(abs) {
				continue
			}
			f(v)
			out = append(out, v.state())
		}
		return nil
	})
	return out, err
}

// SetFile points an existing viewer at another file. The viewer keeps its
// tag and reloads.
func (c *Controller) SetFile(tag, path string) (State, error) {
	abs, err := absPath(path)
	if err != nil {
		return State{}, err
	}
	if _, err := os.Stat(abs); err != nil {
		return State{}, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	var st State
	err = c.withViewer(tag, func(v *Viewer) error {
		if !c.cfg.MatchesDocument(abs) {
			return fmt.Errorf("%w: %s", ErrUnsupported, abs)
		}
		if err := c.moveTo(v, abs); err != nil {
			return err
		}
		st = v.state()
		return nil
	})
	return st, err
}

// moveTo re-points v at path, keeping its identity, and reloads it.
func (c *Controller) moveTo(v *Viewer, path string) error {
	if path == v.path {
		return nil
	}
	old := v.path
	v.path = path
	if err := c.watchPath(v); err != nil {
		v.path = old
		return err
	}
	v.detector.Cancel()
	v.changedWhilePaused = false
	c.emit(EventTitle, v)
	c.reload(v)
	return nil
}

// ScrollToPosition scrolls the viewer to a page point. It reports whether
// the frame received it now rather than on its next ready.
func (c *Controller) ScrollToPosition(tag string, pos protocol.SyncPosition) (bool, error) {
	var sent bool
	err := c.withViewer(tag, func(v *Viewer) error {
		sent = c.navigate(v, protocol.SetPosition(pos))
		return nil
	})
	return sent, err
}

// ScrollToDestination scrolls the viewer to a named destination.
func (c *Controller) ScrollToDestination(tag, dest string) (bool, error) {
	var sent bool
	err := c.withViewer(tag, func(v *Viewer) error {
		sent = c.navigate(v, protocol.SetDestination{Dest: normalizeHash(dest)})
		return nil
	})
	return sent, err
}

// RequestCurrentDestination asks the frame which destinations are visible.
// The answer arrives as a position event.
func (c *Controller) RequestCurrentDestination(tag string) error {
	return c.withViewer(tag, func(v *Viewer) error {
		if !v.ready || v.frame == nil {
			return ErrNotReady
		}
		c.send(v, protocol.CurrentDest{})
		return nil
	})
}

// ForwardSync maps a source position into the document and scrolls the
// viewer there, opening the document first when needed. The mapper runs on
// the caller's goroutine.
func (c *Controller) ForwardSync(ctx context.Context, source string, row, column int, pdfPath string) (State, protocol.SyncPosition, error) {
	var pos protocol.SyncPosition
	if c.mapper == nil {
		return State{}, pos, ErrNoMapper
	}
	abs, err := absPath(pdfPath)
	if err != nil {
		return State{}, pos, err
	}
	st, err := c.FindByPath(abs)
	if errors.Is(err, ErrUnknownViewer) {
		st, err = c.Open(abs, "")
	}
	if err != nil {
		return State{}, pos, err
	}

	if timeout := c.timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	pos, err = c.mapper.Forward(ctx, synctex.ForwardRequest{Source: source, Row: row, Column: column, PDF: abs})
	if err != nil {
		c.host.Notify(Notice{
			Severity:  SeverityError,
			Title:     "Forward sync failed",
			Message:   fmt.Sprintf("%s:%d: %v", source, row, err),
			ViewerTag: st.Tag,
		})
		return st, pos, fmt.Errorf("forward sync %s:%d: %w", source, row, err)
	}

	err = c.withViewer(st.Tag, func(v *Viewer) error {
		c.navigate(v, protocol.SetPosition(pos))
		st = v.state()
		return nil
	})
	return st, pos, err
}

// Outline returns the viewer's outline. Until the frame reports one, the
// document is parsed directly.
func (c *Controller) Outline(tag string) ([]protocol.OutlineNode, error) {
	var (
		items  []protocol.OutlineNode
		cached bool
		path   string
	)
	err := c.withViewer(tag, func(v *Viewer) error {
		items, cached, path = v.outline, v.hasOut, v.path
		return nil
	})
	if err != nil || cached {
		return items, err
	}
	info, err := document.Inspect(path)
	if err != nil {
		return nil, fmt.Errorf("reading outline of %s: %w", path, err)
	}
	return info.Outline, nil
}

// Destroy closes a viewer and releases everything it holds.
func (c *Controller) Destroy(tag string) error {
	return c.withViewer(tag, func(v *Viewer) error {
		c.destroy(v)
		return nil
	})
}

// UpdateConfig applies a new configuration to the controller and every
// open viewer.
func (c *Controller) UpdateConfig(cfg *config.Config) error {
	next := *cfg
	c.mapperTimeout.Store(int64(next.MapperTimeout()))
	return c.call(func() error {
		prev := c.cfg
		c.cfg = next
		if prev.SynctexPath != next.SynctexPath {
			log.Printf("viewer: synctex_path change applies after restart")
		}
		for _, v := range c.snapshot() {
			v.detector.SetOptions(next.AutoDelay(), next.StabilityInterval(), next.StabilityMaxPolls)
			v.debug = next.Debug
			if prev.AutoRefresh != next.AutoRefresh {
				v.autoRefresh = next.AutoRefresh
				if !v.autoRefresh {
					v.detector.Cancel()
				}
			}
			if prev.InvertMode != next.InvertMode && v.ready {
				c.send(v, protocol.Invert{Initial: next.InvertMode})
			}
		}
		return nil
	})
}

// Attach connects a frame to a viewer, replacing any previous frame.
func (c *Controller) Attach(tag string, f Frame) (State, error) {
	var st State
	err := c.withViewer(tag, func(v *Viewer) error {
		if v.frame != nil && v.frame != f {
			if err := v.frame.Close(); err != nil {
				log.Printf("viewer: closing replaced frame of %s: %v", tag, err)
			}
		}
		v.frame = f
		v.ready = false
		c.debugf(v, "frame attached")
		st = v.state()
		return nil
	})
	return st, err
}

// Deliver hands a message from a frame to its viewer. Messages from frames
// that are no longer attached are dropped. Deliver does not wait.
func (c *Controller) Deliver(tag string, f Frame, msg protocol.FrameMessage) {
	c.loop.Post(func() {
		v, ok := c.viewers[tag]
		if !ok || v.destroyed || v.frame != f {
			return
		}
		c.handle(v, msg)
	})
}

// Detach disconnects a frame. The viewer stays open and a new frame may
// attach later.
func (c *Controller) Detach(tag string, f Frame) {
	c.loop.Post(func() {
		v, ok := c.viewers[tag]
		if !ok || v.frame != f {
			return
		}
		v.frame = nil
		v.ready = false
		c.debugf(v, "frame detached")
	})
}

// FileURL is the address a frame loads a viewer's document from.
func FileURL(tag string, revision int) string {
	return fmt.Sprintf("/files/%s?rev=%d", tag, revision)
}

func (c *Controller) open(tag, path, hash string) (*Viewer, error) {
	v := &Viewer{
		tag:         tag,
		path:        path,
		hash:        normalizeHash(hash),
		autoRefresh: c.cfg.AutoRefresh,
		debug:       c.cfg.Debug,
		openedAt:    time.Now().UTC(),
	}
	v.ctx, v.cancel = context.WithCancel(c.base)
	v.life.Add(v.cancel)

	v.detector = stability.New(func() string { return v.path }, c.sched, stability.Options{
		Settle:   c.cfg.AutoDelay(),
		Interval: c.cfg.StabilityInterval(),
		MaxPolls: c.cfg.StabilityMaxPolls,
		Stat:     c.stat,
		Validate: c.validator(),
		OnStable: func() { c.onStable(v) },
		OnGiveUp: func(err error) { c.onGiveUp(v, err) },
	})
	v.life.Add(v.detector.Stop)

	if err := c.watchPath(v); err != nil {
		v.life.Dispose()
		return nil, err
	}
	v.life.Add(func() { v.files.Dispose() })
	v.life.Add(func() {
		if v.frame == nil {
			return
		}
		if err := v.frame.Close(); err != nil {
			log.Printf("viewer: closing frame of %s: %v", v.tag, err)
		}
		v.frame = nil
	})

	c.viewers[tag] = v
	c.emit(EventOpened, v)
	return v, nil
}

// watchPath subscribes to v's current path and swaps out the previous
// subscription.
func (c *Controller) watchPath(v *Viewer) error {
	path := v.path
	sub, err := c.watchFile(path, func(e watch.Event) {
		c.loop.Post(func() { c.onFileEvent(v, path, e) })
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	files := &Disposer{}
	files.AddCloser("watch "+path, sub)

	old := v.files
	v.files = files
	if old != nil {
		old.Dispose()
	}
	return nil
}

func (c *Controller) validator() stability.ValidateFunc {
	if c.validate != nil {
		return c.validate
	}
	return func(path string) error {
		return document.Validate(path, c.cfg.StrictValidation)
	}
}

func (c *Controller) onFileEvent(v *Viewer, path string, e watch.Event) {
	if v.destroyed || path != v.path {
		return
	}
	switch e.Op {
	case watch.Changed:
		if !v.autoRefresh {
			c.debugf(v, "change ignored, auto refresh off")
			return
		}
		if v.buildPaused {
			v.changedWhilePaused = true
			c.debugf(v, "change deferred until the build finishes")
			return
		}
		v.detector.Restart()
	case watch.Renamed:
		log.Printf("viewer: %s was renamed to %s", v.path, e.NewPath)
		if err := c.moveTo(v, e.NewPath); err != nil {
			log.Printf("viewer: following rename of %s: %v", v.tag, err)
		}
	case watch.Deleted:
		if c.cfg.CloseDeleted {
			log.Printf("viewer: %s was deleted, closing %s", v.path, v.tag)
			c.destroy(v)
			return
		}
		log.Printf("viewer: %s was deleted", v.path)
	}
}

func (c *Controller) onStable(v *Viewer) {
	if v.destroyed {
		return
	}
	c.debugf(v, "document settled")
	c.refresh(v)
}

func (c *Controller) onGiveUp(v *Viewer, err error) {
	if v.destroyed {
		return
	}
	c.notify(v, SeverityWarning, "Document did not settle", fmt.Sprintf("%s: %v", v.title(), err))
}

func (c *Controller) refresh(v *Viewer) {
	if !v.ready || v.frame == nil {
		v.pendingRefresh = true
		c.debugf(v, "refresh deferred until ready")
		return
	}
	v.pendingRefresh = false
	v.ready = false
	v.revision++
	v.outline, v.hasOut = nil, false
	if c.send(v, protocol.Refresh{FilePath: FileURL(v.tag, v.revision)}) {
		c.emit(EventRefreshed, v)
	}
}

func (c *Controller) reload(v *Viewer) {
	if v.reloading {
		c.debugf(v, "reload already in flight")
		return
	}
	v.ready = false
	v.pendingRefresh = false
	v.revision++
	v.outline, v.hasOut = nil, false
	if v.frame == nil {
		return
	}
	if c.send(v, protocol.Reload{Hash: v.hash}) {
		v.reloading = true
		c.emit(EventReloaded, v)
	}
}

func (c *Controller) pause(v *Viewer) {
	if v.buildPaused {
		return
	}
	v.buildPaused = true
	if v.detector.Cancel() {
		v.changedWhilePaused = true
	}
	if v.pendingRefresh {
		v.pendingRefresh = false
		v.changedWhilePaused = true
	}
	c.debugf(v, "auto refresh paused")
}

func (c *Controller) resume(v *Viewer) {
	if !v.buildPaused {
		return
	}
	v.buildPaused = false
	c.debugf(v, "auto refresh resumed")
	if v.changedWhilePaused {
		v.changedWhilePaused = false
		c.refresh(v)
	}
}

// navigate sends msg now when the frame is ready, otherwise keeps it as
// the single pending navigation.
func (c *Controller) navigate(v *Viewer, msg protocol.HostMessage) bool {
	if v.ready && v.frame != nil {
		return c.send(v, msg)
	}
	v.pendingNav = msg
	return false
}

func (c *Controller) send(v *Viewer, msg protocol.HostMessage) bool {
	if v.frame == nil {
		return false
	}
	if err := v.frame.Send(msg); err != nil {
		log.Printf("viewer: sending %s to %s: %v", msg.Type(), v.tag, err)
		return false
	}
	c.debugf(v, "sent %s", msg.Type())
	return true
}

func (c *Controller) handle(v *Viewer, msg protocol.FrameMessage) {
	c.debugf(v, "received %s", msg.Type())
	switch m := msg.(type) {
	case protocol.Ready:
		c.onReady(v, m)
	case protocol.Click:
		click := m
		c.publish(Event{Kind: EventClick, Viewer: v.state(), Click: &click})
	case protocol.DblClick:
		page, x, y := m.InversePoint()
		c.inverse(v, synctex.InverseRequest{Page: page, X: x, Y: y, PDF: v.path})
	case protocol.ContextMenu:
		c.inverse(v, synctex.InverseRequest{Page: m.PageNo, X: m.X, Y: m.Y, PDF: v.path})
	case protocol.Keydown:
		c.keydown(v, m.Action)
	case protocol.Outline:
		v.outline, v.hasOut = m.Items, true
		c.publish(Event{Kind: EventOutline, Viewer: v.state(), Outline: m.Items})
	case protocol.CurrentOutlineItem:
		v.dests = m.Dests
		c.emit(EventPosition, v)
	case protocol.Destination:
		v.hash = normalizeHash(m.Hash)
		c.emit(EventHash, v)
	default:
		log.Printf("viewer: ignoring %s from %s", msg.Type(), v.tag)
	}
}

func (c *Controller) onReady(v *Viewer, m protocol.Ready) {
	v.ready = true
	v.reloading = false
	v.pages = m.Pages
	c.send(v, protocol.Invert{Initial: c.cfg.InvertMode})
	c.emit(EventReady, v)

	if v.pendingRefresh {
		c.refresh(v)
		return
	}
	if msg := v.pendingNav; msg != nil {
		v.pendingNav = nil
		c.send(v, msg)
	}
}

func (c *Controller) keydown(v *Viewer, action string) {
	switch action {
	case "":
		return
	case ActionToggleRefreshing:
		v.autoRefresh = !v.autoRefresh
		state := "disabled"
		if v.autoRefresh {
			state = "enabled"
		} else {
			v.detector.Cancel()
		}
		c.notify(v, SeverityInfo, "Auto refresh "+state, fmt.Sprintf("Auto refresh %s for %s", state, v.title()))
	default:
		ctx, tag := v.ctx, v.tag
		go func() {
			if err := c.host.DispatchCommand(ctx, action, tag); err != nil {
				log.Printf("viewer: command %s for %s: %v", action, tag, err)
			}
		}()
	}
}

// inverse runs the mapper off the loop and acts on its answer back on the
// loop, unless the viewer was destroyed in the meantime.
func (c *Controller) inverse(v *Viewer, req synctex.InverseRequest) {
	if c.mapper == nil {
		c.notify(v, SeverityError, "Inverse sync failed", ErrNoMapper.Error())
		return
	}
	ctx, timeout := v.ctx, c.timeout()
	go func() {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		loc, err := c.mapper.Inverse(ctx, req)
		c.loop.Post(func() { c.inverseDone(v, req, loc, err) })
	}()
}

func (c *Controller) inverseDone(v *Viewer, req synctex.InverseRequest, loc synctex.SourceLocation, err error) {
	if v.destroyed {
		return
	}
	if err != nil {
		c.notify(v, SeverityError, "Inverse sync failed", fmt.Sprintf("page %d: %v", req.Page, err))
		return
	}
	if _, err := os.Stat(loc.SourcePath); err != nil {
		c.notify(v, SeverityWarning, "Source file not found", loc.SourcePath)
		return
	}
	ctx := v.ctx
	go func() {
		if err := c.host.OpenDocument(ctx, loc.SourcePath, loc.Line, loc.Column); err != nil {
			log.Printf("viewer: opening %s:%d: %v", loc.SourcePath, loc.Line+1, err)
		}
	}()
}

func (c *Controller) destroy(v *Viewer) {
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.ready = false
	st := v.state()
	v.life.Dispose()
	delete(c.viewers, v.tag)
	c.publish(Event{Kind: EventDestroyed, Viewer: st})
}

func (c *Controller) show(v *Viewer) {
	tag, hash := v.tag, v.hash
	go func() {
		if err := c.host.ShowViewer(tag, hash); err != nil {
			log.Printf("viewer: showing %s: %v", tag, err)
		}
	}()
}

func (c *Controller) notify(v *Viewer, sev Severity, title, msg string) {
	log.Printf("viewer: %s: %s", title, msg)
	c.host.Notify(Notice{Severity: sev, Title: title, Message: msg, ViewerTag: v.tag})
}

func (c *Controller) emit(kind EventKind, v *Viewer) {
	c.publish(Event{Kind: kind, Viewer: v.state()})
}

func (c *Controller) publish(e Event) {
	c.events.Post(func() {
		for _, fn := range c.subs.snapshot() {
			fn(e)
		}
	})
}

func (c *Controller) debugf(v *Viewer, format string, args ...any) {
	if !v.debug {
		return
	}
	log.Printf("viewer: %s: "+format, append([]any{v.tag}, args...)...)
}

func (c *Controller) timeout() time.Duration {
	return time.Duration(c.mapperTimeout.Load())
}

// byPath finds the viewer showing abs. Loop only.
func (c *Controller) byPath(abs string) *Viewer {
	for _, v := range c.viewers {
		if v.path == abs {
			return v
		}
	}
	return nil
}

// snapshot returns the open viewers, oldest first. Callers iterate the copy
// so viewers may be destroyed along the way.
func (c *Controller) snapshot() []*Viewer {
	out := make([]*Viewer, 0, len(c.viewers))
	for _, v := range c.viewers {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].openedAt.Equal(out[j].openedAt) {
			return out[i].tag < out[j].tag
		}
		return out[i].openedAt.Before(out[j].openedAt)
	})
	return out
}

func (c *Controller) call(f func() error) error {
	var err error
	if cerr := c.loop.Call(func() { err = f() }); cerr != nil {
		return cerr
	}
	return err
}

func (c *Controller) withViewer(tag string, f func(*Viewer) error) error {
	return c.call(func() error {
		v, ok := c.viewers[tag]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownViewer, tag)
		}
		return f(v)
	})
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

type nopHost struct{}

func (nopHost) OpenDocument(context.Context, string, int, int) error  { return nil }
func (nopHost) DispatchCommand(context.Context, string, string) error { return nil }
func (nopHost) ShowViewer(string, string) error                       { return nil }
func (nopHost) Notify(Notice)                                         {}
