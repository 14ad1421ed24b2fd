// Package host connects the viewer controller to the desktop: the user's
// editor, the browser and the notification channel.
package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdfview/pdfview/internal/config"
	"github.com/pdfview/pdfview/internal/notifications"
	"github.com/pdfview/pdfview/internal/viewer"
)

var (
	// ErrNoEditor is returned when no editor command is configured.
	ErrNoEditor = errors.New("host: no editor_command configured")
	// ErrUnknownCommand is returned for actions missing from commands.
	ErrUnknownCommand = errors.New("host: unknown command")
)

const notifyTimeout = 15 * time.Second

// RunFunc starts an external program.
type RunFunc func(ctx context.Context, name string, args ...string) error

// LookupFunc resolves a viewer tag.
type LookupFunc func(tag string) (viewer.State, error)

// Host implements viewer.Host.
type Host struct {
	mu     sync.RWMutex
	cfg    config.Config
	lookup LookupFunc

	dispatcher *notifications.Dispatcher
	run        RunFunc
	openURL    func(url string) error
}

// Option customises a Host.
type Option func(*Host)

// WithRunner replaces how external programs are started.
func WithRunner(run RunFunc) Option {
	return func(h *Host) { h.run = run }
}

// WithBrowser replaces how viewer pages are opened.
func WithBrowser(open func(url string) error) Option {
	return func(h *Host) { h.openURL = open }
}

// New returns a Host. With a nil dispatcher notices are dropped.
func New(cfg *config.Config, dispatcher *notifications.Dispatcher, opts ...Option) *Host {
	h := &Host{
		cfg:        *cfg,
		dispatcher: dispatcher,
		run:        startProcess,
		openURL:    openBrowser,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetConfig swaps in a reloaded configuration.
func (h *Host) SetConfig(cfg *config.Config) {
	h.mu.Lock()
	h.cfg = *cfg
	h.mu.Unlock()
}

// SetLookup lets commands resolve the viewer they were dispatched for.
func (h *Host) SetLookup(fn LookupFunc) {
	h.mu.Lock()
	h.lookup = fn
	h.mu.Unlock()
}

func (h *Host) config() config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// OpenDocument runs the editor command for a zero-based line. A column of
// zero means unknown and opens at the start of the line.
func (h *Host) OpenDocument(ctx context.Context, path string, line, column int) error {
	cfg := h.config()
	if cfg.EditorCommand == "" {
		return ErrNoEditor
	}
	if column < 1 {
		column = 1
	}
	argv, err := expand(cfg.EditorCommand, map[string]string{
		"file":   path,
		"line":   strconv.Itoa(line + 1),
		"column": strconv.Itoa(column),
	})
	if err != nil {
		return fmt.Errorf("editor_command: %w", err)
	}
	log.Printf("host: opening %s:%d", path, line+1)
	return h.run(ctx, argv[0], argv[1:]...)
}

// DispatchCommand runs the command line configured for name.
func (h *Host) DispatchCommand(ctx context.Context, name, tag string) error {
	cfg := h.config()
	cmdline, ok := cfg.Commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	vars := map[string]string{"tag": tag}
	h.mu.RLock()
	lookup := h.lookup
	h.mu.RUnlock()
	if lookup != nil {
		if st, err := lookup(tag); err == nil {
			vars["file"] = st.Path
		}
	}

	argv, err := expand(cmdline, vars)
	if err != nil {
		return fmt.Errorf("command %s: %w", name, err)
	}
	log.Printf("host: running %s for %s", name, tag)
	return h.run(ctx, argv[0], argv[1:]...)
}

// ShowViewer opens the viewer page in the browser unless open_browser is
// off, in which case the page URL is only logged.
func (h *Host) ShowViewer(tag, hash string) error {
	cfg := h.config()
	url := cfg.BaseURL() + "/view/" + tag
	if hash != "" {
		url += "#" + hash
	}
	if !cfg.Server.OpenBrowser {
		log.Printf("host: viewer %s at %s", tag, url)
		return nil
	}
	return h.openURL(url)
}

// Notify hands n to the dispatcher without blocking.
func (h *Host) Notify(n viewer.Notice) {
	if h.dispatcher == nil {
		return
	}
	note := notifications.Notification{
		Type:      noticeType(n),
		Severity:  notifications.Severity(n.Severity),
		Title:     n.Title,
		Message:   n.Message,
		ViewerTag: n.ViewerTag,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if _, err := h.dispatcher.Dispatch(ctx, note); err != nil {
			log.Printf("host: notification: %v", err)
		}
	}()
}

func noticeType(n viewer.Notice) notifications.NotificationType {
	if strings.Contains(strings.ToLower(n.Title), "sync") {
		return notifications.TypeSync
	}
	return notifications.TypeViewer
}

// startProcess starts name detached from the daemon and reaps it in the
// background.
func startProcess(ctx context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("host: %s: %v", name, err)
		}
	}()
	return nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
