// Package frame serves the browser page that renders a viewer's document
// and connects it to the daemon.
package frame

import (
	_ "embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/pdfview/pdfview/internal/bridge"
	"github.com/pdfview/pdfview/internal/protocol"
	"github.com/pdfview/pdfview/internal/viewer"
)

//go:embed viewer.html
var viewerHTML string

//go:embed bridge.js
var bridgeJS []byte

var pageTemplate = template.Must(template.New("viewer").Parse(viewerHTML))

// DefaultKeymap binds key combinations inside the page to actions.
var DefaultKeymap = map[string]string{
	"Ctrl+Alt+R": viewer.ActionToggleRefreshing,
	"Ctrl+Alt+B": "build",
	"Ctrl+Alt+S": "sync",
}

// Options configures the frame routes.
type Options struct {
	PDFJSURL string
	Keymap   map[string]string
}

// pageData is rendered into the page; Frame is read by bridge.js.
type pageData struct {
	Title    string
	PDFJSURL string
	Frame    frameConfig
}

type frameConfig struct {
	Tag      string            `json:"tag"`
	FileURL  string            `json:"fileURL"`
	Hash     string            `json:"hash,omitempty"`
	PDFJSURL string            `json:"pdfjsURL"`
	Keymap   map[string]string `json:"keymap"`
}

// RegisterRoutes mounts the page, document and bridge endpoints.
func RegisterRoutes(r chi.Router, c *viewer.Controller, opts Options) {
	if opts.Keymap == nil {
		opts.Keymap = DefaultKeymap
	}
	r.Get("/frame/bridge.js", serveScript)
	r.Get("/view/{tag}", handlePage(c, opts))
	r.Get("/files/{tag}", handleFile(c))
	r.Get("/ws/{tag}", handleSocket(c))
}

func serveScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Write(bridgeJS)
}

func handlePage(c *viewer.Controller, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := c.FindByTag(chi.URLParam(r, "tag"))
		if err != nil {
			writeError(w, err)
			return
		}
		data := pageData{
			Title:    st.Title,
			PDFJSURL: opts.PDFJSURL,
			Frame: frameConfig{
				Tag:      st.Tag,
				FileURL:  viewer.FileURL(st.Tag, 0),
				Hash:     st.Hash,
				PDFJSURL: opts.PDFJSURL,
				Keymap:   opts.Keymap,
			},
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := pageTemplate.Execute(w, data); err != nil {
			log.Printf("frame: rendering page for %s: %v", st.Tag, err)
		}
	}
}

// handleFile serves the document bytes. Responses are never cached so a
// refresh always sees the rebuilt file.
func handleFile(c *viewer.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := c.FindByTag(chi.URLParam(r, "tag"))
		if err != nil {
			writeError(w, err)
			return
		}
		f, err := os.Open(st.Path)
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, "document not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Cache-Control", "no-store")
		http.ServeContent(w, r, "", info.ModTime(), f)
	}
}

// handleSocket attaches a frame to its viewer for the life of the
// connection.
func handleSocket(c *viewer.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag := chi.URLParam(r, "tag")
		if _, err := c.FindByTag(tag); err != nil {
			writeError(w, err)
			return
		}
		conn, err := bridge.Upgrade(w, r, "frame "+tag)
		if err != nil {
			log.Printf("frame: websocket upgrade: %v", err)
			return
		}
		if _, err := c.Attach(tag, conn); err != nil {
			log.Printf("frame: attaching %s: %v", tag, err)
			conn.Close()
			return
		}

		err = conn.ReadLoop(func(m protocol.FrameMessage) {
			c.Deliver(tag, conn, m)
		})
		if err != nil {
			log.Printf("frame: %s: %v", tag, err)
		}
		c.Detach(tag, conn)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, viewer.ErrUnknownViewer):
		http.Error(w, "no such viewer", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
