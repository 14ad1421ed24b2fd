package viewer

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pdfview/pdfview/internal/protocol"
	"github.com/pdfview/pdfview/internal/synctex"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OpenRequest is the body of POST /api/viewers.
type OpenRequest struct {
	Path string `json:"path"`
	Hash string `json:"hash,omitempty"`
}

// FileRequest names a file, for build notifications and SetFile.
type FileRequest struct {
	Path string `json:"path"`
}

// DestinationRequest is the body of POST /api/viewers/{tag}/destination.
type DestinationRequest struct {
	Dest string `json:"dest"`
}

// SyncRequest is the body of POST /api/sync/forward. Line and Column are
// one-based.
type SyncRequest struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
	PDF    string `json:"pdf"`
}

// SyncResponse reports where a forward sync landed.
type SyncResponse struct {
	Viewer   State                 `json:"viewer"`
	Position protocol.SyncPosition `json:"position"`
}

// NavigateResponse reports whether a navigation reached the frame now or
// was queued until it is ready.
type NavigateResponse struct {
	Sent bool `json:"sent"`
}

// RegisterRoutes mounts viewer endpoints under /api on the given router.
func RegisterRoutes(r chi.Router, c *Controller) {
	r.Route("/api/viewers", func(r chi.Router) {
		r.Get("/", handleList(c))
		r.Post("/", handleOpen(c))
		r.Post("/reload-all", handleReloadAll(c))
		r.Route("/{tag}", func(r chi.Router) {
			r.Get("/", handleGet(c))
			r.Delete("/", handleDestroy(c))
			r.Get("/outline", handleOutline(c))
			r.Post("/refresh", handleAction(c.Refresh))
			r.Post("/reload", handleAction(c.Reload))
			r.Post("/pause", handleAction(c.PauseAutoRefresh))
			r.Post("/resume", handleAction(c.ResumeAutoRefresh))
			r.Post("/currentdest", handleAction(c.RequestCurrentDestination))
			r.Post("/position", handlePosition(c))
			r.Post("/destination", handleDestination(c))
			r.Post("/file", handleSetFile(c))
		})
	})
	r.Post("/api/build/start", handleBuild(c.OnBuildStart))
	r.Post("/api/build/finish", handleBuild(c.OnBuildFinish))
	r.Post("/api/sync/forward", handleForwardSync(c))
	r.Get("/api/events", handleEvents(c))
}

func handleList(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewers := c.List()
		if viewers == nil {
			viewers = []State{}
		}
		writeJSON(w, http.StatusOK, viewers)
	}
}

func handleOpen(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}

		st, err := c.Open(req.Path, req.Hash)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleReloadAll(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.ReloadAll(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleGet(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := c.FindByTag(chi.URLParam(r, "tag"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleDestroy(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Destroy(chi.URLParam(r, "tag")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleOutline(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := c.Outline(chi.URLParam(r, "tag"))
		if err != nil {
			writeError(w, err)
			return
		}
		if items == nil {
			items = []protocol.OutlineNode{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleAction(action func(tag string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := action(chi.URLParam(r, "tag")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handlePosition(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pos protocol.SyncPosition
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if pos.Page < 0 {
			http.Error(w, "page must be non-negative", http.StatusBadRequest)
			return
		}
		sent, err := c.ScrollToPosition(chi.URLParam(r, "tag"), pos)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NavigateResponse{Sent: sent})
	}
}

func handleDestination(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DestinationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dest == "" {
			http.Error(w, "dest is required", http.StatusBadRequest)
			return
		}
		sent, err := c.ScrollToDestination(chi.URLParam(r, "tag"), req.Dest)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NavigateResponse{Sent: sent})
	}
}

func handleSetFile(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}
		st, err := c.SetFile(chi.URLParam(r, "tag"), req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleBuild(f func(file string) ([]State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}
		viewers, err := f(req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		if viewers == nil {
			viewers = []State{}
		}
		writeJSON(w, http.StatusOK, viewers)
	}
}

func handleForwardSync(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Source == "" || req.PDF == "" {
			http.Error(w, "source and pdf are required", http.StatusBadRequest)
			return
		}
		if req.Line < 1 {
			http.Error(w, "line must be at least 1", http.StatusBadRequest)
			return
		}

		st, pos, err := c.ForwardSync(r.Context(), req.Source, req.Line, req.Column, req.PDF)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SyncResponse{Viewer: st, Position: pos})
	}
}

// handleEvents streams controller events to a WebSocket client. A client
// that falls behind is disconnected.
func handleEvents(c *Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("viewer: events upgrade: %v", err)
			return
		}
		defer conn.Close()

		events := make(chan Event, 64)
		overflow := make(chan struct{})
		var dropped bool
		unsubscribe := c.Subscribe(func(e Event) {
			if dropped {
				return
			}
			select {
			case events <- e:
			default:
				dropped = true
				close(overflow)
			}
		})
		defer unsubscribe()

		// The client only ever closes; reading surfaces that.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case e := <-events:
				conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(e); err != nil {
					log.Printf("viewer: events write: %v", err)
					return
				}
			case <-overflow:
				log.Printf("viewer: events client too slow, disconnecting")
				return
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownViewer):
		status = http.StatusNotFound
	case errors.Is(err, ErrUnsupported):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, synctex.ErrNoMapping):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoMapper), errors.Is(err, ErrClosed):
		status = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
