package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pdfview/pdfview/internal/protocol"
)

func newRouter(h *harness) chi.Router {
	r := chi.NewRouter()
	RegisterRoutes(r, h.c)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOpenAndListViewers(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)
	pdf := h.file("report.pdf")

	w := doJSON(t, r, "POST", "/api/viewers", OpenRequest{Path: pdf, Hash: "#intro"})
	if w.Code != http.StatusOK {
		t.Fatalf("open: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var st State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Path != pdf || st.Hash != "intro" {
		t.Errorf("state = %+v", st)
	}

	w = doJSON(t, r, "GET", "/api/viewers", nil)
	var list []State
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].Tag != st.Tag {
		t.Errorf("list = %+v", list)
	}

	w = doJSON(t, r, "GET", "/api/viewers/"+st.Tag, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", w.Code)
	}
}

func TestOpenErrorStatus(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty path", OpenRequest{}, http.StatusBadRequest},
		{"missing file", OpenRequest{Path: filepath.Join(h.dir, "nope.pdf")}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, "POST", "/api/viewers", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestUnknownViewerIs404(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)

	for _, path := range []string{"/api/viewers/nope/refresh", "/api/viewers/nope/reload", "/api/viewers/nope/pause"} {
		if w := doJSON(t, r, "POST", path, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
	if w := doJSON(t, r, "DELETE", "/api/viewers/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete: expected 404, got %d", w.Code)
	}
}

func TestNavigationEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)
	st, f := h.openReady("report.pdf")

	w := doJSON(t, r, "POST", "/api/viewers/"+st.Tag+"/position", protocol.SyncPosition{Page: 1, X: 10, Y: 20})
	if w.Code != http.StatusOK {
		t.Fatalf("position: expected 200, got %d", w.Code)
	}
	var nav NavigateResponse
	json.Unmarshal(w.Body.Bytes(), &nav)
	if !nav.Sent {
		t.Error("position not sent to a ready frame")
	}

	w = doJSON(t, r, "POST", "/api/viewers/"+st.Tag+"/destination", DestinationRequest{Dest: "sec.1"})
	if w.Code != http.StatusOK {
		t.Fatalf("destination: expected 200, got %d", w.Code)
	}
	if f.count(protocol.TypeSetPosition) != 1 || f.count(protocol.TypeSetDestination) != 1 {
		t.Errorf("frame messages = %v", f.types())
	}

	if w := doJSON(t, r, "POST", "/api/viewers/"+st.Tag+"/position", protocol.SyncPosition{Page: -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative page: expected 400, got %d", w.Code)
	}
}

func TestCurrentDestNotReadyIsConflict(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)
	st := h.open("report.pdf")

	if w := doJSON(t, r, "POST", "/api/viewers/"+st.Tag+"/currentdest", nil); w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestBuildEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)
	st := h.open("report.pdf")
	source := filepath.Join(h.dir, "report.tex")

	w := doJSON(t, r, "POST", "/api/build/start", FileRequest{Path: source})
	var paused []State
	json.Unmarshal(w.Body.Bytes(), &paused)
	if len(paused) != 1 || paused[0].Tag != st.Tag || !paused[0].BuildPaused {
		t.Fatalf("build start = %s", w.Body.String())
	}

	w = doJSON(t, r, "POST", "/api/build/finish", FileRequest{Path: source})
	var resumed []State
	json.Unmarshal(w.Body.Bytes(), &resumed)
	if len(resumed) != 1 || resumed[0].BuildPaused {
		t.Errorf("build finish = %s", w.Body.String())
	}

	if w := doJSON(t, r, "POST", "/api/build/start", FileRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty path: expected 400, got %d", w.Code)
	}
}

func TestForwardSyncEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)
	st, _ := h.openReady("report.pdf")
	h.setRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Page:2\nx:50\ny:60\n"), nil
	})

	w := doJSON(t, r, "POST", "/api/sync/forward", SyncRequest{Source: filepath.Join(h.dir, "report.tex"), Line: 4, PDF: st.Path})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp SyncResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Position != (protocol.SyncPosition{Page: 1, X: 50, Y: 60}) {
		t.Errorf("position = %+v", resp.Position)
	}

	h.setRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	})
	w = doJSON(t, r, "POST", "/api/sync/forward", SyncRequest{Source: "a.tex", Line: 1, PDF: st.Path})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("no mapping: expected 422, got %d", w.Code)
	}

	w = doJSON(t, r, "POST", "/api/sync/forward", SyncRequest{Source: "a.tex", PDF: st.Path})
	if w.Code != http.StatusBadRequest {
		t.Errorf("line 0: expected 400, got %d", w.Code)
	}
}

func TestDestroyEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	r := newRouter(h)
	st := h.open("report.pdf")

	if w := doJSON(t, r, "DELETE", "/api/viewers/"+st.Tag, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(h.c.List()) != 0 {
		t.Error("viewer still listed")
	}
}

func TestEventStream(t *testing.T) {
	h := newHarness(t, nil)
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	// Subscription happens after the upgrade; wait until it is in place.
	deadline := time.Now().Add(5 * time.Second)
	for len(h.c.subs.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	st := h.open("report.pdf")
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read: %v", err)
	}
	if e.Kind != EventOpened || e.Viewer.Tag != st.Tag {
		t.Errorf("event = %+v", e)
	}
}
