package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pdfview/pdfview/internal/client"
	"github.com/pdfview/pdfview/internal/protocol"
	"github.com/pdfview/pdfview/internal/viewer"
)

// fakeDaemon serves a fixed set of viewers and records forward sync requests.
type fakeDaemon struct {
	viewers []viewer.State
	synced  []viewer.SyncRequest
	reloads int
}

func (d *fakeDaemon) start(t *testing.T) *client.Client {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/viewers", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(d.viewers)
	})
	r.Post("/api/viewers", func(w http.ResponseWriter, r *http.Request) {
		var req viewer.OpenRequest
		json.NewDecoder(r.Body).Decode(&req)
		st := viewer.State{Tag: "v9", Path: req.Path, Hash: req.Hash}
		d.viewers = append(d.viewers, st)
		json.NewEncoder(w).Encode(st)
	})
	r.Post("/api/viewers/reload-all", func(w http.ResponseWriter, r *http.Request) {
		d.reloads++
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/viewers/{tag}/outline", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "tag") != "v1" {
			http.Error(w, "viewer: unknown viewer", http.StatusNotFound)
			return
		}
		page := 2
		json.NewEncoder(w).Encode([]protocol.OutlineNode{{Title: "Introduction", Page: &page}})
	})
	r.Post("/api/viewers/{tag}/destination", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(viewer.NavigateResponse{Sent: chi.URLParam(r, "tag") == "v1"})
	})
	r.Post("/api/sync/forward", func(w http.ResponseWriter, r *http.Request) {
		var req viewer.SyncRequest
		json.NewDecoder(r.Body).Decode(&req)
		d.synced = append(d.synced, req)
		json.NewEncoder(w).Encode(viewer.SyncResponse{
			Viewer:   viewer.State{Tag: "v1", Path: req.PDF},
			Position: protocol.SyncPosition{Page: 1, X: 72, Y: 600},
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return client.New(srv.URL)
}

func extractText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func callTool(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"list_viewers", listViewersTool, "list_viewers"},
		{"open_document", openDocumentTool, "open_document"},
		{"forward_sync", forwardSyncTool, "forward_sync"},
		{"get_outline", getOutlineTool, "get_outline"},
		{"scroll_to_destination", scrollToDestinationTool, "scroll_to_destination"},
		{"reload_all", reloadAllTool, "reload_all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	c := client.New("http://127.0.0.1:1")
	srv := NewServer(c)
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
	if srv.client != c {
		t.Error("client not set correctly")
	}
}

func TestHandleListAndOpen(t *testing.T) {
	d := &fakeDaemon{}
	srv := NewServer(d.start(t))
	ctx := context.Background()

	result, err := srv.handleListViewers(ctx, callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := extractText(result); !strings.Contains(got, "No documents") {
		t.Errorf("empty list text = %q", got)
	}

	result, err = srv.handleOpenDocument(ctx, callTool(map[string]any{"path": "/docs/a.pdf", "hash": "intro"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractText(result))
	}
	var st viewer.State
	if err := json.Unmarshal([]byte(extractText(result)), &st); err != nil {
		t.Fatalf("result is not a viewer state: %v", err)
	}
	if st.Path != "/docs/a.pdf" || st.Hash != "intro" {
		t.Errorf("state = %+v", st)
	}

	result, _ = srv.handleListViewers(ctx, callTool(nil))
	if !strings.Contains(extractText(result), `"tag": "v9"`) {
		t.Errorf("list = %s", extractText(result))
	}

	result, _ = srv.handleOpenDocument(ctx, callTool(map[string]any{}))
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleForwardSync(t *testing.T) {
	d := &fakeDaemon{}
	srv := NewServer(d.start(t))
	ctx := context.Background()

	result, err := srv.handleForwardSync(ctx, callTool(map[string]any{
		"source": "/docs/a.tex",
		"line":   float64(12),
		"pdf":    "/docs/a.pdf",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractText(result))
	}
	if len(d.synced) != 1 {
		t.Fatalf("synced = %+v", d.synced)
	}
	if got := d.synced[0]; got.Line != 12 || got.Column != 1 || got.Source != "/docs/a.tex" {
		t.Errorf("request = %+v", got)
	}

	result, _ = srv.handleForwardSync(ctx, callTool(map[string]any{
		"source": "/docs/a.tex",
		"line":   float64(0),
		"pdf":    "/docs/a.pdf",
	}))
	if !result.IsError {
		t.Error("expected error for line 0")
	}
}

func TestHandleOutlineAndDestination(t *testing.T) {
	d := &fakeDaemon{}
	srv := NewServer(d.start(t))
	ctx := context.Background()

	result, _ := srv.handleGetOutline(ctx, callTool(map[string]any{"tag": "v1"}))
	if result.IsError || !strings.Contains(extractText(result), "Introduction") {
		t.Errorf("outline = %s", extractText(result))
	}

	result, _ = srv.handleGetOutline(ctx, callTool(map[string]any{"tag": "nope"}))
	if !result.IsError || !strings.Contains(extractText(result), "404") {
		t.Errorf("unknown tag result = %s", extractText(result))
	}

	result, _ = srv.handleScrollToDestination(ctx, callTool(map[string]any{"tag": "v1", "dest": "sec.2"}))
	if got := extractText(result); got != "Scrolled v1 to sec.2." {
		t.Errorf("scroll text = %q", got)
	}
	result, _ = srv.handleScrollToDestination(ctx, callTool(map[string]any{"tag": "v2", "dest": "sec.2"}))
	if !strings.Contains(extractText(result), "still loading") {
		t.Errorf("queued scroll text = %q", extractText(result))
	}

	result, _ = srv.handleReloadAll(ctx, callTool(nil))
	if result.IsError || d.reloads != 1 {
		t.Errorf("reload_all: %s, reloads = %d", extractText(result), d.reloads)
	}
}

func TestDaemonUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	srv := NewServer(client.New(url))
	result, err := srv.handleListViewers(context.Background(), callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError || !strings.Contains(extractText(result), "pdfview server") {
		t.Errorf("result = %s", extractText(result))
	}
}
