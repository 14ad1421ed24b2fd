package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdfview/pdfview/internal/client"
	"github.com/pdfview/pdfview/internal/progress"
	"github.com/pdfview/pdfview/internal/viewer"
)

func TestWaitReady(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		json.NewEncoder(w).Encode([]viewer.State{
			{Tag: "v1", Path: "/docs/a.pdf", Ready: true},
			{Tag: "v2", Path: "/docs/b.pdf", Ready: n >= 3},
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	want := []viewer.State{{Tag: "v1", Path: "/docs/a.pdf"}, {Tag: "v2", Path: "/docs/b.pdf"}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := waitReady(ctx, client.New(srv.URL), want, &progress.LineReporter{W: &out}); err != nil {
		t.Fatalf("waitReady: %v", err)
	}
	if polls.Load() < 3 {
		t.Errorf("polls = %d, want at least 3", polls.Load())
	}
	if !strings.Contains(out.String(), "[2/2] b.pdf") {
		t.Errorf("output = %q", out.String())
	}
}

func TestWaitReadyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]viewer.State{{Tag: "v1"}})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := waitReady(ctx, client.New(srv.URL), []viewer.State{{Tag: "v1"}}, &progress.LineReporter{W: &bytes.Buffer{}})
	if err == nil {
		t.Fatal("expected timeout")
	}
}
