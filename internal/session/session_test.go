package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfview/pdfview/internal/config"
	"github.com/pdfview/pdfview/internal/db"
	"github.com/pdfview/pdfview/internal/viewer"
	"github.com/pdfview/pdfview/internal/watch"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func runController(t *testing.T) *viewer.Controller {
	t.Helper()
	c := viewer.NewController(viewer.Options{
		Config: config.DefaultConfig(),
		Watch: func(string, watch.Handler) (io.Closer, error) {
			return nopCloser{}, nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func writePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSaveAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	opened := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st := viewer.State{Tag: "v1", Path: "/docs/a.pdf", Hash: "page=2", AutoRefresh: true, OpenedAt: opened}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.Hash = "page=9"
	st.AutoRefresh = false
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	r, err := store.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Path != "/docs/a.pdf" || r.Hash != "page=9" || r.AutoRefresh {
		t.Errorf("record = %+v", r)
	}
	if !r.OpenedAt.Equal(opened) {
		t.Errorf("OpenedAt = %v, want %v", r.OpenedAt, opened)
	}

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func TestListOrderAndDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, tag := range []string{"c", "a", "b"} {
		st := viewer.State{Tag: tag, Path: "/" + tag + ".pdf", OpenedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Save(ctx, st); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Tag != "c" || list[1].Tag != "b" {
		t.Errorf("list = %+v", list)
	}
}

func TestTrackFollowsViewers(t *testing.T) {
	store := setupStore(t)
	c := runController(t)
	stop := Track(c, store)
	defer stop()

	path := writePDF(t, t.TempDir(), "report.pdf")
	st, err := c.Open(path, "intro")
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		r, err := store.Get(context.Background(), st.Tag)
		return err == nil && r.Hash == "intro"
	})

	if err := c.Destroy(st.Tag); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, err := store.Get(context.Background(), st.Tag)
		return errors.Is(err, ErrNotFound)
	})
}

func TestRestoreForgetsMissing(t *testing.T) {
	store := setupStore(t)
	c := runController(t)
	ctx := context.Background()
	dir := t.TempDir()
	present := writePDF(t, dir, "report.pdf")

	store.Save(ctx, viewer.State{Tag: "keep", Path: present, Hash: "sec.1"})
	store.Save(ctx, viewer.State{Tag: "gone", Path: filepath.Join(dir, "gone.pdf")})

	restored, err := Restore(ctx, c, store)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(restored) != 1 || restored[0].Tag != "keep" {
		t.Fatalf("restored = %+v", restored)
	}
	if _, err := c.FindByTag("keep"); err != nil {
		t.Errorf("restored viewer missing: %v", err)
	}
	if _, err := store.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing document still saved: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
