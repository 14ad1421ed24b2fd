package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collect(t *testing.T, path string) (*Subscription, <-chan Event) {
	t.Helper()
	events := make(chan Event, 64)
	sub, err := File(path, func(e Event) {
		select {
		case events <- e:
		default:
		}
	})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return sub, events
}

func waitFor(t *testing.T, events <-chan Event, op Op) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Op == op {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", op)
			return Event{}
		}
	}
}

func TestWriteIsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, events := collect(t, path)

	if err := os.WriteFile(path, []byte("ab"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := waitFor(t, events, Changed)
	if e.Path != path {
		t.Errorf("Path = %q, want %q", e.Path, path)
	}
}

func TestSiblingFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, events := collect(t, path)

	if err := os.WriteFile(filepath.Join(dir, "report.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAtomicReplaceIsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, events := collect(t, path)

	tmp := filepath.Join(dir, "report.pdf.tmp")
	if err := os.WriteFile(tmp, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, Changed)
}

func TestRemoveIsDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, events := collect(t, path)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, Deleted)
}

func TestRenameInDirectoryIsRenamed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, events := collect(t, path)

	renamed := filepath.Join(dir, "renamed.pdf")
	if err := os.Rename(path, renamed); err != nil {
		t.Fatal(err)
	}
	e := waitFor(t, events, Renamed)
	if e.Path != path || e.NewPath != renamed {
		t.Errorf("event = %+v, want %s -> %s", e, path, renamed)
	}
	select {
	case e := <-events:
		if e.Op == Deleted {
			t.Errorf("rename also reported as delete: %+v", e)
		}
	case <-time.After(2 * RenameWindow):
	}
}

func TestRenameOutOfDirectoryIsDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, events := collect(t, path)

	if err := os.Rename(path, filepath.Join(t.TempDir(), "report.pdf")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, Deleted)
}

func TestSiblingCreatedAfterRenameIsNotFollowed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, events := collect(t, path)

	if err := os.Rename(path, filepath.Join(t.TempDir(), "elsewhere.pdf")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := waitFor(t, events, Deleted)
	if e.NewPath != "" {
		t.Errorf("NewPath = %q, want empty", e.NewPath)
	}
}

func TestNoEventsAfterClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub, events := collect(t, path)
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case e := <-events:
		t.Fatalf("event after Close: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMissingDirectory(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope", "report.pdf"), func(Event) {}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
