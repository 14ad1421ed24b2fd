package stability

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfview/pdfview/internal/clock"
)

const (
	settle   = 100 * time.Millisecond
	interval = 50 * time.Millisecond
)

// script feeds the detector a fixed sequence of sizes, repeating the last.
type script struct {
	sizes []int64
	i     int
	valid func(call int) bool
	vcall int
}

func (s *script) stat(string) (int64, error) {
	size := s.sizes[len(s.sizes)-1]
	if s.i < len(s.sizes) {
		size = s.sizes[s.i]
	}
	s.i++
	return size, nil
}

func (s *script) validate(string) error {
	s.vcall++
	if s.valid != nil && !s.valid(s.vcall) {
		return errors.New("invalid")
	}
	return nil
}

func newDetector(sched clock.Scheduler, s *script, stable *int) *Detector {
	return New(func() string { return "/doc/report.pdf" }, sched, Options{
		Settle:   settle,
		Interval: interval,
		Stat:     s.stat,
		Validate: s.validate,
		OnStable: func() { *stable++ },
	})
}

func TestStableAfterSizeSettles(t *testing.T) {
	m := clock.NewManual()
	s := &script{sizes: []int64{0, 1024, 1024}}
	stable := 0
	d := newDetector(m, s, &stable)

	d.Restart()
	m.Advance(settle)
	if stable != 0 {
		t.Fatal("fired on an empty file")
	}
	m.Advance(interval)
	if stable != 0 {
		t.Fatal("fired on the first non-empty observation")
	}
	m.Advance(interval)
	if stable != 1 {
		t.Fatalf("stable = %d, want 1", stable)
	}

	m.Advance(time.Second)
	if stable != 1 {
		t.Errorf("stable = %d after chain ended, want 1", stable)
	}
	if d.Running() {
		t.Error("chain still running after success")
	}
}

func TestExactlyOneRefreshAfterManySizes(t *testing.T) {
	m := clock.NewManual()
	s := &script{sizes: []int64{10, 20, 30, 40, 50, 60, 60}}
	stable := 0
	d := newDetector(m, s, &stable)

	d.Restart()
	for i := 0; i < 6; i++ {
		m.Advance(settle)
		if stable != 0 && s.i < len(s.sizes) {
			t.Fatalf("fired at intermediate size (poll %d)", s.i)
		}
	}
	m.Advance(time.Second)
	if stable != 1 {
		t.Errorf("stable = %d, want 1", stable)
	}
	if s.vcall != 1 {
		t.Errorf("validated %d times, want 1", s.vcall)
	}
}

func TestInvalidContentKeepsPolling(t *testing.T) {
	m := clock.NewManual()
	s := &script{sizes: []int64{512}, valid: func(call int) bool { return call >= 3 }}
	stable := 0
	d := newDetector(m, s, &stable)

	d.Restart()
	m.Advance(settle + interval)
	if stable != 0 {
		t.Fatal("fired before content validated")
	}
	m.Advance(10 * interval)
	if stable != 1 {
		t.Errorf("stable = %d, want 1", stable)
	}
}

func TestRestartCoalesces(t *testing.T) {
	m := clock.NewManual()
	s := &script{sizes: []int64{100}}
	stable := 0
	d := newDetector(m, s, &stable)

	for i := 0; i < 5; i++ {
		d.Restart()
		m.Advance(settle / 2)
	}
	if m.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", m.Pending())
	}
	m.Advance(time.Second)
	if stable != 1 {
		t.Errorf("stable = %d, want 1", stable)
	}
}

func TestStopReleasesTimer(t *testing.T) {
	m := clock.NewManual()
	s := &script{sizes: []int64{0, 1024, 1024}}
	stable := 0
	d := newDetector(m, s, &stable)

	d.Restart()
	m.Advance(settle + interval)
	d.Stop()

	if m.Pending() != 0 {
		t.Errorf("pending timers after Stop = %d, want 0", m.Pending())
	}
	m.Advance(time.Minute)
	if stable != 0 {
		t.Error("fired after Stop")
	}

	d.Restart()
	if m.Pending() != 0 {
		t.Error("Restart after Stop scheduled a poll")
	}
}

func TestStaleFireIsIgnored(t *testing.T) {
	// A scheduler that hands timers back instead of running them, so a fire
	// can be delivered after the chain was restarted.
	var fns []func()
	sched := schedulerFunc(func(d time.Duration, f func()) clock.Timer {
		fns = append(fns, f)
		return noopTimer{}
	})
	s := &script{sizes: []int64{1}}
	stable := 0
	d := newDetector(sched, s, &stable)

	d.Restart()
	d.Restart()
	fns[0]()
	if s.i != 0 {
		t.Fatal("stale poll read the file")
	}
	fns[1]()
	if s.i != 1 {
		t.Errorf("current poll did not run")
	}
}

func TestMaxPollsGivesUp(t *testing.T) {
	m := clock.NewManual()
	var gaveUp error
	n := int64(0)
	d := New(func() string { return "x" }, m, Options{
		Settle:   settle,
		Interval: interval,
		MaxPolls: 5,
		Stat:     func(string) (int64, error) { n++; return n, nil },
		Validate: func(string) error { return nil },
		OnStable: func() { t.Error("growing file reported stable") },
		OnGiveUp: func(err error) { gaveUp = err },
	})

	d.Restart()
	m.Advance(time.Minute)
	if !errors.Is(gaveUp, ErrGaveUp) {
		t.Errorf("gaveUp = %v, want ErrGaveUp", gaveUp)
	}
	if n != 5 {
		t.Errorf("stat calls = %d, want 5", n)
	}
}

func TestDefaultValidationOnRealFile(t *testing.T) {
	m := clock.NewManual()
	path := filepath.Join(t.TempDir(), "out.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stable := 0
	d := New(func() string { return path }, m, Options{
		Settle:   settle,
		Interval: interval,
		OnStable: func() { stable++ },
	})

	d.Restart()
	m.Advance(settle + 3*interval)
	if stable != 0 {
		t.Fatal("fired on a file without an end-of-file marker")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("1 0 obj\n<<>>\nendobj\n%%EOF\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	m.Advance(3 * interval)
	if stable != 1 {
		t.Errorf("stable = %d, want 1", stable)
	}
}

type schedulerFunc func(time.Duration, func()) clock.Timer

func (f schedulerFunc) AfterFunc(d time.Duration, fn func()) clock.Timer { return f(d, fn) }

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }
