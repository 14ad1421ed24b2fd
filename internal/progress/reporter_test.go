package progress

import (
	"bytes"
	"testing"
)

func TestLineReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &LineReporter{W: &buf}

	r.Start(2)
	r.Update(1, "a.pdf")
	r.Update(1, "a.pdf")
	r.Update(2, "b.pdf")
	r.Finish()

	want := "Waiting for 2 viewer(s)\n[1/2] a.pdf\n[2/2] b.pdf\nAll viewers ready\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter().(*LineReporter); !ok {
		t.Error("expected LineReporter under CI")
	}
}
