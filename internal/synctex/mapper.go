// Package synctex translates between source positions and page positions by
// running the synctex command line tool.
package synctex

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdfview/pdfview/internal/protocol"
)

// ErrNoMapping is returned when the tool ran but its output does not
// resolve to a position.
var ErrNoMapping = errors.New("synctex: no mapping in output")

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. A non-zero exit status is an error that carries
// the command's standard error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("running %s: %w", name, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("running %s: %w", name, err)
		}
		return nil, fmt.Errorf("running %s: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// ForwardRequest locates a source position in the rendered document. Row
// and Column are one-based.
type ForwardRequest struct {
	Source string
	Row    int
	Column int
	PDF    string
}

// InverseRequest locates the source of a page point. Page is one-based.
type InverseRequest struct {
	Page int
	X    float64
	Y    float64
	PDF  string
}

// SourceLocation is the result of an inverse mapping. Line is zero-based.
type SourceLocation struct {
	SourcePath string `json:"sourcePath"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// Mapper runs the synctex tool.
type Mapper struct {
	Path    string
	Runner  Runner
	Timeout time.Duration
}

// NewMapper returns a Mapper running the tool at path through os/exec.
func NewMapper(path string, timeout time.Duration) *Mapper {
	if path == "" {
		path = "synctex"
	}
	return &Mapper{Path: path, Runner: ExecRunner{}, Timeout: timeout}
}

// Forward maps a source position to a page position.
func (m *Mapper) Forward(ctx context.Context, req ForwardRequest) (protocol.SyncPosition, error) {
	if req.Row < 1 {
		req.Row = 1
	}
	if req.Column < 1 {
		req.Column = 1
	}
	input := fmt.Sprintf("%d:%d:%s", req.Row, req.Column, req.Source)
	out, err := m.run(ctx, "view", "-i", input, "-o", req.PDF)
	if err != nil {
		return protocol.SyncPosition{}, err
	}
	return ParseForward(out)
}

// Inverse maps a page point to a source position.
func (m *Mapper) Inverse(ctx context.Context, req InverseRequest) (SourceLocation, error) {
	output := fmt.Sprintf("%d:%s:%s:%s", req.Page, formatPoint(req.X), formatPoint(req.Y), req.PDF)
	out, err := m.run(ctx, "edit", "-o", output)
	if err != nil {
		return SourceLocation{}, err
	}
	return ParseInverse(out)
}

func (m *Mapper) run(ctx context.Context, args ...string) ([]byte, error) {
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	runner := m.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	return runner.Run(ctx, m.Path, args...)
}

func formatPoint(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseForward reads the first record of `synctex view` output. Page is
// converted to zero-based; v is preferred over y for the vertical offset.
func ParseForward(out []byte) (protocol.SyncPosition, error) {
	var pos protocol.SyncPosition
	var havePage, haveV, haveY bool
	var y float64

	scanner := bufio.NewScanner(bytes.NewReader(out))
records:
	for scanner.Scan() {
		key, val, ok := splitLine(scanner.Text())
		if !ok {
			continue
		}
		switch key {
		case "before":
			break records
		case "Page":
			if havePage {
				// A second record without a terminator.
				break records
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return pos, fmt.Errorf("synctex: parsing Page %q: %w", val, err)
			}
			pos.Page = n - 1
			havePage = true
		case "x":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return pos, fmt.Errorf("synctex: parsing x %q: %w", val, err)
			}
			pos.X = f
		case "v":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return pos, fmt.Errorf("synctex: parsing v %q: %w", val, err)
			}
			pos.Y = f
			haveV = true
		case "y":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return pos, fmt.Errorf("synctex: parsing y %q: %w", val, err)
			}
			y = f
			haveY = true
		}
	}
	if err := scanner.Err(); err != nil {
		return pos, fmt.Errorf("synctex: reading output: %w", err)
	}

	if !havePage || pos.Page < 0 {
		return protocol.SyncPosition{}, ErrNoMapping
	}
	if !haveV && haveY {
		pos.Y = y
	}
	return pos, nil
}

// ParseInverse reads `synctex edit` output. Only the first value of each key
// counts. Line is converted to zero-based and a negative column becomes 0.
func ParseInverse(out []byte) (SourceLocation, error) {
	var loc SourceLocation
	var haveInput, haveLine, haveColumn bool

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, val, ok := splitLine(scanner.Text())
		if !ok {
			continue
		}
		switch key {
		case "Input":
			if haveInput {
				continue
			}
			loc.SourcePath = filepath.Clean(val)
			haveInput = true
		case "Line":
			if haveLine {
				continue
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return loc, fmt.Errorf("synctex: parsing Line %q: %w", val, err)
			}
			loc.Line = n - 1
			haveLine = true
		case "Column":
			if haveColumn {
				continue
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return loc, fmt.Errorf("synctex: parsing Column %q: %w", val, err)
			}
			loc.Column = n
			haveColumn = true
		}
	}
	if err := scanner.Err(); err != nil {
		return loc, fmt.Errorf("synctex: reading output: %w", err)
	}

	if !haveInput || !haveLine || loc.Line < 0 {
		return SourceLocation{}, ErrNoMapping
	}
	if loc.Column < 0 {
		loc.Column = 0
	}
	return loc, nil
}

// splitLine splits a `Key:Value` line. Keys are a single word; the value may
// contain further colons (Windows paths).
func splitLine(line string) (key, val string, ok bool) {
	line = strings.TrimRight(line, "\r")
	key, val, ok = strings.Cut(line, ":")
	if !ok || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, strings.TrimSpace(val), true
}
