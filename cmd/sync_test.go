package cmd

import "testing"

func TestParseSourcePos(t *testing.T) {
	tests := []struct {
		in           string
		file         string
		line, column int
	}{
		{"paper.tex:12", "paper.tex", 12, 1},
		{"paper.tex:12:5", "paper.tex", 12, 5},
		{`C:\docs\paper.tex:7`, `C:\docs\paper.tex`, 7, 1},
		{"/tmp/a:b.tex:3:2", "/tmp/a:b.tex", 3, 2},
	}
	for _, tt := range tests {
		file, line, column, err := parseSourcePos(tt.in)
		if err != nil {
			t.Errorf("parseSourcePos(%q): %v", tt.in, err)
			continue
		}
		if file != tt.file || line != tt.line || column != tt.column {
			t.Errorf("parseSourcePos(%q) = %q, %d, %d", tt.in, file, line, column)
		}
	}

	for _, bad := range []string{"paper.tex", "paper.tex:x", "paper.tex:0", ":4"} {
		if _, _, _, err := parseSourcePos(bad); err == nil {
			t.Errorf("parseSourcePos(%q): expected error", bad)
		}
	}
}

func TestSplitHash(t *testing.T) {
	tests := []struct{ in, path, hash string }{
		{"report.pdf", "report.pdf", ""},
		{"report.pdf#page=3", "report.pdf", "page=3"},
		{"#odd.pdf", "#odd.pdf", ""},
	}
	for _, tt := range tests {
		path, hash := splitHash(tt.in)
		if path != tt.path || hash != tt.hash {
			t.Errorf("splitHash(%q) = %q, %q", tt.in, path, hash)
		}
	}
}
