package config

// DefaultPDFJSURL points at the pdf.js distribution loaded by the viewer
// page. The files are served unmodified.
const DefaultPDFJSURL = "https://cdn.jsdelivr.net/npm/pdfjs-dist@4.10.38"

// DefaultFilePatterns are the documents the viewer accepts.
var DefaultFilePatterns = []string{
	"**/*.pdf",
}

// editorPresets maps well-known editors to their go-to-line command lines.
var editorPresets = map[string]string{
	"vscode":  "code -g {file}:{line}:{column}",
	"vim":     "gvim --remote-silent +{line} {file}",
	"neovim":  "nvr --remote-silent +{line} {file}",
	"emacs":   "emacsclient -n +{line}:{column} {file}",
	"sublime": "subl {file}:{line}:{column}",
	"zed":     "zed {file}:{line}:{column}",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AutoRefresh:         true,
		AutoTime:            2000,
		CloseDeleted:        true,
		InvertMode:          false,
		SynctexPath:         "synctex",
		MapperTimeoutMS:     10000,
		StabilityIntervalMS: 150,
		StabilityMaxPolls:   600,
		FilePatterns:        DefaultFilePatterns,
		EditorCommand:       editorPresets["vscode"],
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        7410,
			PDFJSURL:    DefaultPDFJSURL,
			OpenBrowser: true,
		},
		DataDir: ".pdfview",
	}
}

// EditorPreset returns the command line for a named editor, or "" when
// the name is unknown.
func EditorPreset(name string) string {
	return editorPresets[name]
}
