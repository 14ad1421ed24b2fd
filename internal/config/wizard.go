package config

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// ConfigFile is the name of the per-project configuration file.
const ConfigFile = ".pdfview.yml"

// editorBinaries maps preset names to the binary that must be on PATH.
var editorBinaries = []struct {
	Preset string
	Binary string
}{
	{"vscode", "code"},
	{"zed", "zed"},
	{"sublime", "subl"},
	{"neovim", "nvr"},
	{"vim", "gvim"},
	{"emacs", "emacsclient"},
}

// detectEditor returns the first editor preset whose binary is installed.
func detectEditor() string {
	for _, e := range editorBinaries {
		if _, err := exec.LookPath(e.Binary); err == nil {
			return e.Preset
		}
	}
	return "vscode"
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to pdfview! Let's configure your project.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Editor for inverse search.
	detected := detectEditor()
	items := []string{detected}
	for _, e := range editorBinaries {
		if e.Preset != detected {
			items = append(items, e.Preset)
		}
	}
	items = append(items, "custom")
	editorPrompt := promptui.Select{
		Label: "Editor for jumping to source",
		Items: items,
	}
	_, editor, err := editorPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("editor selection: %w", err)
	}
	if editor == "custom" {
		customPrompt := promptui.Prompt{
			Label:   "Editor command ({file}, {line}, {column} are substituted)",
			Default: cfg.EditorCommand,
			Validate: func(s string) error {
				if !strings.Contains(s, "{file}") {
					return fmt.Errorf("command must contain {file}")
				}
				return nil
			},
		}
		cfg.EditorCommand, err = customPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("editor command: %w", err)
		}
	} else {
		cfg.EditorCommand = EditorPreset(editor)
	}

	// 2. synctex binary.
	synctexPrompt := promptui.Prompt{
		Label:   "Path to the synctex binary",
		Default: cfg.SynctexPath,
	}
	cfg.SynctexPath, err = synctexPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("synctex path: %w", err)
	}
	if _, err := exec.LookPath(cfg.SynctexPath); err != nil {
		fmt.Printf("Note: %s was not found on PATH; source sync will fail until it is installed.\n", cfg.SynctexPath)
	}

	// 3. Auto refresh.
	refreshPrompt := promptui.Select{
		Label: "Refresh viewers when the document is rebuilt",
		Items: []string{"yes", "no"},
	}
	refreshIdx, _, err := refreshPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("auto refresh: %w", err)
	}
	cfg.AutoRefresh = refreshIdx == 0

	// 4. Settle delay.
	delayPrompt := promptui.Prompt{
		Label:   "Delay before checking a changed document (ms)",
		Default: strconv.Itoa(cfg.AutoTime),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return fmt.Errorf("enter a non-negative number")
			}
			return nil
		},
	}
	delay, err := delayPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("auto time: %w", err)
	}
	cfg.AutoTime, _ = strconv.Atoi(delay)

	// 5. Server port.
	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	port, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(port)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// SplitList splits a comma-separated string and trims whitespace.
func SplitList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
