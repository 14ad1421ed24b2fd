package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PDFVIEW_*). Nested keys use a double
// underscore: PDFVIEW_SERVER__PORT -> server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: PDFVIEW_AUTO_REFRESH -> auto_refresh, etc.
	if err := k.Load(env.Provider("PDFVIEW_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "PDFVIEW_"))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.AutoTime < 0 {
		return fmt.Errorf("auto_time must be non-negative")
	}
	if c.MapperTimeoutMS < 0 {
		return fmt.Errorf("mapper_timeout_ms must be non-negative")
	}
	if c.StabilityIntervalMS <= 0 {
		return fmt.Errorf("stability_interval_ms must be positive")
	}
	if c.StabilityMaxPolls < 0 {
		return fmt.Errorf("stability_max_polls must be non-negative")
	}
	if c.SynctexPath == "" {
		return fmt.Errorf("synctex_path is required")
	}
	if len(c.FilePatterns) == 0 {
		return fmt.Errorf("file_patterns must not be empty")
	}
	for _, p := range c.FilePatterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return fmt.Errorf("invalid file pattern %q", p)
		}
	}
	if c.EditorCommand != "" && !strings.Contains(c.EditorCommand, "{file}") {
		return fmt.Errorf("editor_command must contain {file}")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Server.PDFJSURL == "" {
		return fmt.Errorf("server.pdfjs_url is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.NotifyWebhook != "" {
		u, err := url.Parse(c.NotifyWebhook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("invalid notify_webhook %q", c.NotifyWebhook)
		}
	}
	return nil
}

// MatchesDocument reports whether path is a document the viewer accepts.
// Patterns are matched against the full slash-separated path and against
// the base name.
func (c *Config) MatchesDocument(path string) bool {
	normalized := filepath.ToSlash(path)
	base := filepath.Base(normalized)

	for _, pattern := range c.FilePatterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.PathMatch(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(base)); err == nil && matched {
			return true
		}
	}
	return false
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// BaseURL returns the URL clients use to reach the server.
func (c *Config) BaseURL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// Watch reloads the file at path whenever it changes and hands the new
// configuration to onChange. Invalid configurations are logged and
// skipped. The returned function stops watching.
func Watch(path string, onChange func(*Config)) (func(), error) {
	fp := file.Provider(path)
	err := fp.Watch(func(event interface{}, err error) {
		if err != nil {
			log.Printf("config: watch %s: %v", path, err)
			return
		}
		cfg, err := Load(path)
		if err != nil {
			log.Printf("config: reloading %s: %v", path, err)
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Printf("config: ignoring invalid %s: %v", path, err)
			return
		}
		onChange(cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("watching config %s: %w", path, err)
	}
	return func() {
		if err := fp.Unwatch(); err != nil {
			log.Printf("config: unwatch %s: %v", path, err)
		}
	}, nil
}
