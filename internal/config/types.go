package config

import "time"

// Config is the top-level pdfview configuration, corresponding to .pdfview.yml.
type Config struct {
	AutoRefresh         bool              `yaml:"auto_refresh" koanf:"auto_refresh"`
	AutoTime            int               `yaml:"auto_time" koanf:"auto_time"`
	CloseDeleted        bool              `yaml:"close_deleted" koanf:"close_deleted"`
	InvertMode          bool              `yaml:"invert_mode" koanf:"invert_mode"`
	SynctexPath         string            `yaml:"synctex_path" koanf:"synctex_path"`
	MapperTimeoutMS     int               `yaml:"mapper_timeout_ms" koanf:"mapper_timeout_ms"`
	StabilityIntervalMS int               `yaml:"stability_interval_ms" koanf:"stability_interval_ms"`
	StabilityMaxPolls   int               `yaml:"stability_max_polls" koanf:"stability_max_polls"`
	StrictValidation    bool              `yaml:"strict_validation" koanf:"strict_validation"`
	Debug               bool              `yaml:"debug" koanf:"debug"`
	FilePatterns        []string          `yaml:"file_patterns" koanf:"file_patterns"`
	EditorCommand       string            `yaml:"editor_command" koanf:"editor_command"`
	Commands            map[string]string `yaml:"commands,omitempty" koanf:"commands"`
	Server              ServerConfig      `yaml:"server" koanf:"server"`
	DataDir             string            `yaml:"data_dir" koanf:"data_dir"`
	NotifyWebhook       string            `yaml:"notify_webhook,omitempty" koanf:"notify_webhook"`
}

// ServerConfig holds settings for the local HTTP server and the viewer page.
type ServerConfig struct {
	Host        string `yaml:"host" koanf:"host"`
	Port        int    `yaml:"port" koanf:"port"`
	PDFJSURL    string `yaml:"pdfjs_url" koanf:"pdfjs_url"`
	OpenBrowser bool   `yaml:"open_browser" koanf:"open_browser"`
}

// AutoDelay is the settle delay between a file change and the first
// stability poll.
func (c *Config) AutoDelay() time.Duration {
	return time.Duration(c.AutoTime) * time.Millisecond
}

// MapperTimeout bounds one synctex invocation.
func (c *Config) MapperTimeout() time.Duration {
	return time.Duration(c.MapperTimeoutMS) * time.Millisecond
}

// StabilityInterval is the delay between stability polls.
func (c *Config) StabilityInterval() time.Duration {
	return time.Duration(c.StabilityIntervalMS) * time.Millisecond
}
