package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pdfview/pdfview/internal/client"
	"github.com/pdfview/pdfview/internal/config"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `pdfview init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newClient returns a client for the daemon the config points at.
func newClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.BaseURL()), nil
}

// explain adds a hint to errors caused by the daemon not running.
func explain(err error) error {
	if errors.Is(err, client.ErrUnavailable) {
		return fmt.Errorf("%w\nStart it with `pdfview server`", err)
	}
	return err
}

// setupLogging sends log output to stderr, or discards it unless verbose
// is set for commands whose stdout is a protocol.
func setupLogging(quiet bool) {
	log.SetOutput(os.Stderr)
	if quiet && !verbose {
		log.SetOutput(io.Discard)
	}
}
