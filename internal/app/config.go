package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/vk/rulegrid/internal/hydration"
	"gopkg.in/yaml.v3"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Root        string // build root
	OptionsFile string // optional YAML overlay

	Patterns []string // declaration file globs
	Ignores  []string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
	StorePath       string // SQLite store; in-memory when empty
	WorkunitURL     string // socket.io server for workunit events
}

// fileOptions is the layout of the YAML options file.
type fileOptions struct {
	BuildFiles struct {
		Patterns []string `yaml:"patterns"`
		Ignores  []string `yaml:"ignores"`
	} `yaml:"build_files"`
	Workers int `yaml:"workers"`
	Log     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Healthcheck struct {
		Port int `yaml:"port"`
	} `yaml:"healthcheck"`
	Workunits struct {
		URL string `yaml:"url"`
	} `yaml:"workunits"`
}

// NewConfig applies the options file, fills defaults and validates cfg.
// Values already set in cfg win over the options file.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Root == "" {
		return nil, errors.New("Root is a required configuration field and cannot be empty")
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("build root %s: %w", cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build root %s is not a directory", cfg.Root)
	}

	if cfg.OptionsFile != "" {
		if err := overlayOptions(&cfg, cfg.OptionsFile); err != nil {
			return nil, err
		}
	}

	if len(cfg.Patterns) == 0 {
		cfg.Patterns = slices.Clone(hydration.DefaultPatterns)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("invalid worker count %d: must not be negative", cfg.WorkerCount)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}

	return &cfg, nil
}

// overlayOptions fills the zero fields of cfg from the YAML file at path.
// Unknown keys are rejected.
func overlayOptions(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open options file: %w", err)
	}
	defer f.Close()

	var opts fileOptions
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse options file %s: %w", path, err)
	}

	if len(cfg.Patterns) == 0 {
		cfg.Patterns = opts.BuildFiles.Patterns
	}
	if len(cfg.Ignores) == 0 {
		cfg.Ignores = opts.BuildFiles.Ignores
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = opts.Workers
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = opts.Log.Level
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = opts.Log.Format
	}
	if cfg.StorePath == "" {
		cfg.StorePath = opts.Store.Path
	}
	if cfg.HealthcheckPort == 0 {
		cfg.HealthcheckPort = opts.Healthcheck.Port
	}
	if cfg.WorkunitURL == "" {
		cfg.WorkunitURL = opts.Workunits.URL
	}
	return nil
}
