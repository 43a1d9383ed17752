// Package config loads p8pp.yaml on top of the built-in defaults.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/picoboots/p8pp/internal/preprocessor"
	"github.com/picoboots/p8pp/internal/substitute"
	"github.com/picoboots/p8pp/internal/variant"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "p8pp.yaml"

//go:embed default.yaml
var defaultYAML []byte

type FilesConfig struct {
	Extensions []string `yaml:"extensions"`
	// Workers bounds parallel file processing; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Variants    *variant.Table      `yaml:"variants"`
	Syntax      preprocessor.Syntax `yaml:"syntax"`
	Files       FilesConfig         `yaml:"files"`
	Substitutes substitute.Config   `yaml:"substitutes"`
	Logging     LoggingConfig       `yaml:"logging"`
	// Check parses every output file as Lua after preprocessing.
	Check bool `yaml:"check"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := decode(bytes.NewReader(defaultYAML), &cfg); err != nil {
		panic(fmt.Sprintf("config: built-in defaults: %v", err))
	}
	return &cfg
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by the user on the command line.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadIfExists is Load, falling back to Default when path does not exist.
func LoadIfExists(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes data over the defaults. Scalars and lists replace the
// default, maps merge key by key and variants merge by name.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	base := cfg.Variants
	cfg.Variants = nil
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return nil, err
	}
	cfg.Variants = base.Merge(cfg.Variants)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Variants.Len() == 0 {
		return errors.New("variants: no variant defined")
	}
	if err := c.Syntax.Validate(); err != nil {
		return err
	}
	if len(c.Files.Extensions) == 0 {
		return errors.New("files: extensions must not be empty")
	}
	for _, ext := range c.Files.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("files: extension %q must start with '.'", ext)
		}
	}
	if c.Files.Workers < 0 {
		return fmt.Errorf("files: workers must be >= 0, got %d", c.Files.Workers)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels. An empty
// string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}
