// Package config resolves tool settings from a YAML file, NWBPACK_*
// environment variables, and command-line flags, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
)

// Environment variables consulted by Resolve. Flags override these; these
// override the config file.
const (
	EnvSessionRoot = "NWBPACK_SESSION_ROOT"
	EnvOutputRoot  = "NWBPACK_NWB_ROOT"
	EnvConverter   = "NWBPACK_CONVERTER"
	EnvHistoryDB   = "NWBPACK_HISTORY_DB"
	EnvConcurrency = "NWBPACK_CONCURRENCY"
)

// Config holds the resolved settings shared by both binaries.
type Config struct {
	// SessionRoot is the raw-session store: <root>/<animal>/<session-id>/.
	SessionRoot string `yaml:"session_root"`
	// OutputRoot is the NWB output store: <root>/<animal>/<session-id>.nwb.
	OutputRoot string `yaml:"output_root"`
	// Converter is the external artifact-writer executable.
	Converter string `yaml:"converter"`
	// ConverterArgs are passed to the converter before the session/output
	// flags.
	ConverterArgs []string `yaml:"converter_args"`
	// HistoryDB enables the SQLite run ledger when non-empty.
	HistoryDB string `yaml:"history_db"`
	// Concurrency bounds the packaging worker pool.
	Concurrency int `yaml:"concurrency"`
	// RequiredModalities are the raw streams every session must provide
	// before packaging is attempted.
	RequiredModalities []string `yaml:"required_modalities"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Concurrency:        1,
		RequiredModalities: []string{string(catalog.ModalityBehavior)},
	}
}

// LoadFile reads a YAML config file over the defaults. Unknown fields are
// rejected so typos surface instead of being silently ignored.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := unmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func unmarshalStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Resolve layers the configuration: defaults, then the optional config file,
// then environment variables. Flag overrides are applied by the CLI after
// Resolve. lookup abstracts os.LookupEnv for tests.
func Resolve(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSessionRoot); ok {
		c.SessionRoot = v
	}
	if v, ok := lookup(EnvOutputRoot); ok {
		c.OutputRoot = v
	}
	if v, ok := lookup(EnvConverter); ok {
		c.Converter = v
	}
	if v, ok := lookup(EnvHistoryDB); ok {
		c.HistoryDB = v
	}
	if v, ok := lookup(EnvConcurrency); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvConcurrency, v, err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate checks the resolved configuration. needsConverter is true for the
// packaging command; find-missing-nwb never writes and can run without one.
func (c Config) Validate(needsConverter bool) error {
	var errs []error
	if c.SessionRoot == "" {
		errs = append(errs, fmt.Errorf("session root not set (--source-dir or %s)", EnvSessionRoot))
	}
	if c.OutputRoot == "" {
		errs = append(errs, fmt.Errorf("output root not set (--output-dir or %s)", EnvOutputRoot))
	}
	if needsConverter && c.Converter == "" {
		errs = append(errs, fmt.Errorf("converter not set (config file or %s)", EnvConverter))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	for _, m := range c.RequiredModalities {
		if !isKnownModality(m) {
			errs = append(errs, fmt.Errorf("unknown required modality %q", m))
		}
	}
	return errors.Join(errs...)
}

// Required converts the configured modality names to catalog modalities.
func (c Config) Required() []catalog.Modality {
	out := make([]catalog.Modality, 0, len(c.RequiredModalities))
	for _, m := range c.RequiredModalities {
		out = append(out, catalog.Modality(m))
	}
	return out
}

func isKnownModality(name string) bool {
	switch catalog.Modality(name) {
	case catalog.ModalityBehavior, catalog.ModalityImaging, catalog.ModalityVideos,
		catalog.ModalityTracking, catalog.ModalityPupil:
		return true
	}
	return false
}
