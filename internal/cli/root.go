// Package cli implements the package-nwb and find-missing-nwb commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/braidyn-bc/nwbpack/internal/catalog"
	"github.com/braidyn-bc/nwbpack/internal/config"
)

// RootOptions holds the flags shared by both binaries.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json"
	ConfigPath string

	SourceDir string
	OutputDir string

	// Session filters, mirroring the original batch tool: comma-separated
	// animal list, YYMMDD date bounds, comma-separated session types.
	Animal   string
	FromDate string
	ToDate   string
	Types    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// addCommonFlags registers the flags both binaries share.
func addCommonFlags(cmd *cobra.Command, opts *RootOptions) {
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.SourceDir, "source-dir", "", "raw session root directory")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "NWB output root directory")
	cmd.Flags().StringVarP(&opts.Animal, "animal", "A", "", "animal (or comma-separated animals) to process")
	cmd.Flags().StringVar(&opts.FromDate, "from", "", "earliest session date, YYMMDD")
	cmd.Flags().StringVar(&opts.ToDate, "to", "", "latest session date, YYMMDD")
	cmd.Flags().StringVarP(&opts.Types, "type", "t", "", "session type(s) to process (task|rest|ss)")
}

// validateFormat runs in PersistentPreRunE for both binaries.
func validateFormat(opts *RootOptions) error {
	for _, f := range ValidFormats {
		if f == opts.Format {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
}

// setupLogging configures the process-wide slog handler. Logs go to stderr
// so JSON output on stdout stays parseable.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// resolveConfig layers config file, environment, and flags, then validates.
func resolveConfig(opts *RootOptions, needsConverter bool) (config.Config, error) {
	cfg, err := config.Resolve(opts.ConfigPath, os.LookupEnv)
	if err != nil {
		return config.Config{}, err
	}
	if opts.SourceDir != "" {
		cfg.SessionRoot = opts.SourceDir
	}
	if opts.OutputDir != "" {
		cfg.OutputRoot = opts.OutputDir
	}
	if err := cfg.Validate(needsConverter); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// resolveFilter parses the session filter flags.
func resolveFilter(opts *RootOptions) (catalog.Filter, error) {
	return catalog.ParseFilter(opts.Animal, opts.FromDate, opts.ToDate, opts.Types)
}
