package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/braidyn-bc/nwbpack/internal/batch"
	"github.com/braidyn-bc/nwbpack/internal/catalog"
	"github.com/braidyn-bc/nwbpack/internal/config"
	"github.com/braidyn-bc/nwbpack/internal/executor"
	"github.com/braidyn-bc/nwbpack/internal/plan"
	"github.com/braidyn-bc/nwbpack/internal/store"
)

// PackageOptions holds flags for package-nwb.
type PackageOptions struct {
	*RootOptions
	Concurrency int
	DryRun      bool
	Force       bool
	HistoryDB   string

	// Writer overrides the converter-backed artifact writer (for testing).
	Writer executor.Writer
	// RunID overrides the generated UUIDv7 run id (for testing).
	RunID string
}

// NewPackageCommand creates the package-nwb root command.
func NewPackageCommand() *cobra.Command {
	opts := &PackageOptions{RootOptions: &RootOptions{}}

	cmd := &cobra.Command{
		Use:   "package-nwb",
		Short: "Batch-package experiment sessions into NWB files",
		Long: `Reconciles the raw session store against the NWB output store and
packages every session that is missing, stale, or damaged.

A session is skipped when a complete artifact exists whose recorded source
fingerprint still matches the raw data. Partial and corrupt artifacts are
refreshed regardless of fingerprint. Artifacts without a matching session
are reported as orphans and never deleted.

Example:
  package-nwb --source-dir /data/sessions --output-dir /data/nwb --concurrency 4
  package-nwb -A mouse12 --from 240101 --to 240131 -t task --dry-run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(opts.RootOptions)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackage(opts, cmd)
		},
	}

	addCommonFlags(cmd, opts.RootOptions)
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "packaging worker bound (default from config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute and print the plan without writing anything")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "repackage sessions even when their artifact is up to date")
	cmd.Flags().StringVar(&opts.HistoryDB, "history-db", "", "record the run in a SQLite history database")

	return cmd
}

func runPackage(opts *PackageOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	filter, err := resolveFilter(opts.RootOptions)
	if err != nil {
		return fatal(formatter, "E_FILTER", err)
	}

	needsConverter := !opts.DryRun && opts.Writer == nil
	cfg, err := resolveConfig(opts.RootOptions, needsConverter)
	if err != nil {
		return fatal(formatter, "E_CONFIG", err)
	}
	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}
	if opts.HistoryDB != "" {
		cfg.HistoryDB = opts.HistoryDB
	}

	items, warnings, sessions, err := reconcile(cfg, filter, opts.Force)
	if err != nil {
		return fatal(formatter, "E_CATALOG", err)
	}

	if opts.DryRun {
		return outputPlan(formatter, items, warnings)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.Must(uuid.NewV7()).String()
	}
	writer := opts.Writer
	if writer == nil {
		writer = executor.CommandWriter{Converter: cfg.Converter, ExtraArgs: cfg.ConverterArgs}
	}
	exec := executor.New(writer, cfg.OutputRoot, runID,
		executor.WithRequiredModalities(cfg.Required()...))
	driver := batch.NewDriver(exec, cfg.Concurrency)

	ctx, stop := shutdownContext(cmd.Context())
	defer stop()

	slog.Info("batch starting", "run_id", runID,
		"sessions", len(sessions), "items", len(items), "concurrency", cfg.Concurrency)
	started := time.Now()
	result := driver.Run(ctx, items, sessions)
	finished := time.Now()

	if err := outputResult(formatter, runID, items, warnings, result); err != nil {
		return err
	}

	if cfg.HistoryDB != "" {
		recordRun(cfg.HistoryDB, store.RunMeta{
			RunID:      runID,
			StartedAt:  started,
			FinishedAt: finished,
			SourceRoot: cfg.SessionRoot,
			OutputRoot: cfg.OutputRoot,
		}, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) failed", result.Failed))
	}
	return nil
}

// reconcile scans both catalogs and computes the plan. Catalog errors are
// fatal: no plan is trustworthy when a catalog is partially readable.
func reconcile(cfg config.Config, filter catalog.Filter, force bool) ([]plan.Item, []plan.Warning, []catalog.SessionRecord, error) {
	slog.Debug("scanning sessions", "root", cfg.SessionRoot)
	sessions, err := catalog.ScanSessions(cfg.SessionRoot, filter)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.Debug("scanning artifacts", "root", cfg.OutputRoot)
	artifacts, err := catalog.ScanArtifacts(cfg.OutputRoot)
	if err != nil {
		return nil, nil, nil, err
	}

	var planOpts []plan.Option
	if force {
		planOpts = append(planOpts, plan.WithForce())
	}
	items, warnings := plan.Plan(sessions, artifacts, planOpts...)
	slog.Info("plan computed", "sessions", len(sessions), "artifacts", len(artifacts),
		"items", len(items), "warnings", len(warnings))
	return items, warnings, sessions, nil
}

// shutdownContext cancels on SIGINT/SIGTERM so the batch driver drains
// in-flight items instead of killing them mid-write.
func shutdownContext(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, draining batch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// recordRun appends the batch outcome to the history ledger. Ledger problems
// are logged, not fatal: history is observational and must never change the
// batch exit status.
func recordRun(path string, meta store.RunMeta, result batch.Result) {
	st, err := store.Open(path)
	if err != nil {
		slog.Error("history ledger unavailable", "path", path, "error", err)
		return
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing history ledger", "error", closeErr)
		}
	}()
	if err := st.RecordRun(context.Background(), meta, result); err != nil {
		slog.Error("failed to record run in history ledger", "error", err)
	}
}

// fatal prints a pre-plan error and maps it to exit code 2.
func fatal(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error())
	return WrapExitError(ExitCommandError, code, err)
}

// planPayload is the JSON shape shared by dry runs and find-missing-nwb.
type planPayload struct {
	Items    []plan.Item    `json:"items"`
	Warnings []plan.Warning `json:"warnings,omitempty"`
	Summary  plan.Summary   `json:"summary"`
}

func outputPlan(formatter *OutputFormatter, items []plan.Item, warnings []plan.Warning) error {
	if formatter.JSON() {
		return formatter.Success(planPayload{
			Items:    items,
			Warnings: warnings,
			Summary:  plan.Summarize(items),
		})
	}
	plan.RenderText(formatter.Writer, items, warnings)
	return nil
}

// resultPayload is the JSON shape of a completed batch.
type resultPayload struct {
	RunID    string         `json:"run_id"`
	Summary  plan.Summary   `json:"plan_summary"`
	Warnings []plan.Warning `json:"warnings,omitempty"`
	Result   batch.Result   `json:"result"`
}

func outputResult(formatter *OutputFormatter, runID string, items []plan.Item, warnings []plan.Warning, result batch.Result) error {
	if formatter.JSON() {
		return formatter.Success(resultPayload{
			RunID:    runID,
			Summary:  plan.Summarize(items),
			Warnings: warnings,
			Result:   result,
		})
	}
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "warning: %s: %s\n", w.SessionID, w.Message)
	}
	result.RenderText(formatter.Writer)
	return nil
}
