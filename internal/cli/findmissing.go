package cli

import (
	"github.com/spf13/cobra"

	"github.com/braidyn-bc/nwbpack/internal/plan"
)

// FindMissingOptions holds flags for find-missing-nwb.
type FindMissingOptions struct {
	*RootOptions
	// All includes up-to-date sessions in the listing instead of only
	// pending work.
	All bool
}

// NewFindMissingCommand creates the find-missing-nwb root command.
//
// The command is read-only: it scans both catalogs, computes the plan, and
// prints the sessions that would be created or refreshed plus any orphaned
// artifacts. Nothing is written, so it always exits 0 unless a catalog is
// unreadable.
func NewFindMissingCommand() *cobra.Command {
	opts := &FindMissingOptions{RootOptions: &RootOptions{}}

	cmd := &cobra.Command{
		Use:   "find-missing-nwb",
		Short: "List sessions without an up-to-date NWB file",
		Long: `Compares the raw session store against the NWB output store and lists
every session that is missing, stale, or damaged, plus orphaned artifacts.
Performs no writes.

Example:
  find-missing-nwb --source-dir /data/sessions --output-dir /data/nwb
  find-missing-nwb -A mouse12 -t task --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(opts.RootOptions)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFindMissing(opts, cmd)
		},
	}

	addCommonFlags(cmd, opts.RootOptions)
	cmd.Flags().BoolVar(&opts.All, "all", false, "include up-to-date sessions in the listing")

	return cmd
}

func runFindMissing(opts *FindMissingOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	filter, err := resolveFilter(opts.RootOptions)
	if err != nil {
		return fatal(formatter, "E_FILTER", err)
	}
	cfg, err := resolveConfig(opts.RootOptions, false)
	if err != nil {
		return fatal(formatter, "E_CONFIG", err)
	}

	items, warnings, _, err := reconcile(cfg, filter, false)
	if err != nil {
		return fatal(formatter, "E_CATALOG", err)
	}

	if !opts.All {
		items = plan.Pending(items)
	}
	return outputPlan(formatter, items, warnings)
}
