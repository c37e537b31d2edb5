package plan

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// RenderText writes a human-readable plan table followed by warnings and a
// one-line summary. Output is deterministic for a given plan, which the
// golden tests rely on.
func RenderText(w io.Writer, items []Item, warnings []Warning) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tSESSION\tREASON")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Action, it.SessionID, it.Reason)
	}
	tw.Flush()

	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", warn.SessionID, warn.Message)
	}

	s := Summarize(items)
	fmt.Fprintf(w, "\n%d to create, %d to refresh, %d up to date, %d orphaned\n",
		s.Create, s.Refresh, s.Skip, s.Orphans)
}

// Pending filters the plan down to items that need attention: sessions to
// package and orphans to report. Used by find-missing-nwb.
func Pending(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if it.Action != ActionSkip {
			out = append(out, it)
		}
	}
	return out
}
