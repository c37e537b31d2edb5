package batch

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/braidyn-bc/nwbpack/internal/executor"
)

// Result is the aggregate outcome of one batch run. Outcomes preserve plan
// order, so re-running an unchanged batch reports identically regardless of
// worker scheduling.
type Result struct {
	Outcomes  []executor.Outcome `json:"outcomes"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
}

// ExitCode maps the result onto a process exit status. Partial success is a
// reportable outcome, not a crash: any failure yields 1, never an abort.
func (r Result) ExitCode() int {
	if r.Failed > 0 {
		return 1
	}
	return 0
}

// RenderText writes the per-session outcome table and summary line.
func (r Result) RenderText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tSESSION\tACTION\tDETAIL")
	for _, o := range r.Outcomes {
		detail := o.Message
		switch o.State {
		case executor.StateFailed:
			detail = fmt.Sprintf("%s: %s", o.Kind, o.Message)
		case executor.StateSucceeded:
			detail = o.ArtifactPath
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.State, o.SessionID, o.Action, detail)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d skipped\n", r.Succeeded, r.Failed, r.Skipped)
}
