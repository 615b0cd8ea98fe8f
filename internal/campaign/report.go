package campaign

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mfields/crawlbench/internal/bench"
)

// writeSummary renders the completed runs as a table. Failed runs do not
// appear here.
func writeSummary(w io.Writer, completed []bench.Result) {
	fmt.Fprintf(w, "\nSpeed Test Summary\n")
	if len(completed) == 0 {
		fmt.Fprintln(w, "no completed runs")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tBACKEND\tDURATION\tPAGES\tPAGES/S\tURLS\tFAILURES\tNOTES")
	for _, res := range completed {
		fmt.Fprintf(tw, "%s\t%s\t%.2fs\t%d\t%.2f\t%d\t%d\t%s\n",
			res.Label, res.Backend, res.DurationS, res.PagesWritten,
			res.PagesPerSec, res.URLsTotal, res.Failures, res.Notes)
	}
	tw.Flush()
}
