package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dgallion1/refdoc/internal/diag"
)

// ExitCode maps a finished run to a process exit status. A run fails when
// the corpus is non-empty and no document survived; with strict set, any
// failed document fails the run. Warnings never affect the status.
func (r *Result) ExitCode(strict bool) int {
	switch {
	case len(r.Jobs) > 0 && r.Failed == len(r.Jobs):
		return 1
	case strict && r.Failed > 0:
		return 1
	default:
		return 0
	}
}

// WriteSummary prints every diagnostic, the skipped documents and a one
// line tally.
func (r *Result) WriteSummary(w io.Writer) {
	for _, d := range r.Diagnostics {
		fmt.Fprintln(w, d.String())
	}

	if failed := r.FailedJobs(); len(failed) > 0 {
		fmt.Fprintf(w, "\nSkipped %s of %s documents:\n", humanize.Comma(int64(len(failed))), humanize.Comma(int64(len(r.Jobs))))
		for _, j := range failed {
			reason := "unknown error"
			if len(j.Errors) > 0 {
				reason = j.Errors[len(j.Errors)-1]
			}
			fmt.Fprintf(w, "  %s: %s\n", j.Path, reason)
		}
	}

	var bytes uint64
	for _, j := range r.Jobs {
		bytes += uint64(j.OutputBytes)
	}
	warnings := 0
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SeverityWarning {
			warnings++
		}
	}

	fmt.Fprintf(w, "\n%s: %s documents, %s failed, %s written, %s unchanged, %s warnings, %s output in %s\n",
		r.Mode,
		humanize.Comma(int64(len(r.Jobs))),
		humanize.Comma(int64(r.Failed)),
		humanize.Comma(int64(r.Written)),
		humanize.Comma(int64(r.Unchanged)),
		humanize.Comma(int64(warnings)),
		humanize.Bytes(bytes),
		r.Duration.Round(time.Millisecond),
	)
}
