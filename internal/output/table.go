package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/quotagate/quotagate/internal/core"
	"github.com/quotagate/quotagate/internal/core/store"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatReport renders one row per step with a totals footer, followed by
// any rejected batches and window violations.
func (f *TableFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s: %d permits / %s", report.Source, report.Limit, report.Window))
	t.AppendHeader(table.Row{"Step", "Batches", "Permits", "Waited", "Elapsed"})

	batches, permits := 0, 0
	for _, step := range report.Steps {
		batches += step.Batches
		permits += step.Requested
		t.AppendRow(table.Row{
			step.Label,
			step.Batches,
			step.Requested,
			formatDuration(step.Waited),
			formatDuration(step.Elapsed),
		})
	}
	t.AppendFooter(table.Row{"total", batches, permits, formatDuration(report.MaxWait()) + " max", formatDuration(report.Duration)})

	var b strings.Builder
	b.WriteString(t.Render())

	for _, reason := range report.Rejected {
		b.WriteString("\nrejected: ")
		b.WriteString(reason)
	}
	if len(report.Violations) == 0 {
		if len(report.Admissions) > 0 {
			b.WriteString("\ntrailing window check: ok")
		}
	} else {
		fmt.Fprintf(&b, "\ntrailing window check: %d violation(s)", len(report.Violations))
		for _, v := range report.Violations {
			fmt.Fprintf(&b, "\n  %s: %d permits", v.WindowEnd.Format("15:04:05.000"), v.Permits)
		}
	}

	return b.String(), nil
}

// FormatJournal renders journal rows as a table.
func (f *TableFormatter) FormatJournal(records []store.AdmissionRecord) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Run", "Source", "Permits", "Waited", "Admitted"})

	permits := 0
	for _, rec := range records {
		permits += rec.Admission.Permits
		t.AppendRow(table.Row{
			rec.ID,
			shortRunID(rec.RunID),
			rec.Source,
			rec.Admission.Permits,
			formatDuration(rec.Admission.Waited),
			rec.Admission.AdmittedAt.Format("2006-01-02 15:04:05.000"),
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d rows", len(records)), permits, "", ""})

	return t.Render(), nil
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
