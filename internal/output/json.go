package output

import (
	"encoding/json"
	"time"

	"github.com/quotagate/quotagate/internal/core"
	"github.com/quotagate/quotagate/internal/core/store"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReport renders a run report as JSON.
func (f *JSONFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return f.marshal(report)
}

// FormatJournal renders journal rows as a JSON array.
func (f *JSONFormatter) FormatJournal(records []store.AdmissionRecord) (string, error) {
	rows := make([]journalRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, newJournalRow(rec))
	}
	return f.marshal(rows)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// journalRow flattens a record so JSON and YAML share one shape.
type journalRow struct {
	ID         int64  `json:"id" yaml:"id"`
	RunID      string `json:"run_id" yaml:"run_id"`
	Source     string `json:"source" yaml:"source"`
	Permits    int    `json:"permits" yaml:"permits"`
	WaitedMS   int64  `json:"waited_ms" yaml:"waited_ms"`
	AdmittedAt string `json:"admitted_at" yaml:"admitted_at"`
}

func newJournalRow(rec store.AdmissionRecord) journalRow {
	return journalRow{
		ID:         rec.ID,
		RunID:      rec.RunID,
		Source:     rec.Source,
		Permits:    rec.Admission.Permits,
		WaitedMS:   rec.Admission.Waited.Milliseconds(),
		AdmittedAt: rec.Admission.AdmittedAt.UTC().Format(time.RFC3339Nano),
	}
}
