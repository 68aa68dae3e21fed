package output

import (
	"gopkg.in/yaml.v3"

	"github.com/quotagate/quotagate/internal/core"
	"github.com/quotagate/quotagate/internal/core/store"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatReport renders a run report as YAML.
func (f *YAMLFormatter) FormatReport(report *core.RunReport) (string, error) {
	if report == nil {
		return "", nil
	}
	return marshalYAML(report)
}

// FormatJournal renders journal rows as a YAML sequence.
func (f *YAMLFormatter) FormatJournal(records []store.AdmissionRecord) (string, error) {
	rows := make([]journalRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, newJournalRow(rec))
	}
	return marshalYAML(rows)
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
