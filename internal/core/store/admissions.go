package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quotagate/quotagate/internal/core"
)

// AdmissionRecord is one journaled admission.
type AdmissionRecord struct {
	ID        int64
	RunID     string
	Source    string
	Admission core.Admission
}

// RecordAdmission appends an admission to the journal and returns its row id.
func (s *Store) RecordAdmission(ctx context.Context, runID, source string, admission core.Admission) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return 0, errors.New("run id is required")
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return 0, errors.New("source is required")
	}
	if admission.Permits <= 0 {
		return 0, fmt.Errorf("permits must be positive, got %d", admission.Permits)
	}

	admittedAt := admission.AdmittedAt
	if admittedAt.IsZero() {
		admittedAt = time.Now()
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO admissions (run_id, source, permits, waited_ms, admitted_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, source, admission.Permits, admission.Waited.Milliseconds(), admittedAt.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("record admission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record admission: %w", err)
	}
	return id, nil
}
