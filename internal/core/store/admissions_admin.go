package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quotagate/quotagate/internal/core"
)

// AdmissionQuery selects journal rows. Exactly one of All, RunID or Source
// scopes the query; RunID wins over Source when both are set.
type AdmissionQuery struct {
	All    bool
	RunID  string
	Source string
	// Limit caps listed rows; zero lists everything. Ignored by count/reset.
	Limit int
}

func (q AdmissionQuery) Validate() error {
	if q.All || strings.TrimSpace(q.RunID) != "" || strings.TrimSpace(q.Source) != "" {
		return nil
	}
	return errors.New("must specify --all, --run, or --source")
}

func (q AdmissionQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if runID := strings.TrimSpace(q.RunID); runID != "" {
		return "WHERE run_id = ?", []any{runID}, nil
	}
	return "WHERE source = ?", []any{strings.TrimSpace(q.Source)}, nil
}

// ListAdmissions returns matching rows in admission order.
func (s *Store) ListAdmissions(ctx context.Context, q AdmissionQuery) ([]AdmissionRecord, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}
	limit := ""
	if q.Limit > 0 {
		limit = "LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, run_id, source, permits, waited_ms, admitted_at
		FROM admissions
		%s
		ORDER BY admitted_at, id
		%s
	`, where, limit), args...)
	if err != nil {
		return nil, fmt.Errorf("list admissions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	records := []AdmissionRecord{}
	for rows.Next() {
		var (
			rec        AdmissionRecord
			permits    int
			waitedMS   int64
			admittedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Source, &permits, &waitedMS, &admittedAt); err != nil {
			return nil, fmt.Errorf("scan admissions: %w", err)
		}
		rec.Admission = core.Admission{
			Permits:    permits,
			AdmittedAt: time.UnixMilli(admittedAt).UTC(),
			Waited:     time.Duration(waitedMS) * time.Millisecond,
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list admissions: %w", err)
	}

	return records, nil
}

// CountAdmissions returns the number of matching rows.
func (s *Store) CountAdmissions(ctx context.Context, q AdmissionQuery) (int, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	var count int
	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM admissions %s`, where), args...)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count admissions: %w", err)
	}
	return count, nil
}

// ResetAdmissions deletes matching rows and returns how many were removed.
func (s *Store) ResetAdmissions(ctx context.Context, q AdmissionQuery) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM admissions %s`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset admissions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset admissions: %w", err)
	}
	return affected, nil
}
