package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyWindow(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	at := func(offset time.Duration, permits int) Admission {
		return Admission{Permits: permits, AdmittedAt: base.Add(offset)}
	}

	t.Run("WithinQuota", func(t *testing.T) {
		log := []Admission{at(0, 3), at(60*time.Second, 4), at(61*time.Second, 1)}
		require.Empty(t, VerifyWindow(log, 6, time.Minute))
	})

	t.Run("BoundaryTieIsExpired", func(t *testing.T) {
		log := []Admission{at(0, 6), at(time.Minute, 6)}
		require.Empty(t, VerifyWindow(log, 6, time.Minute))
	})

	t.Run("DetectsOvershoot", func(t *testing.T) {
		log := []Admission{at(0, 3), at(59*time.Second, 4)}
		violations := VerifyWindow(log, 6, time.Minute)
		require.Len(t, violations, 1)
		require.Equal(t, 7, violations[0].Permits)
		require.Equal(t, base.Add(59*time.Second), violations[0].WindowEnd)
	})

	t.Run("SameTimestampCountsTogether", func(t *testing.T) {
		log := []Admission{at(time.Second, 4), at(time.Second, 3)}
		require.Len(t, VerifyWindow(log, 6, time.Minute), 1)
	})

	t.Run("UnsortedInput", func(t *testing.T) {
		log := []Admission{at(30*time.Second, 2), at(0, 5)}
		require.Len(t, VerifyWindow(log, 6, time.Minute), 1)
	})
}

func TestRunReportAggregates(t *testing.T) {
	report := &RunReport{Admissions: []Admission{
		{Permits: 3},
		{Permits: 4, Waited: 58 * time.Second},
		{Permits: 1, Waited: time.Second},
	}}
	require.Equal(t, 8, report.TotalPermits())
	require.Equal(t, 58*time.Second, report.MaxWait())
}
