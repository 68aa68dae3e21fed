//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quotagate/quotagate/internal/config"
	"github.com/quotagate/quotagate/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := openMemoryStore(t)
	require.Equal(t, "libsql", store.Driver())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "postgres", Path: ":memory:"})
	require.ErrorContains(t, err, "unsupported store driver")
}

func TestAdmissionJournal(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	record := func(runID, source string, permits int, offset, waited time.Duration) {
		_, err := store.RecordAdmission(ctx, runID, source, core.Admission{
			Permits:    permits,
			AdmittedAt: base.Add(offset),
			Waited:     waited,
		})
		require.NoError(t, err)
	}
	record("run-a", "demo", 3, 0, 0)
	record("run-a", "demo", 4, 60*time.Second, 59*time.Second)
	record("run-b", "stress", 1, time.Second, 0)

	_, err := store.RecordAdmission(ctx, "run-a", "demo", core.Admission{Permits: 0})
	require.Error(t, err)

	runA, err := store.ListAdmissions(ctx, AdmissionQuery{RunID: "run-a"})
	require.NoError(t, err)
	require.Len(t, runA, 2)
	require.Equal(t, 3, runA[0].Admission.Permits)
	require.Equal(t, base, runA[0].Admission.AdmittedAt)
	require.Equal(t, 59*time.Second, runA[1].Admission.Waited)

	all, err := store.ListAdmissions(ctx, AdmissionQuery{All: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "run-b", all[1].RunID, "rows are ordered by admission time")

	limited, err := store.ListAdmissions(ctx, AdmissionQuery{All: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	count, err := store.CountAdmissions(ctx, AdmissionQuery{Source: "stress"})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	removed, err := store.ResetAdmissions(ctx, AdmissionQuery{RunID: "run-a"})
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	count, err = store.CountAdmissions(ctx, AdmissionQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
