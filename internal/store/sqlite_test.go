package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/priorart-cli/internal/model"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRunStore_CreateAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunKindFetch)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunKindFetch, got.Kind)
	assert.Nil(t, got.Summary)
}

func TestRunStore_CompleteRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunKindFetch)
	require.NoError(t, err)

	summary := &model.RunSummary{
		Requested:     10,
		ClaimsOK:      7,
		ClaimsOKRatio: 0.7,
		StatusCounts:  map[string]int{"ok": 7, "fetch_blocked_403": 3},
		OutputPath:    "prior_art_enriched.json",
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 7, got.Summary.ClaimsOK)
	assert.Equal(t, 3, got.Summary.StatusCounts["fetch_blocked_403"])
}

func TestRunStore_CompleteRun_Unknown(t *testing.T) {
	st := newTestStore(t)
	err := st.CompleteRun(context.Background(), "no-such-run", model.RunStatusComplete, nil)
	assert.Error(t, err)
}

func TestRunStore_GetRun_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetRun(context.Background(), "no-such-run")
	assert.Error(t, err)
}

func TestRunStore_ListRunsFiltered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fetchRun, err := st.CreateRun(ctx, model.RunKindFetch)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, model.RunKindMatrix)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, fetchRun.ID, model.RunStatusFailed, &model.RunSummary{Error: "gate"}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	fetches, err := st.ListRuns(ctx, RunFilter{Kind: model.RunKindFetch})
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, fetchRun.ID, fetches[0].ID)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "gate", failed[0].Summary.Error)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRunStore_RecordOutcomes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunKindFetch)
	require.NoError(t, err)

	outcomes := []model.RecordOutcome{
		{RunID: run.ID, PatentNumber: "CN1B", Status: model.ClaimsStatus("fetch_blocked_403"), Backend: "", Attempts: 4},
		{RunID: run.ID, PatentNumber: "US1B2", Status: model.ClaimsStatusOK, Backend: "google", Attempts: 1},
	}
	require.NoError(t, st.RecordOutcomes(ctx, run.ID, outcomes))

	got, err := st.GetOutcomes(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by patent number.
	assert.Equal(t, "CN1B", got[0].PatentNumber)
	assert.Equal(t, 4, got[0].Attempts)
	assert.Equal(t, "google", got[1].Backend)
	assert.Equal(t, model.ClaimsStatusOK, got[1].Status)
}
