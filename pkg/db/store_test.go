package db

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/japaniel/wordorigin/pkg/batch"
	"github.com/japaniel/wordorigin/pkg/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "1  The gratin degree\n2  A cat, the degree!\n3  beef\n"

func TestCreateAndGetRun(t *testing.T) {
	db := setupTestDB(t)

	run, err := CreateRun(db, "sample.txt", "abc", "https://www.oed.com", 6)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusPending, run.Status)

	got, err := GetRun(db, run.ID)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(run, got), "run mismatch (-want +got)")
	assert.True(t, got.Resumable(), "pending run should be resumable")
}

func TestCreateRunValidation(t *testing.T) {
	db := setupTestDB(t)
	_, err := CreateRun(db, "  ", "", "", 0)
	assert.Error(t, err, "empty source path")
	_, err = CreateRun(db, "a.txt", "", "", -1)
	assert.Error(t, err, "negative total")
}

func TestGetRunNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := GetRun(db, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, UpdateRunStatus(db, "missing", StatusCompleted, 1), ErrRunNotFound)
}

func TestUpdateRunStatus(t *testing.T) {
	db := setupTestDB(t)
	run, err := CreateRun(db, "sample.txt", "", "", 6)
	require.NoError(t, err)

	require.NoError(t, UpdateRunStatus(db, run.ID, StatusCancelled, 2))
	got, err := GetRun(db, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 2, got.Processed)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt), "updated_at %v before created_at %v", got.UpdatedAt, got.CreatedAt)

	assert.Error(t, UpdateRunStatus(db, run.ID, "exploded", 0))

	require.NoError(t, UpdateRunStatus(db, run.ID, StatusCompleted, 6))
	got, err = GetRun(db, run.ID)
	require.NoError(t, err)
	assert.False(t, got.Resumable(), "completed run should not be resumable")
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	ids := map[string]bool{}
	for _, p := range []string{"a.txt", "b.txt", "c.txt"} {
		run, err := CreateRun(db, p, "", "", 0)
		require.NoError(t, err)
		ids[run.ID] = true
	}

	runs, err := ListRuns(db)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.True(t, ids[r.ID], "unexpected run %q", r.ID)
		if i > 0 {
			assert.False(t, runs[i-1].CreatedAt.Before(r.CreatedAt), "runs not newest first")
		}
	}
}

func TestSaveAndLoadPending(t *testing.T) {
	db := setupTestDB(t)
	lines, counts := extract.Extract(sampleText)
	run, err := CreateRun(db, "sample.txt", "", "", lines.WordTotal())
	require.NoError(t, err)
	require.NoError(t, SaveLines(db, run.ID, lines, counts))

	pending, err := LoadPending(db, run.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(lines, pending), "pending mismatch (-want +got)")
	gotCounts, err := LoadWordCounts(db, run.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(counts, gotCounts), "counts mismatch (-want +got)")

	// finishing words shrinks lines, and drained lines disappear
	for _, w := range []string{"the", "beef"} {
		require.NoError(t, MarkWordDone(db, run.ID, w))
	}
	pending, err = LoadPending(db, run.ID)
	require.NoError(t, err)
	want := extract.LineMap{
		1: {Number: 1, Words: []string{"gratin", "degree"}},
		2: {Number: 2, Words: []string{"a", "cat"}},
	}
	assert.Empty(t, cmp.Diff(want, pending), "pending after done mismatch (-want +got)")
}

func TestResultsUpsertAndClear(t *testing.T) {
	db := setupTestDB(t)
	run, err := CreateRun(db, "sample.txt", "", "", 3)
	require.NoError(t, err)

	rows := []batch.ResultRow{
		{Word: "gratin", LineNumber: 1, Count: 1, Translation: "gratin, n.", OriginNote: "Origin:fromFrench"},
		{Word: "beef", LineNumber: 3, Count: 1, Translation: "Not found", OriginNote: "Not found", NotFound: true},
		{Word: "degree", LineNumber: 1, Count: 2, Translation: "degree, n.", OriginNote: "Etymology:Frenchdegré"},
	}
	for _, r := range rows {
		require.NoError(t, UpsertResult(db, ResultFromRow(run.ID, r)))
	}
	// a second write for the same word replaces the first
	rows[0].OriginNote = "Origin:Anglo-Normanandfrench"
	require.NoError(t, UpsertResult(db, ResultFromRow(run.ID, rows[0])))

	got, err := GetResults(db, run.ID)
	require.NoError(t, err)
	var gotRows []batch.ResultRow
	for _, r := range got {
		assert.Equal(t, run.ID, r.RunID)
		assert.False(t, r.UpdatedAt.IsZero())
		gotRows = append(gotRows, r.Row())
	}
	want := []batch.ResultRow{rows[2], rows[0], rows[1]}
	assert.Empty(t, cmp.Diff(want, gotRows), "results mismatch (-want +got)")

	assert.Error(t, UpsertResult(db, Result{RunID: run.ID}), "empty word")
	assert.Error(t, UpsertResult(db, Result{Word: "x"}), "empty run id")

	n, err := ClearResults(db, run.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	got, err = GetResults(db, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	// clearing leaves the pending list alone and is repeatable
	n, err = ClearResults(db, run.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
