package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/japaniel/wordorigin/pkg/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchWriterCommitsResultAndDone(t *testing.T) {
	db := setupTestDB(t)
	lines, counts := extract.Extract(sampleText)
	run, err := CreateRun(db, "sample.txt", "", "", lines.WordTotal())
	require.NoError(t, err)
	require.NoError(t, SaveLines(db, run.ID, lines, counts))

	bw := NewBatchWriter(db, 2, 0, nil)
	for _, word := range []string{"the", "gratin", "degree"} {
		err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			if err := UpsertResult(tx, Result{RunID: run.ID, Word: word, LineNumber: 1, Count: counts[word]}); err != nil {
				return err
			}
			return MarkWordDone(tx, run.ID, word)
		})
		require.NoError(t, err)
	}

	// Close and wait for pending batches to be committed. Use a timeout to avoid hanging tests.
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- bw.Close()
	}()
	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for batch commit/close")
	}

	results, err := GetResults(db, run.ID)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	pending, err := LoadPending(db, run.ID)
	require.NoError(t, err)
	assert.NotContains(t, pending, 1, "line 1 should be drained")
	assert.Equal(t, 3, pending.WordTotal())
}

func TestBatchWriterRollback(t *testing.T) {
	db := setupTestDB(t)
	run, err := CreateRun(db, "sample.txt", "", "", 1)
	require.NoError(t, err)

	bw := NewBatchWriter(db, 2, 0, nil)
	errCh := make(chan error, 1)
	bw.OnError = func(e error) {
		errCh <- e
	}

	// Batch of 2: First succeeds, second fails. Whole batch should roll back.
	bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		return UpsertResult(tx, Result{RunID: run.ID, Word: "gratin", LineNumber: 1})
	})
	bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		return fmt.Errorf("intentional error")
	})

	assert.Error(t, bw.Close(), "Close should report the failed batch")

	select {
	case err := <-errCh:
		assert.Error(t, err)
	default:
		t.Fatal("expected OnError to be called")
	}

	results, err := GetResults(db, run.ID)
	require.NoError(t, err)
	assert.Empty(t, results, "batch should have rolled back")
}

func TestBatchWriterFlushesBySize(t *testing.T) {
	bw := NewBatchWriter(nil, 5, 0, nil)
	var mu sync.Mutex
	called := 0
	for i := 0; i < 12; i++ {
		require.NoError(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			mu.Lock()
			called++
			mu.Unlock()
			return nil
		}))
	}
	require.NoError(t, bw.Close())
	assert.Equal(t, 12, called)
}

func TestBatchWriterFlushesOnInterval(t *testing.T) {
	bw := NewBatchWriter(nil, 10, 20*time.Millisecond, nil)
	defer bw.Close()
	ran := make(chan struct{})
	require.NoError(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		close(ran)
		return nil
	}))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("interval flush did not run the write")
	}
}

func TestBatchWriterFlush(t *testing.T) {
	bw := NewBatchWriter(nil, 100, 0, nil)
	defer bw.Close()

	var order []int
	for i := 0; i < 3; i++ {
		bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, bw.Flush())
	assert.Equal(t, []int{0, 1, 2}, order, "writes not committed in order")

	// an empty flush returns immediately
	require.NoError(t, bw.Flush())

	bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return errors.New("boom") })
	assert.EqualError(t, bw.Flush(), "boom")
	assert.Error(t, bw.Err(), "Err should keep the first failure")
}

func TestBatchWriterClosed(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0, nil)
	require.NoError(t, bw.Close())
	assert.ErrorIs(t, bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return nil }), ErrBatchWriterClosed)
	assert.ErrorIs(t, bw.Flush(), ErrBatchWriterClosed)
	assert.ErrorIs(t, bw.Close(), ErrBatchWriterClosed)
}
