package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WriteFunc performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// BatchWriter buffers write callbacks and commits them in batches, one
// transaction per batch. Batches are committed in submission order by a
// single goroutine, so a word's result and its removal from the pending list
// land in the same or an earlier transaction than anything submitted later.
type BatchWriter struct {
	db     *sql.DB
	size   int
	logger *zap.Logger

	mu      sync.Mutex
	pending []WriteFunc
	closed  bool

	commits chan commit
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup

	// OnError is called for every failed batch.
	OnError func(error)

	errMu    sync.Mutex
	firstErr error
}

type commit struct {
	writes []WriteFunc
	done   chan error // nil unless a Flush waits for this commit
}

// NewBatchWriter starts a writer on db. A batch is committed when it reaches
// bufferSize callbacks, and every flushInterval if that is positive.
// A nil db runs callbacks with a nil transaction.
func NewBatchWriter(db *sql.DB, bufferSize int, flushInterval time.Duration, logger *zap.Logger) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bw := &BatchWriter{
		db:      db,
		size:    bufferSize,
		logger:  logger,
		pending: make([]WriteFunc, 0, bufferSize),
		commits: make(chan commit, 2),
		stop:    make(chan struct{}),
	}

	bw.wg.Add(1)
	go bw.committer()

	if flushInterval > 0 {
		bw.ticker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.loop()
	}
	return bw
}

// Submit enqueues w. It blocks while the committer is two batches behind.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.pending = append(bw.pending, w)
	if len(bw.pending) >= bw.size {
		bw.sendLocked(nil)
	}
	return nil
}

// Flush commits everything submitted so far and returns the error of that
// last batch.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	done := make(chan error, 1)
	bw.sendLocked(done)
	bw.mu.Unlock()
	return <-done
}

// sendLocked hands the pending callbacks to the committer; bw.mu must be held.
// With a done channel an empty batch is sent too, so Flush waits for the
// batches queued before it.
func (bw *BatchWriter) sendLocked(done chan error) {
	if len(bw.pending) == 0 && done == nil {
		return
	}
	c := commit{writes: bw.pending, done: done}
	bw.pending = make([]WriteFunc, 0, bw.size)
	bw.commits <- c
}

func (bw *BatchWriter) committer() {
	defer bw.wg.Done()
	for c := range bw.commits {
		err := bw.execute(c.writes)
		if err != nil {
			bw.errMu.Lock()
			if bw.firstErr == nil {
				bw.firstErr = err
			}
			bw.errMu.Unlock()
			bw.logger.Error("batch write failed", zap.Int("writes", len(c.writes)), zap.Error(err))
			if bw.OnError != nil {
				bw.OnError(err)
			}
		}
		if c.done != nil {
			c.done <- err
		}
	}
}

func (bw *BatchWriter) execute(writes []WriteFunc) error {
	if len(writes) == 0 {
		return nil
	}
	// Commits outlive the callers' contexts: a cancelled batch still saves
	// what it processed.
	ctx := context.Background()

	if bw.db == nil {
		for _, w := range writes {
			if err := w(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range writes {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d writes): %w", len(writes), err)
	}
	return nil
}

func (bw *BatchWriter) loop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.stop:
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			if !bw.closed {
				bw.sendLocked(nil)
			}
			bw.mu.Unlock()
		}
	}
}

// Err returns the first commit error seen so far.
func (bw *BatchWriter) Err() error {
	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

// Close commits what is pending, stops the writer and returns the first
// commit error seen over its lifetime.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	bw.sendLocked(nil)
	bw.mu.Unlock()

	close(bw.stop)
	close(bw.commits)
	bw.wg.Wait()
	return bw.Err()
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
