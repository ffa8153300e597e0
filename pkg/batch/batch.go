// Package batch drives origin lookups over every extracted word, one word at a
// time, with cooperative cancellation and a resumable snapshot of what is left.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/japaniel/wordorigin/pkg/extract"
	"github.com/japaniel/wordorigin/pkg/resolver"
	"go.uber.org/zap"
)

// ResolveFunc looks up a single word. The search root and patterns are bound by
// the caller; (*resolver.Resolver).Lookup has this signature.
type ResolveFunc func(ctx context.Context, word string) (resolver.Outcome, error)

// Progress describes the word being looked up. An event with Done=false is sent
// before the lookup, and one with Done=true and the updated count after it.
type Progress struct {
	Word    string
	Line    int
	Label   string
	Current int // words attempted so far
	Total   int
	Done    bool
}

// Status is the terminal state of a batch.
type Status int

const (
	StatusCompleted Status = iota
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Report is returned when a batch ends, however it ends.
type Report struct {
	Status  Status
	Err     error // set when Status is StatusFailed
	Results *ResultTable
	// Remaining holds the words not yet attempted, keyed by line. Fully drained
	// lines are removed; a line interrupted by cancellation keeps its unattempted words.
	Remaining extract.LineMap

	Processed    int // words attempted, whatever their outcome
	Total        int
	Unclassified int
	Failed       int // lookups that ended with a transport error
}

// BatchError is a typed error for batch-level failures.
type BatchError struct{ msg string }

func (e *BatchError) Error() string { return e.msg }

var (
	// ErrTooManyFailures stops a batch after MaxConsecutiveFailures transport errors in a row.
	ErrTooManyFailures = &BatchError{"too many consecutive lookup failures"}
	// ErrRunActive is returned by Runner.Start while another batch is running.
	ErrRunActive = &BatchError{"a batch is already running"}
)

// Driver resolves words in line order and collects result rows.
type Driver struct {
	Resolve ResolveFunc
	// IncludeNotFound keeps rows for words the site has no entry for.
	IncludeNotFound bool
	// MaxConsecutiveFailures turns a run of transport errors into a fatal error.
	// 0 means transport errors never stop the batch.
	MaxConsecutiveFailures int

	Logger *zap.Logger

	OnProgress func(Progress)
	// OnResult is called for every row inserted into the result table.
	OnResult func(ResultRow)
	// OnWordDone is called after a word has been attempted and removed from the snapshot.
	OnWordDone func(line int, word string)
}

// NewDriver creates a Driver that keeps not-found rows.
func NewDriver(resolve ResolveFunc) *Driver {
	return &Driver{
		Resolve:         resolve,
		IncludeNotFound: true,
	}
}

// Run processes a private copy of lines in ascending line order and, within a
// line, in first-occurrence order. cancel is polled before every word; a
// cancelled or failed batch still returns the rows collected so far.
func (d *Driver) Run(ctx context.Context, lines extract.LineMap, counts extract.WordCounts, cancel *Canceler) *Report {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	snapshot := lines.Clone()
	rep := &Report{
		Results:   NewResultTable(),
		Remaining: snapshot,
		Total:     snapshot.WordTotal(),
	}
	if d.Resolve == nil {
		rep.Status = StatusFailed
		rep.Err = errors.New("batch: no resolve function configured")
		return rep
	}

	logger.Info("batch started", zap.Int("lines", len(snapshot)), zap.Int("words", rep.Total))
	consecutive := 0

	for _, number := range snapshot.Numbers() {
		entry := snapshot[number]
		for len(entry.Words) > 0 {
			word := entry.Words[0]

			if cancel.Requested() || ctx.Err() != nil {
				rep.Status = StatusCancelled
				logger.Info("batch cancelled",
					zap.Int("processed", rep.Processed), zap.Int("total", rep.Total), zap.Int("line", number))
				return rep
			}

			d.progress(Progress{
				Word:    word,
				Line:    number,
				Label:   fmt.Sprintf("Searching origin for %q ...", word),
				Current: rep.Processed,
				Total:   rep.Total,
			})

			out, err := d.Resolve(ctx, word)
			if errors.Is(err, resolver.ErrAccessDenied) || (err == nil && out.Kind == resolver.KindAccessDenied) {
				// The word stays in the snapshot so a resumed batch retries it.
				rep.Status = StatusFailed
				rep.Err = fmt.Errorf("batch stopped at %q (line %d): %w", word, number, resolver.ErrAccessDenied)
				logger.Error("dictionary access denied", zap.String("word", word), zap.Int("line", number))
				return rep
			}
			if err != nil && ctx.Err() != nil {
				// Interrupted lookup: not an attempt.
				rep.Status = StatusCancelled
				logger.Info("batch cancelled during lookup", zap.String("word", word), zap.Error(err))
				return rep
			}

			entry.Words = entry.Words[1:]
			snapshot[number] = entry
			rep.Processed++

			if err != nil {
				rep.Failed++
				consecutive++
				logger.Warn("lookup failed", zap.String("word", word), zap.Int("line", number), zap.Error(err))
			} else {
				consecutive = 0
				d.record(rep, number, word, counts, out)
			}

			if d.OnWordDone != nil {
				d.OnWordDone(number, word)
			}
			d.progress(Progress{
				Word:    word,
				Line:    number,
				Label:   fmt.Sprintf("Searched origin for %q", word),
				Current: rep.Processed,
				Total:   rep.Total,
				Done:    true,
			})

			if err != nil && d.MaxConsecutiveFailures > 0 && consecutive >= d.MaxConsecutiveFailures {
				rep.Status = StatusFailed
				rep.Err = fmt.Errorf("%w (%d in a row): %w", ErrTooManyFailures, consecutive, err)
				logger.Error("batch stopped after repeated failures", zap.Int("consecutive", consecutive))
				return rep
			}
		}
		delete(snapshot, number)
	}

	rep.Status = StatusCompleted
	logger.Info("batch finished",
		zap.Int("processed", rep.Processed), zap.Int("results", rep.Results.Len()),
		zap.Int("unclassified", rep.Unclassified), zap.Int("failed", rep.Failed))
	return rep
}

func (d *Driver) record(rep *Report, line int, word string, counts extract.WordCounts, out resolver.Outcome) {
	row := ResultRow{
		Word:        word,
		LineNumber:  line,
		Count:       counts[word],
		Translation: out.Translation,
		OriginNote:  out.OriginNote,
	}
	switch out.Kind {
	case resolver.KindFound:
	case resolver.KindNotFound:
		if !d.IncludeNotFound {
			return
		}
		row.NotFound = true
	default:
		rep.Unclassified++
		return
	}
	rep.Results.Upsert(row)
	if d.OnResult != nil {
		d.OnResult(row)
	}
}

func (d *Driver) progress(p Progress) {
	if d.OnProgress != nil {
		d.OnProgress(p)
	}
}
