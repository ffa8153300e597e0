package db

import (
	"time"

	"github.com/japaniel/wordorigin/pkg/batch"
)

// Run statuses. A run is pending until its first batch ends; cancelled and
// failed runs can be resumed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Run is one batch over one source file.
type Run struct {
	ID         string
	SourcePath string
	Digest     string
	SiteRoot   string
	Status     string
	Processed  int
	Total      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Resumable reports whether the run still has work to do.
func (r Run) Resumable() bool {
	return r.Status != StatusCompleted
}

// Result is a stored result row.
type Result struct {
	RunID       string
	Word        string
	LineNumber  int
	Count       int
	Translation string
	OriginNote  string
	NotFound    bool
	UpdatedAt   time.Time
}

// ResultFromRow converts a batch row for storage under runID.
func ResultFromRow(runID string, row batch.ResultRow) Result {
	return Result{
		RunID:       runID,
		Word:        row.Word,
		LineNumber:  row.LineNumber,
		Count:       row.Count,
		Translation: row.Translation,
		OriginNote:  row.OriginNote,
		NotFound:    row.NotFound,
	}
}

// Row converts r back to a batch row.
func (r Result) Row() batch.ResultRow {
	return batch.ResultRow{
		Word:        r.Word,
		LineNumber:  r.LineNumber,
		Count:       r.Count,
		Translation: r.Translation,
		OriginNote:  r.OriginNote,
		NotFound:    r.NotFound,
	}
}
