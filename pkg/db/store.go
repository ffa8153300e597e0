package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/wordorigin/pkg/extract"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Fixed-width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string { return time.Now().UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CreateRun inserts a pending run and returns it.
func CreateRun(db DBExecutor, sourcePath, digest, siteRoot string, total int) (Run, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return Run{}, fmt.Errorf("sourcePath must be non-empty")
	}
	if total < 0 {
		return Run{}, fmt.Errorf("total must not be negative, got %d", total)
	}
	ts := now()
	run := Run{
		ID:         NewRunID(),
		SourcePath: sourcePath,
		Digest:     digest,
		SiteRoot:   siteRoot,
		Status:     StatusPending,
		Total:      total,
		CreatedAt:  parseTime(ts),
		UpdatedAt:  parseTime(ts),
	}
	_, err := db.Exec(`INSERT INTO runs (id, source_path, digest, site_root, status, processed, total, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		run.ID, run.SourcePath, run.Digest, run.SiteRoot, run.Status, run.Total, ts, ts)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

const runColumns = `id, source_path, digest, site_root, status, processed, total, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var created, updated string
	if err := s.Scan(&r.ID, &r.SourcePath, &r.Digest, &r.SiteRoot, &r.Status, &r.Processed, &r.Total, &created, &updated); err != nil {
		return Run{}, err
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return r, nil
}

// GetRun returns the run with the given id, or ErrRunNotFound.
func GetRun(db DBExecutor, id string) (Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func ListRuns(db DBExecutor) ([]Run, error) {
	rows, err := db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRunStatus records the status and the number of words processed so far.
func UpdateRunStatus(db DBExecutor, id, status string, processed int) error {
	switch status {
	case StatusPending, StatusRunning, StatusCompleted, StatusCancelled, StatusFailed:
	default:
		return fmt.Errorf("unknown run status %q", status)
	}
	res, err := db.Exec(`UPDATE runs SET status = ?, processed = ?, updated_at = ? WHERE id = ?`,
		status, processed, now(), id)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SaveLines stores the pending words of a run with their line and position,
// and the word counts. Call it inside a transaction for large inputs.
func SaveLines(db DBExecutor, runID string, lines extract.LineMap, counts extract.WordCounts) error {
	for _, n := range lines.Numbers() {
		for pos, w := range lines[n].Words {
			if _, err := db.Exec(`INSERT INTO run_words (run_id, word, line_number, position) VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, word) DO NOTHING`, runID, w, n, pos); err != nil {
				return fmt.Errorf("save word %q: %w", w, err)
			}
		}
	}
	for w, c := range counts {
		if _, err := db.Exec(`INSERT INTO word_counts (run_id, word, count) VALUES (?, ?, ?)
		ON CONFLICT(run_id, word) DO UPDATE SET count = excluded.count`, runID, w, c); err != nil {
			return fmt.Errorf("save count %q: %w", w, err)
		}
	}
	return nil
}

// LoadPending rebuilds the line map of words not yet processed. Lines whose
// words are all done are absent.
func LoadPending(db DBExecutor, runID string) (extract.LineMap, error) {
	rows, err := db.Query(`SELECT word, line_number FROM run_words WHERE run_id = ? ORDER BY line_number, position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := extract.LineMap{}
	for rows.Next() {
		var w string
		var n int
		if err := rows.Scan(&w, &n); err != nil {
			return nil, err
		}
		e := lines[n]
		e.Number = n
		e.Words = append(e.Words, w)
		lines[n] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// LoadWordCounts returns the word counts saved for a run.
func LoadWordCounts(db DBExecutor, runID string) (extract.WordCounts, error) {
	rows, err := db.Query(`SELECT word, count FROM word_counts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := extract.WordCounts{}
	for rows.Next() {
		var w string
		var c int
		if err := rows.Scan(&w, &c); err != nil {
			return nil, err
		}
		counts[w] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// MarkWordDone removes word from the pending list of a run.
func MarkWordDone(db DBExecutor, runID, word string) error {
	_, err := db.Exec(`DELETE FROM run_words WHERE run_id = ? AND word = ?`, runID, word)
	return err
}

// UpsertResult inserts or replaces the result for (run, word).
func UpsertResult(db DBExecutor, r Result) error {
	if strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("runID must be non-empty")
	}
	if strings.TrimSpace(r.Word) == "" {
		return fmt.Errorf("word must be non-empty")
	}
	notFound := 0
	if r.NotFound {
		notFound = 1
	}
	_, err := db.Exec(`INSERT INTO results (run_id, word, line_number, count, translation, origin, not_found, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, word) DO UPDATE SET
	  line_number = excluded.line_number,
	  count = excluded.count,
	  translation = excluded.translation,
	  origin = excluded.origin,
	  not_found = excluded.not_found,
	  updated_at = excluded.updated_at`,
		r.RunID, r.Word, r.LineNumber, r.Count, r.Translation, r.OriginNote, notFound, now())
	if err != nil {
		return fmt.Errorf("upsert result %q: %w", r.Word, err)
	}
	return nil
}

// GetResults returns the results of a run ordered by line number, then word.
func GetResults(db DBExecutor, runID string) ([]Result, error) {
	rows, err := db.Query(`SELECT word, line_number, count, translation, origin, not_found, updated_at
	FROM results WHERE run_id = ? ORDER BY line_number, word`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		r := Result{RunID: runID}
		var notFound int
		var updated string
		if err := rows.Scan(&r.Word, &r.LineNumber, &r.Count, &r.Translation, &r.OriginNote, &notFound, &updated); err != nil {
			return nil, err
		}
		r.NotFound = notFound != 0
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearResults deletes every result of a run and returns how many were removed.
// The pending list is untouched.
func ClearResults(db DBExecutor, runID string) (int64, error) {
	res, err := db.Exec(`DELETE FROM results WHERE run_id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("clear results of %s: %w", runID, err)
	}
	return res.RowsAffected()
}
