package batch

import "sort"

// ResultRow is the result for one word.
type ResultRow struct {
	Word        string
	LineNumber  int
	Count       int
	Translation string
	OriginNote  string
	NotFound    bool // the site had no entry; only kept when IncludeNotFound is set
}

// ResultTable holds at most one row per word.
type ResultTable struct {
	rows map[string]ResultRow
}

// NewResultTable returns an empty table.
func NewResultTable() *ResultTable {
	return &ResultTable{rows: make(map[string]ResultRow)}
}

// Upsert inserts row or replaces the row for the same word.
func (t *ResultTable) Upsert(row ResultRow) {
	t.rows[row.Word] = row
}

// Get returns the row for word.
func (t *ResultTable) Get(word string) (ResultRow, bool) {
	row, ok := t.rows[word]
	return row, ok
}

// Len returns the number of rows.
func (t *ResultTable) Len() int { return len(t.rows) }

// Rows returns all rows ordered by line number, then word.
func (t *ResultTable) Rows() []ResultRow {
	out := make([]ResultRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LineNumber != out[j].LineNumber {
			return out[i].LineNumber < out[j].LineNumber
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// Clone returns an independent copy.
func (t *ResultTable) Clone() *ResultTable {
	c := &ResultTable{rows: make(map[string]ResultRow, len(t.rows))}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}
