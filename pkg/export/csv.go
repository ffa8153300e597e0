// Package export writes result tables as delimiter-separated text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/japaniel/wordorigin/pkg/batch"
)

// DefaultSeparator matches the files spreadsheet users expect from the tool.
const DefaultSeparator = ';'

// Header is the first record of every export.
var Header = []string{"Word", "Line Number", "Count", "Translation", "Origin"}

// Options controls an export.
type Options struct {
	// IncludeNotFound keeps rows for words the dictionary does not know.
	IncludeNotFound bool
	// Separator defaults to DefaultSeparator.
	Separator rune
}

// WriteCSV writes a header and one record per row, in the order given.
// It returns the number of rows written.
func WriteCSV(w io.Writer, rows []batch.ResultRow, opts Options) (int, error) {
	sep := opts.Separator
	if sep == 0 {
		sep = DefaultSeparator
	}
	cw := csv.NewWriter(w)
	cw.Comma = sep

	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	n := 0
	for _, r := range rows {
		if r.NotFound && !opts.IncludeNotFound {
			continue
		}
		rec := []string{r.Word, strconv.Itoa(r.LineNumber), strconv.Itoa(r.Count), r.Translation, r.OriginNote}
		if err := cw.Write(rec); err != nil {
			return n, fmt.Errorf("write %q: %w", r.Word, err)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}

// WriteFile exports rows to path, replacing any existing file.
func WriteFile(path string, rows []batch.ResultRow, opts Options) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := WriteCSV(f, rows, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
