package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/japaniel/wordorigin/pkg/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rows = []batch.ResultRow{
	{Word: "gratin", LineNumber: 1, Count: 1, Translation: "gratin, n.", OriginNote: "Origin:fromFrench"},
	{Word: "degree", LineNumber: 1, Count: 2, Translation: "degree, n.", OriginNote: "Etymology:Frenchdegré; compare Latin"},
	{Word: "beef", LineNumber: 3, Count: 1, Translation: "Not found", OriginNote: "Not found", NotFound: true},
}

func TestWriteCSVDropsNotFound(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, rows, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want := "Word;Line Number;Count;Translation;Origin\n" +
		"gratin;1;1;gratin, n.;Origin:fromFrench\n" +
		"degree;1;2;degree, n.;\"Etymology:Frenchdegré; compare Latin\"\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVIncludeNotFound(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, rows, Options{IncludeNotFound: true})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, buf.String(), "beef;3;1;Not found;Not found\n")
}

func TestWriteCSVSeparator(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteCSV(&buf, rows[:1], Options{Separator: '\t'})
	require.NoError(t, err)
	assert.Equal(t, "Word\tLine Number\tCount\tTranslation\tOrigin\ngratin\t1\t1\tgratin, n.\tOrigin:fromFrench\n", buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(&buf, nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "Word;Line Number;Count;Translation;Origin\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	n, err := WriteFile(path, rows, Options{IncludeNotFound: true})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gratin;1;1;")

	_, err = WriteFile(filepath.Join(t.TempDir(), "missing", "out.csv"), rows, Options{})
	assert.Error(t, err)
}
