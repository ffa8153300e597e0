package extract

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// LineEntry holds the words first seen on a numbered source line.
type LineEntry struct {
	Number int
	Words  []string // lowercase, in order of first occurrence
}

// LineMap maps a line number to its entry.
type LineMap map[int]LineEntry

// WordCounts maps a lowercase word to the number of times it occurs in the text.
type WordCounts map[string]int

// A numbered line starts with the original line number followed by at least two
// whitespace characters. Everything else (translations, notes) is ignored.
var reNumbered = regexp.MustCompile(`^\s*(\d+)\s{2,}(.*)$`)

// Extract parses line-numbered text into per-line word lists and global word counts.
// A word is listed only under the line of its first occurrence in the whole document;
// later occurrences only increase its count.
func Extract(text string) (LineMap, WordCounts) {
	lines := make(LineMap)
	counts := make(WordCounts)

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		m := reNumbered.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		number, err := strconv.Atoi(m[1])
		if err != nil {
			// digits that overflow int are not a usable line reference
			continue
		}

		entry, ok := lines[number]
		if !ok {
			entry = LineEntry{Number: number, Words: []string{}}
		}
		for _, word := range Words(m[2]) {
			if _, seen := counts[word]; !seen {
				entry.Words = append(entry.Words, word)
			}
			counts[word]++
		}
		lines[number] = entry
	}
	return lines, counts
}

// ExtractFile reads path and extracts its numbered lines.
func ExtractFile(path string) (LineMap, WordCounts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	lines, counts := Extract(string(data))
	return lines, counts, nil
}

// Words splits s into maximal runs of ASCII letters, lowercased.
func Words(s string) []string {
	var words []string
	var current strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			current.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			current.WriteByte(c + ('a' - 'A'))
		default:
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

// Clone returns a deep copy so the copy can be drained without touching m.
func (m LineMap) Clone() LineMap {
	out := make(LineMap, len(m))
	for n, e := range m {
		words := make([]string, len(e.Words))
		copy(words, e.Words)
		out[n] = LineEntry{Number: e.Number, Words: words}
	}
	return out
}

// Numbers returns the line numbers in ascending order.
func (m LineMap) Numbers() []int {
	nums := make([]int, 0, len(m))
	for n := range m {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// WordTotal returns the number of words listed across all lines.
func (m LineMap) WordTotal() int {
	total := 0
	for _, e := range m {
		total += len(e.Words)
	}
	return total
}

// Total returns the number of word occurrences counted.
func (c WordCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
