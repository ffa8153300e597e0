// Package pattern finds origin annotations in dictionary page text using an
// ordered list of user-authored regular expressions.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPatterns returns the built-in search patterns, highest priority first.
func DefaultPatterns() []string {
	return []string{
		`Origin:.{0,500}[Ff]rench`,
		`Etymology:.{0,500}[Ff]rench`,
		`Etymons:.{0,500}[Ff]rench`,
	}
}

var reSpaceRun = regexp.MustCompile(` {2,}`)

// Matcher applies compiled patterns in priority order.
type Matcher struct {
	sources  []string
	patterns []*regexp.Regexp
}

// Compile compiles patterns in order. The first pattern that matches wins.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{
		sources:  make([]string, 0, len(patterns)),
		patterns: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for i, p := range patterns {
		re, err := regexp.Compile(rewriteBounds(p))
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%q): %w", i, p, err)
		}
		m.sources = append(m.sources, p)
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(patterns []string) *Matcher {
	m, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Patterns returns the patterns as they were given to Compile.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.sources))
	copy(out, m.sources)
	return out
}

// Match returns the normalized text of the first pattern that matches body.
func (m *Matcher) Match(body string) (string, bool) {
	for _, re := range m.patterns {
		if loc := re.FindStringIndex(body); loc != nil {
			return Normalize(body[loc[0]:loc[1]]), true
		}
	}
	return "", false
}

// Match compiles patterns and applies them to body in one step.
func Match(patterns []string, body string) (string, bool, error) {
	m, err := Compile(patterns)
	if err != nil {
		return "", false, err
	}
	note, ok := m.Match(body)
	return note, ok, nil
}

// Normalize deletes every run of two or more spaces and every non-breaking space.
// Runs are removed entirely, not collapsed to a single space.
func Normalize(s string) string {
	s = reSpaceRun.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\u00a0", "")
}

// rewriteBounds turns the "{,n}" shorthand used by older pattern files into
// "{0,n}", which RE2 would otherwise read as a literal. Escaped braces and
// braces inside character classes are left alone.
func rewriteBounds(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 4)
	inClass := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			b.WriteByte(c)
			b.WriteByte(p[i+1])
			i++
			continue
		case inClass:
			if c == '[' && strings.HasPrefix(p[i:], "[:") {
				if end := strings.Index(p[i+2:], ":]"); end >= 0 {
					b.WriteString(p[i : i+2+end+2])
					i += 2 + end + 1
					continue
				}
			}
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			b.WriteByte(c)
			// a leading "]" (after an optional "^") is a literal member
			if strings.HasPrefix(p[i+1:], "^") {
				b.WriteByte('^')
				i++
			}
			if strings.HasPrefix(p[i+1:], "]") {
				b.WriteByte(']')
				i++
			}
			continue
		case c == '{':
			if n := openBoundDigits(p[i+1:]); n > 0 {
				b.WriteString("{0,")
				b.WriteString(p[i+2 : i+2+n])
				b.WriteByte('}')
				i += n + 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// openBoundDigits reports the number of digits in s when s starts with ",N}".
func openBoundDigits(s string) int {
	if !strings.HasPrefix(s, ",") {
		return 0
	}
	n := 0
	for n+1 < len(s) && s[n+1] >= '0' && s[n+1] <= '9' {
		n++
	}
	if n == 0 || n+1 >= len(s) || s[n+1] != '}' {
		return 0
	}
	return n
}
