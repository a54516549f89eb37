// Package kmp implements Knuth-Morris-Pratt matching over byte streams that
// arrive one byte at a time.
package kmp

import "errors"

// MaxPatternLen bounds the token length accepted by NewMatcher. Patterns must
// be strictly shorter than this.
const MaxPatternLen = 256

var (
	// ErrEmptyPattern is returned for a zero-length pattern.
	ErrEmptyPattern = errors.New("kmp: empty pattern")
	// ErrPatternTooLong is returned when the pattern reaches MaxPatternLen.
	ErrPatternTooLong = errors.New("kmp: pattern too long")
)

// BuildLPS computes the failure function of pattern: lps[i] is the length of
// the longest proper prefix of pattern[:i+1] that is also its suffix.
func BuildLPS(pattern []byte) []int {
	if len(pattern) == 0 {
		return nil
	}

	lps := make([]int, len(pattern))
	length := 0

	for i := 1; i < len(pattern); {
		switch {
		case pattern[i] == pattern[length]:
			length++
			lps[i] = length
			i++
		case length != 0:
			// retry the same i against a shorter border
			length = lps[length-1]
		default:
			lps[i] = 0
			i++
		}
	}

	return lps
}

// Matcher tracks how much of a pattern has been seen at the tail of a byte
// stream. Each byte is examined exactly once.
type Matcher struct {
	pattern []byte
	lps     []int
	matched int
}

// NewMatcher prepares a matcher for pattern. The pattern is copied.
func NewMatcher(pattern []byte) (*Matcher, error) {
	if len(pattern) == 0 {
		return nil, ErrEmptyPattern
	}
	if len(pattern) >= MaxPatternLen {
		return nil, ErrPatternTooLong
	}

	p := append([]byte(nil), pattern...)
	return &Matcher{pattern: p, lps: BuildLPS(p)}, nil
}

// Feed consumes the next stream byte and reports whether the pattern has just
// been completed. After a match the matcher keeps its state, so overlapping
// occurrences are reported by later calls.
func (m *Matcher) Feed(b byte) bool {
	if m.matched == len(m.pattern) {
		m.matched = m.lps[m.matched-1]
	}

	for m.matched > 0 && b != m.pattern[m.matched] {
		m.matched = m.lps[m.matched-1]
	}

	if b == m.pattern[m.matched] {
		m.matched++
	}

	return m.matched == len(m.pattern)
}

// Matched returns the number of pattern bytes currently matched.
func (m *Matcher) Matched() int {
	return m.matched
}

// Reset forgets any partial match.
func (m *Matcher) Reset() {
	m.matched = 0
}

// Pattern returns a copy of the pattern being searched for.
func (m *Matcher) Pattern() []byte {
	return append([]byte(nil), m.pattern...)
}

// Index returns the end offset (exclusive) of the first occurrence of pattern
// in data, or -1. It runs the same streaming loop as Matcher.
func Index(data, pattern []byte) int {
	m, err := NewMatcher(pattern)
	if err != nil {
		return -1
	}
	for i, b := range data {
		if m.Feed(b) {
			return i + 1
		}
	}
	return -1
}
