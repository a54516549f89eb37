package kmp

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func TestBuildLPS(t *testing.T) {
	tests := []struct {
		pattern string
		want    []int
	}{
		{"ABABCABAB", []int{0, 0, 1, 2, 0, 1, 2, 3, 4}},
		{"AAAA", []int{0, 1, 2, 3}},
		{"AABAACAABAA", []int{0, 1, 0, 1, 2, 0, 1, 2, 3, 4, 5}},
		{"ABCDE", []int{0, 0, 0, 0, 0}},
		{"A", []int{0}},
	}

	for _, tt := range tests {
		got := BuildLPS([]byte(tt.pattern))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("BuildLPS(%q) = %v, want %v", tt.pattern, got, tt.want)
		}
	}

	if got := BuildLPS(nil); got != nil {
		t.Errorf("BuildLPS(nil) = %v, want nil", got)
	}
}

func TestNewMatcherRejectsBadPatterns(t *testing.T) {
	if _, err := NewMatcher(nil); !errors.Is(err, ErrEmptyPattern) {
		t.Fatalf("NewMatcher(nil) error = %v, want ErrEmptyPattern", err)
	}
	if _, err := NewMatcher(make([]byte, MaxPatternLen)); !errors.Is(err, ErrPatternTooLong) {
		t.Fatalf("NewMatcher(max) error = %v, want ErrPatternTooLong", err)
	}
	if _, err := NewMatcher(make([]byte, MaxPatternLen-1)); err != nil {
		t.Fatalf("NewMatcher(max-1) unexpected error: %v", err)
	}
}

func TestMatcherFindsEarliestOccurrence(t *testing.T) {
	tests := []struct {
		stream  string
		pattern string
		want    int
	}{
		{"xxOKyy", "OK", 4},
		{"AABAACAADAABAABA", "AABA", 4},
		{"ABABDABACDABABCABAB", "ABABCABAB", 19},
		{"ABABABC", "ABABC", 7},
		{"no match here", "READY", -1},
		{"READ READ READY", "READY", 15},
		{"aaaaab", "aab", 6},
	}

	for _, tt := range tests {
		if got := Index([]byte(tt.stream), []byte(tt.pattern)); got != tt.want {
			t.Errorf("Index(%q, %q) = %d, want %d", tt.stream, tt.pattern, got, tt.want)
		}
	}
}

func TestMatcherAgreesWithBytesIndex(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	alphabet := []byte("ab")

	for i := 0; i < 500; i++ {
		pattern := make([]byte, 1+rng.Intn(5))
		for j := range pattern {
			pattern[j] = alphabet[rng.Intn(len(alphabet))]
		}
		stream := make([]byte, rng.Intn(40))
		for j := range stream {
			stream[j] = alphabet[rng.Intn(len(alphabet))]
		}

		want := bytes.Index(stream, pattern)
		if want >= 0 {
			want += len(pattern)
		}
		if got := Index(stream, pattern); got != want {
			t.Fatalf("Index(%q, %q) = %d, want %d", stream, pattern, got, want)
		}
	}
}

func TestMatcherReportsOverlappingMatches(t *testing.T) {
	m, err := NewMatcher([]byte("aa"))
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	var hits []int
	for i, b := range []byte("aaaa") {
		if m.Feed(b) {
			hits = append(hits, i)
		}
	}
	if !reflect.DeepEqual(hits, []int{1, 2, 3}) {
		t.Fatalf("hits = %v, want [1 2 3]", hits)
	}

	m.Reset()
	if m.Matched() != 0 {
		t.Fatalf("Matched after Reset = %d", m.Matched())
	}
}

func TestRingWraps(t *testing.T) {
	r := NewRing(4)
	for _, b := range []byte("abc") {
		_ = r.WriteByte(b)
	}
	if got := string(r.Bytes()); got != "abc" {
		t.Fatalf("Bytes = %q, want abc", got)
	}

	for _, b := range []byte("defg") {
		_ = r.WriteByte(b)
	}
	if got := string(r.Bytes()); got != "defg" {
		t.Fatalf("Bytes after wrap = %q, want defg", got)
	}
	if r.Len() != 4 || r.Total() != 7 || r.Cap() != 4 {
		t.Fatalf("Len/Total/Cap = %d/%d/%d, want 4/7/4", r.Len(), r.Total(), r.Cap())
	}

	r.Reset()
	if r.Len() != 0 || len(r.Bytes()) != 0 {
		t.Fatalf("ring not empty after Reset")
	}
}
