package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	lineComment       = '#'
	blockCommentBegin = "---"
	blockCommentEnd   = "!--"
)

// Line is a script line that survived comment removal and macro expansion.
type Line struct {
	No   int // 1-based position in the source
	Text string
}

// ReadScript reads commands from r. Blank lines and comments are dropped and
// macro definitions are consumed; every returned line has its macros
// expanded.
func ReadScript(r io.Reader) ([]Line, error) {
	var (
		lines   []Line
		macros  = Macros{}
		inBlock bool
		blockAt int
		no      int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		no++
		text := strings.TrimSpace(sc.Text())

		switch {
		case text == blockCommentBegin:
			if inBlock {
				return nil, fmt.Errorf("%w: line %d: nested %q (block opened on line %d)", ErrBlockComment, no, blockCommentBegin, blockAt)
			}
			inBlock, blockAt = true, no
			continue
		case text == blockCommentEnd:
			if !inBlock {
				return nil, fmt.Errorf("%w: line %d: %q without %q", ErrBlockComment, no, blockCommentEnd, blockCommentBegin)
			}
			inBlock = false
			continue
		case inBlock:
			continue
		}

		text = stripComment(text)
		if text == "" {
			continue
		}
		if macros.Define(text) {
			continue
		}
		lines = append(lines, Line{No: no, Text: macros.Expand(text)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if inBlock {
		return nil, fmt.Errorf("%w: block opened on line %d never closed", ErrBlockComment, blockAt)
	}
	return lines, nil
}

// ReadScriptFile opens path and reads it with ReadScript.
func ReadScriptFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()
	return ReadScript(f)
}

// stripComment cuts a '#' comment that starts outside quotes and trims the
// rest.
func stripComment(text string) string {
	inQuote := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			inQuote = !inQuote
		case lineComment:
			if !inQuote {
				return strings.TrimSpace(text[:i])
			}
		}
	}
	return text
}
