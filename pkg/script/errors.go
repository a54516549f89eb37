package script

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a malformed line.
	ErrParse = errors.New("script: parse error")
	// ErrSemantic marks a well-formed line that can never execute.
	ErrSemantic = errors.New("script: semantic error")
	// ErrMismatch marks received data that did not match the expectation.
	ErrMismatch = errors.New("script: content mismatch")
	// ErrBlockComment marks a nested or unmatched block comment marker.
	ErrBlockComment = errors.New("script: unbalanced block comment")
)

// ParseError reports a line the grammar rejects.
type ParseError struct {
	Line   int
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Input)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// SemanticError reports a field type that is illegal for its position.
type SemanticError struct {
	Line    int
	Input   string
	Command Command
	Reason  string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("line %d: %s [%s:%s]: %q",
		e.Line, e.Reason, e.Command.Types[0], e.Command.Types[1], e.Input)
}

func (e *SemanticError) Unwrap() error { return ErrSemantic }

// StepError reports the failing half of an executed command.
type StepError struct {
	Line  int
	Op    string // "send" or "receive"
	Field int    // 0 or 1
	Type  TokenType
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("line %d: %s field %d (%s): %v", e.Line, e.Op, e.Field+1, e.Type, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
