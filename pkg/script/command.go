package script

import (
	"fmt"
	"strings"
)

// Direction selects the order of the two operations of a command.
type Direction uint8

const (
	DirectionInvalid Direction = iota
	// SendRecv sends the first field, then receives the second.
	SendRecv
	// RecvSend receives the first field, then sends the second.
	RecvSend
)

func (d Direction) String() string {
	switch d {
	case SendRecv:
		return "SEND_RECV"
	case RecvSend:
		return "RECV_SEND"
	default:
		return "INVALID"
	}
}

// Symbol returns the leading character that selects d.
func (d Direction) Symbol() string {
	switch d {
	case SendRecv:
		return ">"
	case RecvSend:
		return "<"
	default:
		return "?"
	}
}

// TokenType is the classified kind of a command field.
type TokenType uint8

const (
	TokenInvalid TokenType = iota
	TokenEmpty
	TokenHexStream
	TokenRegex
	TokenFilename
	TokenToken
	TokenLine
	TokenSize
	TokenStringDelimited
	TokenStringDelimitedEmpty
	TokenStringRaw
)

var tokenTypeNames = [...]string{
	TokenInvalid:              "INVALID",
	TokenEmpty:                "EMPTY",
	TokenHexStream:            "HEXSTREAM",
	TokenRegex:                "REGEX",
	TokenFilename:             "FILENAME",
	TokenToken:                "TOKEN",
	TokenLine:                 "LINE",
	TokenSize:                 "SIZE",
	TokenStringDelimited:      "STRING_DELIMITED",
	TokenStringDelimitedEmpty: "STRING_DELIMITED_EMPTY",
	TokenStringRaw:            "STRING_RAW",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// hasPayload reports whether a field of type t carries anything to send or
// receive.
func (t TokenType) hasPayload() bool {
	return t != TokenEmpty && t != TokenStringDelimitedEmpty
}

// decorator returns the prefix that marks t in script text.
func (t TokenType) decorator() string {
	switch t {
	case TokenRegex:
		return "R"
	case TokenToken:
		return "T"
	case TokenLine:
		return "L"
	case TokenSize:
		return "S"
	case TokenHexStream:
		return "H"
	case TokenFilename:
		return "F"
	default:
		return ""
	}
}

// Command is one parsed script line. Values hold the undecorated payloads.
type Command struct {
	Direction Direction
	Values    [2]string
	Types     [2]TokenType
	// Line is the 1-based source line, zero when unknown.
	Line int
}

// NewCommand returns an unvalidated command.
func NewCommand() Command {
	return Command{Types: [2]TokenType{TokenInvalid, TokenInvalid}}
}

// String renders the command in canonical script form. Parsing the result
// yields an identical command.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Direction.Symbol())
	b.WriteByte(' ')
	b.WriteString(decorate(c.Values[0], c.Types[0]))
	if c.Types[1] != TokenEmpty && c.Types[1] != TokenInvalid {
		b.WriteString(" | ")
		b.WriteString(decorate(c.Values[1], c.Types[1]))
	}
	return strings.TrimRight(b.String(), " ")
}

func decorate(value string, t TokenType) string {
	switch t {
	case TokenEmpty, TokenInvalid:
		return ""
	case TokenStringRaw:
		return value
	default:
		return t.decorator() + `"` + value + `"`
	}
}
