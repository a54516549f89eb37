package script

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
)

// lineAST is the raw shape of a script line: a direction followed by at most
// one unquoted separator.
type lineAST struct {
	Dir    string     `parser:"@Dir"`
	First  []string   `parser:"@( Decorated | Text | Dir | Quote | Whitespace )*"`
	Second *secondAST `parser:"@@?"`
}

type secondAST struct {
	Pipe  string   `parser:"@Pipe"`
	Items []string `parser:"@( Decorated | Text | Dir | Quote | Whitespace )*"`
}

// Parser turns script lines into validated commands.
type Parser struct {
	line *participle.Parser[lineAST]
}

// NewParser builds the line grammar.
func NewParser() (*Parser, error) {
	p, err := participle.Build[lineAST](
		participle.Lexer(LineLexer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}
	return &Parser{line: p}, nil
}

// Split parses the grammar of one line without classifying its fields. It
// returns the direction, the trimmed field texts and whether a separator was
// present.
func (p *Parser) Split(line string) (Direction, [2]string, bool, error) {
	var fields [2]string

	text := strings.TrimSpace(line)
	if text == "" {
		return DirectionInvalid, fields, false, fmt.Errorf("empty line")
	}
	switch text[0] {
	case '>', '<':
	default:
		return DirectionInvalid, fields, false, fmt.Errorf("line must start with '>' or '<'")
	}

	ast, err := p.line.ParseString("", text)
	if err != nil {
		return DirectionInvalid, fields, false, err
	}

	dir := SendRecv
	if ast.Dir == "<" {
		dir = RecvSend
	}
	fields[0] = strings.TrimSpace(strings.Join(ast.First, ""))
	if ast.Second == nil {
		return dir, fields, false, nil
	}
	fields[1] = strings.TrimSpace(strings.Join(ast.Second.Items, ""))
	return dir, fields, true, nil
}

// ParseLine parses, classifies and validates one line. lineNo is recorded in
// the command and in any error.
func (p *Parser) ParseLine(line string, lineNo int) (Command, error) {
	cmd := NewCommand()
	cmd.Line = lineNo

	dir, fields, sep, err := p.Split(line)
	if err != nil {
		return cmd, &ParseError{Line: lineNo, Input: line, Reason: err.Error()}
	}
	if sep && (fields[0] == "" || fields[1] == "") {
		return cmd, &ParseError{Line: lineNo, Input: line, Reason: "separator with an empty side"}
	}

	cmd.Direction = dir
	for i, f := range fields {
		cmd.Values[i], cmd.Types[i] = Classify(f)
	}

	if reason := violation(cmd); reason != "" {
		return cmd, &SemanticError{Line: lineNo, Input: line, Command: cmd, Reason: reason}
	}
	return cmd, nil
}

// Parse is ParseLine for a line without a known position.
func (p *Parser) Parse(line string) (Command, error) {
	return p.ParseLine(line, 0)
}
