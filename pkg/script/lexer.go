package script

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// LineLexer splits a script line into direction, separator and field tokens.
// Rules are tried in order, so a decorated literal wins over bare text and a
// '|' inside quotes stays part of its field.
var LineLexer = lexer.MustSimple([]lexer.SimpleRule{
	// X"..." or "..."
	{Name: "Decorated", Pattern: `[A-Z]?"[^"]*"`},

	{Name: "Dir", Pattern: `[<>]`},
	{Name: "Pipe", Pattern: `\|`},

	// unbalanced quote
	{Name: "Quote", Pattern: `"`},

	// kept, fields are rebuilt from their tokens
	{Name: "Whitespace", Pattern: `\s+`},

	{Name: "Text", Pattern: `[^|"\s<>]+`},
})
