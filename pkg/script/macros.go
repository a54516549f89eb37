package script

import (
	"regexp"
	"strings"
)

var (
	macroDef = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*:=\s*(\S.*)$`)
	macroRef = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Macros maps constant names to their replacement text.
type Macros map[string]string

// Define records a NAME := value line. It reports false when line is not a
// macro definition. The value is expanded against earlier definitions.
func (m Macros) Define(line string) bool {
	sub := macroDef.FindStringSubmatch(line)
	if sub == nil {
		return false
	}
	m[sub[1]] = m.Expand(strings.TrimSpace(sub[2]))
	return true
}

// Expand replaces every $NAME with its value. Unknown names are left as-is.
func (m Macros) Expand(line string) string {
	if len(m) == 0 || !strings.Contains(line, "$") {
		return line
	}
	return macroRef.ReplaceAllStringFunc(line, func(ref string) string {
		if v, ok := m[ref[1:]]; ok {
			return v
		}
		return ref
	})
}
