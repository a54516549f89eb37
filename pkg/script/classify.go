package script

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// taggedOrPlain matches the only quoted forms bare text may take.
var taggedOrPlain = regexp.MustCompile(`^([HRF])?"[^"]*"$`)

// Classify infers the type of a trimmed field from its decorator and returns
// the undecorated payload. Checks that depend on the payload (hex digits,
// numeric size, regex syntax, file presence) are applied here, so a field
// that fails them is TokenInvalid.
func Classify(field string) (string, TokenType) {
	if field == "" {
		return "", TokenEmpty
	}

	if v, ok := undecorate(field, ""); ok {
		if v == "" {
			return v, TokenStringDelimitedEmpty
		}
		return v, TokenStringDelimited
	}

	for _, t := range []TokenType{TokenRegex, TokenToken, TokenLine, TokenSize, TokenHexStream, TokenFilename} {
		v, ok := undecorate(field, t.decorator())
		if !ok {
			continue
		}
		if !payloadValid(v, t) {
			return v, TokenInvalid
		}
		return v, t
	}

	if strings.Contains(field, `"`) && !taggedOrPlain.MatchString(field) {
		return field, TokenInvalid
	}
	return field, TokenStringRaw
}

func undecorate(field, prefix string) (string, bool) {
	start := prefix + `"`
	if len(field) < len(start)+1 || !strings.HasPrefix(field, start) || !strings.HasSuffix(field, `"`) {
		return "", false
	}
	return field[len(start) : len(field)-1], true
}

func payloadValid(v string, t TokenType) bool {
	if v == "" {
		return false
	}
	switch t {
	case TokenSize:
		_, err := strconv.ParseUint(v, 10, 64)
		return err == nil
	case TokenHexStream:
		return IsHexlified(v)
	case TokenRegex:
		_, err := regexp.Compile(v)
		return err == nil
	case TokenFilename:
		path, _, _ := strings.Cut(v, ",")
		return fileExistsAndNotEmpty(path)
	default:
		return true
	}
}

func fileExistsAndNotEmpty(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}
