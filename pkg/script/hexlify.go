package script

import (
	"encoding/hex"
	"strings"
)

// IsHexlified reports whether s is a non-empty, even-length run of hex digits.
func IsHexlified(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// Hexlify renders b as upper-case hex, two characters per byte.
func Hexlify(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// Unhexlify decodes a hex stream of either case.
func Unhexlify(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
