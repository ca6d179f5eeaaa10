package patch

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePointer splits an RFC 6901 JSON Pointer into its unescaped
// reference tokens. The empty pointer addresses the document root and
// yields no tokens.
func ParsePointer(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("pointer must start with '/': %q", path)
	}
	raw := strings.Split(path[1:], "/")
	tokens := make([]string, len(raw))
	for i, tok := range raw {
		tokens[i] = unescapeToken(tok)
	}
	return tokens, nil
}

// unescapeToken applies the RFC 6901 escapes: ~1 becomes '/', then ~0
// becomes '~'. The order matters; reversing it would turn "~01" into "/".
func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	return strings.ReplaceAll(tok, "~0", "~")
}

// arrayIndex resolves a reference token against an array of the given
// length. "-" means one past the end and is only valid when appending.
func arrayIndex(tok string, length int, appending bool) (int, error) {
	if tok == "-" {
		if !appending {
			return 0, fmt.Errorf("'-' index is only valid for add")
		}
		return length, nil
	}
	// RFC 6901 requires canonical decimals: no sign, no leading zeros.
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	idx, err := strconv.Atoi(tok)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	limit := length
	if !appending {
		limit = length - 1
	}
	if idx > limit {
		return 0, fmt.Errorf("array index %d out of range (len %d)", idx, length)
	}
	return idx, nil
}
