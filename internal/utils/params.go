// Package utils provides small, generic helpers for parsing request
// parameters. They carry no domain logic.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty
// or not an integer.
//
//	n := utils.AtoiDefault("42", 0) // 42
//	n = utils.AtoiDefault("", 10)   // 10
//	n = utils.AtoiDefault("x", 5)   // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParseOptionalInt parses a trimmed integer parameter. An empty value
// yields (0, true); a malformed one yields (0, false).
func ParseOptionalInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SplitMulti flattens repeated and comma-separated parameter values:
// ["a,b", " c ", ""] becomes ["a", "b", "c"]. Order is kept; blanks are
// dropped. It returns nil when nothing remains.
func SplitMulti(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
