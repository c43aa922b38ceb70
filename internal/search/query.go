// Package search compiles free text and structured filters into ranked,
// paginated queries over the replica's full-text index and attribute
// tables.
//
// Free text follows a small grammar:
//
//   - Text inside a matched pair of double quotes is an exact phrase.
//     Typographic quotes are treated as straight quotes.
//   - Every other whitespace-separated word is a prefix term.
//   - Clauses are OR-combined; the index ranks records matching more of
//     them higher.
//
// Structured filters always combine with AND, and multi-valued filters
// require every listed value (see Filters).
package search

import (
	"strings"
	"unicode"
)

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"„", `"`, // double low-9 quotation mark
	"‟", `"`,
	"″", `"`, // double prime
	"«", `"`,
	"»", `"`,
)

// BuildMatchExpression compiles user text into an FTS5 MATCH expression.
// It returns "" when the text contains nothing searchable; callers must
// treat that as "match nothing" rather than "no constraint".
func BuildMatchExpression(q string) string {
	q = quoteReplacer.Replace(q)
	parts := strings.Split(q, `"`)
	quotes := len(parts) - 1

	var (
		clauses []string
		plain   []string
		seen    = map[string]struct{}{}
	)
	add := func(c string) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		clauses = append(clauses, c)
	}

	for i, p := range parts {
		// Odd parts sit between a pair of quotes, except the tail after an
		// unmatched final quote.
		isPhrase := i%2 == 1 && !(quotes%2 == 1 && i == quotes)
		if !isPhrase {
			plain = append(plain, p)
			continue
		}
		if phrase := strings.Join(strings.Fields(p), " "); searchable(phrase) {
			add(quoteTerm(phrase))
		}
	}

	for _, tok := range strings.Fields(strings.Join(plain, " ")) {
		if searchable(tok) {
			add(quoteTerm(tok) + "*")
		}
	}
	return strings.Join(clauses, " OR ")
}

// quoteTerm renders s as an FTS5 string literal.
func quoteTerm(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func searchable(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
