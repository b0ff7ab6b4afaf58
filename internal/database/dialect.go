package database

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
)

// quoteWith wraps name in q, doubling any embedded q.
func quoteWith(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string, escapeBackslash bool) string {
	if escapeBackslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteList(d core.Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = d.QuoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}

// tuple renders "(p1, p2, ...)" for n placeholders starting at argument next.
func tuple(d core.Dialect, next, n int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(next + i))
	}
	b.WriteByte(')')
	return b.String()
}

// buildInsert renders "<verb> <table> (cols) VALUES (...), (...)<suffix>".
func buildInsert(d core.Dialect, verb, table string, columns []string, rows int, suffix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s) VALUES ", verb, d.QuoteIdentifier(table), quoteList(d, columns))
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple(d, r*len(columns)+1, len(columns)))
	}
	b.WriteString(suffix)
	return b.String()
}

// buildDeleteByKeys renders a delete matching any of keys primary key tuples.
// Single column keys use a plain IN list, composite keys a row value list.
func buildDeleteByKeys(d core.Dialect, table string, key []string, keys int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %s WHERE ", d.QuoteIdentifier(table))
	if len(key) == 1 {
		b.WriteString(d.QuoteIdentifier(key[0]))
		b.WriteString(" IN ")
		b.WriteString(tuple(d, 1, keys))
		return b.String()
	}
	fmt.Fprintf(&b, "(%s) IN (", quoteList(d, key))
	for r := 0; r < keys; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple(d, r*len(key)+1, len(key)))
	}
	b.WriteByte(')')
	return b.String()
}
