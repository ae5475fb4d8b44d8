package graphstore

import (
	"math"
	"strconv"
	"strings"
)

// escapeString escapes single quotes and backslashes for inlined
// Cypher string literals.
func escapeString(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '\'':
			b.WriteString("\\'")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// normalizeName lowercases and collapses whitespace for entity MERGE
// keys, so "Safety Stop" and "safety  stop" land on one node.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// vectorLiteral formats an embedding as a Cypher array literal.
func vectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', 7, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// cosine returns the cosine similarity of two vectors, zero when
// either is empty or lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// fulltextQuery sanitizes a user question into a full-text search
// expression: bare terms joined by OR, punctuation stripped.
func fulltextQuery(question string) string {
	fields := strings.Fields(question)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		term := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, f)
		if len(term) > 1 {
			terms = append(terms, term)
		}
	}
	return strings.Join(terms, " | ")
}
