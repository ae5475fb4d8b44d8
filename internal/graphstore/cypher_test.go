package graphstore

import (
	"math"
	"strings"
	"testing"
)

func TestEscapeString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quotes", "diver's knife", "diver\\'s knife"},
		{"backslash", `C:\dive`, `C:\\dive`},
		{"newline", "line1\nline2", "line1\\nline2"},
		{"carriage return dropped", "a\r\nb", "a\\nb"},
		{"clean", "safety stop", "safety stop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeString(tt.in); got != tt.want {
				t.Errorf("escapeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Safety Stop", "safety stop"},
		{"  safety   STOP  ", "safety stop"},
		{"BCD", "bcd"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVectorLiteral(t *testing.T) {
	if got := vectorLiteral(nil); got != "[]" {
		t.Errorf("empty vector = %q, want []", got)
	}

	got := vectorLiteral([]float32{1, -0.5, 0.25})
	if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, "]") {
		t.Fatalf("not bracketed: %q", got)
	}
	parts := strings.Split(got[1:len(got)-1], ",")
	if len(parts) != 3 {
		t.Fatalf("expected 3 components, got %d in %q", len(parts), got)
	}
	if parts[0] != "1" || parts[1] != "-0.5" || parts[2] != "0.25" {
		t.Errorf("unexpected components: %v", parts)
	}
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	if got := cosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("cosine(a, a) = %v, want 1", got)
	}
	if got := cosine(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("cosine(orthogonal) = %v, want 0", got)
	}
	if got := cosine(a, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
	if got := cosine(nil, nil); got != 0 {
		t.Errorf("empty vectors = %v, want 0", got)
	}
	if got := cosine([]float32{2, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("scaled parallel = %v, want 1", got)
	}
}

func TestFulltextQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is a safety stop?", "What | is | safety | stop"},
		{"max depth: 40m!", "max | depth | 40m"},
		{"a ? !", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := fulltextQuery(tt.in); got != tt.want {
			t.Errorf("fulltextQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
