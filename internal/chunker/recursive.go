package chunker

import (
	"context"
	"strings"

	"github.com/nicozefrench/diveteacher/internal/converter"
)

const recursiveChunkerName = "recursive"

// recursiveSeparators is the split preference order: paragraph breaks,
// line breaks, sentence ends, word breaks, then hard character cuts.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveChunker splits the markdown export by recursive character
// splitting with a character overlap between adjacent chunks.
type RecursiveChunker struct{}

// NewRecursiveChunker creates a new recursive chunker.
func NewRecursiveChunker() *RecursiveChunker {
	return &RecursiveChunker{}
}

// Name returns the strategy identifier.
func (c *RecursiveChunker) Name() string {
	return recursiveChunkerName
}

// Chunk splits the document's markdown into size-bounded chunks.
func (c *RecursiveChunker) Chunk(ctx context.Context, doc *converter.Document, opts Options) ([]Chunk, error) {
	text := strings.TrimSpace(doc.Markdown)
	if text == "" {
		return []Chunk{}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	pieces := splitRecursive(text, opts.maxChars(), recursiveSeparators)
	pieces = applyOverlap(pieces, opts.OverlapChars)

	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, Chunk{Text: p})
	}

	return finalize(chunks, recursiveChunkerName, opts), nil
}

var _ Chunker = (*RecursiveChunker)(nil)

// splitRecursive splits text into pieces of at most maxChars, trying
// each separator in order before falling back to hard cuts.
func splitRecursive(text string, maxChars int, seps []string) []string {
	if len(text) <= maxChars {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	if len(seps) == 0 || seps[0] == "" {
		return hardCut(text, maxChars)
	}

	sep := seps[0]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return splitRecursive(text, maxChars, seps[1:])
	}

	var out []string
	var cur strings.Builder

	flush := func() {
		if strings.TrimSpace(cur.String()) != "" {
			out = append(out, cur.String())
		}
		cur.Reset()
	}

	for _, part := range parts {
		if len(part) > maxChars {
			flush()
			out = append(out, splitRecursive(part, maxChars, seps[1:])...)
			continue
		}
		if cur.Len()+len(part) > maxChars && cur.Len() > 0 {
			flush()
		}
		cur.WriteString(part)
	}
	flush()

	return out
}

// hardCut splits text into maxChars-sized pieces on rune boundaries.
func hardCut(text string, maxChars int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > 0 {
		n := maxChars
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// applyOverlap prefixes each piece after the first with the tail of the
// previous raw piece, so adjacent chunks share context across the cut.
func applyOverlap(pieces []string, overlapChars int) []string {
	if overlapChars <= 0 || len(pieces) < 2 {
		return pieces
	}

	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		out[i] = runeTail(pieces[i-1], overlapChars) + pieces[i]
	}
	return out
}

// runeTail returns the last n runes of s.
func runeTail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
