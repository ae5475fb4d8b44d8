package chunker

import (
	"context"
	"strings"

	"github.com/nicozefrench/diveteacher/internal/converter"
)

const hybridChunkerName = "hybrid"

// HybridChunker splits by document structure: sections bounded by
// headings, undersized neighbors merged, oversized sections split with
// the recursive splitter. Each chunk's contextualized text is prefixed
// with its ancestor heading path so isolated chunks keep their place
// in the document.
type HybridChunker struct{}

// NewHybridChunker creates a new hybrid structural chunker.
func NewHybridChunker() *HybridChunker {
	return &HybridChunker{}
}

// Name returns the strategy identifier.
func (c *HybridChunker) Name() string {
	return hybridChunkerName
}

// section is a run of content elements under one heading path.
type section struct {
	headings  []string
	parts     []string
	pageStart int
	pageEnd   int
}

func (s *section) text() string {
	return strings.Join(s.parts, "\n\n")
}

func (s *section) addPage(page int) {
	if page == 0 {
		return
	}
	if s.pageStart == 0 || page < s.pageStart {
		s.pageStart = page
	}
	if page > s.pageEnd {
		s.pageEnd = page
	}
}

// Chunk splits the document along its structural tree.
func (c *HybridChunker) Chunk(ctx context.Context, doc *converter.Document, opts Options) ([]Chunk, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	elements := doc.Elements
	if len(elements) == 0 {
		// Markdown-only conversion result; reconstruct structure from
		// the markdown itself.
		elements = elementsFromMarkdown(doc.Markdown)
	}

	sections := buildSections(elements)
	sections = mergeSmallSections(sections, opts.MinTokens)

	var chunks []Chunk
	for _, s := range sections {
		text := strings.TrimSpace(s.text())
		if text == "" {
			continue
		}

		prefix := strings.Join(s.headings, " > ")

		pieces := []string{text}
		if len(text) > opts.maxChars() {
			pieces = splitRecursive(text, opts.maxChars(), recursiveSeparators)
			pieces = applyOverlap(pieces, opts.OverlapChars)
		}

		for _, p := range pieces {
			ctxText := p
			if prefix != "" {
				ctxText = prefix + "\n\n" + p
			}
			chunks = append(chunks, Chunk{
				Text:               p,
				ContextualizedText: ctxText,
				Metadata: Metadata{
					Headings:  append([]string(nil), s.headings...),
					PageStart: s.pageStart,
					PageEnd:   s.pageEnd,
				},
			})
		}
	}

	return finalize(chunks, hybridChunkerName, opts), nil
}

var _ Chunker = (*HybridChunker)(nil)

// buildSections walks the element tree and groups content under its
// ancestor heading path.
func buildSections(elements []converter.Element) []*section {
	type heading struct {
		level int
		text  string
	}

	var stack []heading
	var sections []*section
	var cur *section

	path := func() []string {
		out := make([]string, len(stack))
		for i, h := range stack {
			out[i] = h.text
		}
		return out
	}

	for _, el := range elements {
		if el.Kind == converter.ElementHeading {
			for len(stack) > 0 && stack[len(stack)-1].level >= el.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, heading{level: el.Level, text: el.Text})
			cur = nil
			continue
		}

		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}

		if cur == nil {
			cur = &section{headings: path()}
			sections = append(sections, cur)
		}
		cur.parts = append(cur.parts, text)
		cur.addPage(el.Page)
	}

	return sections
}

// mergeSmallSections folds undersized sections into their predecessor
// when both sit under the same top-level heading.
func mergeSmallSections(sections []*section, minTokens int) []*section {
	if minTokens <= 0 || len(sections) < 2 {
		return sections
	}

	var out []*section
	for _, s := range sections {
		if len(out) > 0 && CountTokens(s.text()) < minTokens && sameTopHeading(out[len(out)-1], s) {
			prev := out[len(out)-1]
			prev.parts = append(prev.parts, s.parts...)
			prev.addPage(s.pageStart)
			prev.addPage(s.pageEnd)
			continue
		}
		out = append(out, s)
	}
	return out
}

func sameTopHeading(a, b *section) bool {
	if len(a.headings) == 0 || len(b.headings) == 0 {
		return len(a.headings) == len(b.headings)
	}
	return a.headings[0] == b.headings[0]
}
