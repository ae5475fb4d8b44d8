package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/nicozefrench/diveteacher/internal/converter"
)

func hybridDoc() *converter.Document {
	return &converter.Document{
		Filename: "manual.pdf",
		Elements: []converter.Element{
			{Kind: converter.ElementHeading, Level: 1, Text: "Open Water Diver", Page: 1},
			{Kind: converter.ElementHeading, Level: 2, Text: "Ascents", Page: 2},
			{Kind: converter.ElementParagraph, Text: strings.Repeat("Ascend slowly at all times. ", 30), Page: 2},
			{Kind: converter.ElementHeading, Level: 2, Text: "Safety Stops", Page: 3},
			{Kind: converter.ElementParagraph, Text: strings.Repeat("Stop at five meters for three minutes. ", 30), Page: 3},
		},
	}
}

func TestHybridHeadingContext(t *testing.T) {
	opts := testOptions(3000, 0)
	chunks, err := NewHybridChunker().Chunk(context.Background(), hybridDoc(), opts)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	if !strings.HasPrefix(chunks[0].ContextualizedText, "Open Water Diver > Ascents\n\n") {
		t.Errorf("chunk 0 context = %q", chunks[0].ContextualizedText[:60])
	}
	if !strings.HasPrefix(chunks[1].ContextualizedText, "Open Water Diver > Safety Stops\n\n") {
		t.Errorf("chunk 1 context = %q", chunks[1].ContextualizedText[:60])
	}
	if got := chunks[0].Metadata.HeadingPath(); got != "Open Water Diver > Ascents" {
		t.Errorf("heading path = %q", got)
	}
	if chunks[0].Metadata.PageStart != 2 || chunks[0].Metadata.PageEnd != 2 {
		t.Errorf("pages = %d-%d, want 2-2", chunks[0].Metadata.PageStart, chunks[0].Metadata.PageEnd)
	}
}

func TestHybridHeadingStackReplacement(t *testing.T) {
	doc := &converter.Document{
		Elements: []converter.Element{
			{Kind: converter.ElementHeading, Level: 1, Text: "Rescue Diver"},
			{Kind: converter.ElementHeading, Level: 2, Text: "Tired Diver"},
			{Kind: converter.ElementParagraph, Text: strings.Repeat("Approach from behind. ", 40)},
			{Kind: converter.ElementHeading, Level: 1, Text: "Divemaster"},
			{Kind: converter.ElementParagraph, Text: strings.Repeat("Brief the group first. ", 40)},
		},
	}

	chunks, err := NewHybridChunker().Chunk(context.Background(), doc, testOptions(3000, 0))
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	// A new level-1 heading must clear the whole stack.
	if got := chunks[1].Metadata.HeadingPath(); got != "Divemaster" {
		t.Errorf("heading path = %q, want Divemaster", got)
	}
}

func TestHybridMergesSmallSections(t *testing.T) {
	doc := &converter.Document{
		Elements: []converter.Element{
			{Kind: converter.ElementHeading, Level: 1, Text: "Equipment"},
			{Kind: converter.ElementHeading, Level: 2, Text: "Masks"},
			{Kind: converter.ElementParagraph, Text: "Low volume preferred."},
			{Kind: converter.ElementHeading, Level: 2, Text: "Fins"},
			{Kind: converter.ElementParagraph, Text: "Open heel with boots."},
		},
	}

	opts := testOptions(3000, 0)
	opts.MinTokens = 64

	chunks, err := NewHybridChunker().Chunk(context.Background(), doc, opts)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 merged chunk", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Low volume") || !strings.Contains(chunks[0].Text, "Open heel") {
		t.Errorf("merged chunk text = %q", chunks[0].Text)
	}
}

func TestHybridSplitsOversizedSection(t *testing.T) {
	doc := &converter.Document{
		Elements: []converter.Element{
			{Kind: converter.ElementHeading, Level: 1, Text: "Physics"},
			{Kind: converter.ElementParagraph, Text: strings.Repeat("Pressure doubles at ten meters. ", 50)},
		},
	}

	// 25 tokens -> 100 char budget forces a split.
	opts := testOptions(25, 0)
	chunks, err := NewHybridChunker().Chunk(context.Background(), doc, opts)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	for i, c := range chunks {
		if !strings.HasPrefix(c.ContextualizedText, "Physics\n\n") {
			t.Errorf("chunk %d lost heading context", i)
		}
		if c.Metadata.TotalChunks != len(chunks) || c.Index != i {
			t.Errorf("chunk %d numbering = %+v", i, c.Metadata)
		}
	}
}

func TestHybridFallsBackToMarkdown(t *testing.T) {
	doc := &converter.Document{
		Markdown: "# Navigation\n\n## Compass\n\nSet a reciprocal heading.\n",
	}

	opts := testOptions(3000, 0)
	chunks, err := NewHybridChunker().Chunk(context.Background(), doc, opts)
	if err != nil {
		t.Fatalf("Chunk failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if got := chunks[0].Metadata.HeadingPath(); got != "Navigation > Compass" {
		t.Errorf("heading path = %q", got)
	}
}

func TestElementsFromMarkdownCodeFence(t *testing.T) {
	md := "# Tables\n\n```\n# not a heading\n```\n\nDepth table follows."
	elements := elementsFromMarkdown(md)

	headings := 0
	for _, el := range elements {
		if el.Kind == converter.ElementHeading {
			headings++
		}
	}
	if headings != 1 {
		t.Errorf("got %d headings, want 1 (fence content must not split)", headings)
	}
}
