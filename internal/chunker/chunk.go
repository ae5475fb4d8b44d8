// Package chunker splits converted documents into ingestion-sized
// chunks, either by recursive character splitting or by document
// structure with heading context.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicozefrench/diveteacher/internal/converter"
)

// Chunk is one ingestion unit produced from a document.
type Chunk struct {
	// Index is the zero-based position in the sequence.
	Index int

	// Text is the raw chunk text.
	Text string

	// ContextualizedText is the text prefixed with its ancestor heading
	// path. This is what gets embedded and ingested.
	ContextualizedText string

	// Metadata carries provenance and accounting for the chunk. Its
	// ChunkIndex is 1-based, matching what gets written to the graph.
	Metadata Metadata
}

// Metadata contains provenance and accounting information for a chunk.
type Metadata struct {
	Filename    string
	UploadID    string
	ChunkIndex  int
	TotalChunks int
	NumTokens   int
	Strategy    string

	// Headings is the ancestor heading path, outermost first.
	Headings []string

	// PageStart and PageEnd bound the source pages. Zero when unknown.
	PageStart int
	PageEnd   int
}

// HeadingPath formats the ancestor headings as "H1 > H2 > H3".
func (m Metadata) HeadingPath() string {
	return strings.Join(m.Headings, " > ")
}

// Options configures chunking behavior.
type Options struct {
	// Filename and UploadID are stamped onto every chunk's metadata.
	Filename string
	UploadID string

	// MaxTokens is the target maximum tokens per chunk.
	MaxTokens int

	// OverlapChars is the character overlap between adjacent chunks
	// produced by size-based splitting.
	OverlapChars int

	// MinTokens is the merge threshold for undersized structural chunks.
	MinTokens int
}

// charsPerToken is the character budget assumed per token when sizing
// chunks before exact token counting.
const charsPerToken = 4

// maxChars returns the character budget derived from MaxTokens.
func (o Options) maxChars() int {
	if o.MaxTokens < 1 {
		return 12000
	}
	return o.MaxTokens * charsPerToken
}

// Chunker splits a converted document into chunks.
type Chunker interface {
	// Name returns the strategy identifier.
	Name() string

	// Chunk splits the document. Returned chunks have dense slice
	// indexes 0..N-1, 1-based Metadata.ChunkIndex, and TotalChunks set
	// to N on every chunk.
	Chunk(ctx context.Context, doc *converter.Document, opts Options) ([]Chunk, error)
}

// ForStrategy returns the chunker for a configured strategy name.
func ForStrategy(strategy string) (Chunker, error) {
	switch strategy {
	case "recursive":
		return NewRecursiveChunker(), nil
	case "hybrid":
		return NewHybridChunker(), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy %q", strategy)
	}
}

// finalize stamps indexes, totals, token counts, and provenance onto a
// chunk sequence. Shared by both strategies.
func finalize(chunks []Chunk, strategy string, opts Options) []Chunk {
	for i := range chunks {
		if chunks[i].ContextualizedText == "" {
			chunks[i].ContextualizedText = chunks[i].Text
		}
		chunks[i].Index = i
		chunks[i].Metadata.ChunkIndex = i + 1
		chunks[i].Metadata.TotalChunks = len(chunks)
		chunks[i].Metadata.Filename = opts.Filename
		chunks[i].Metadata.UploadID = opts.UploadID
		chunks[i].Metadata.Strategy = strategy
		chunks[i].Metadata.NumTokens = CountTokens(chunks[i].ContextualizedText)
	}
	return chunks
}
