package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nicozefrench/diveteacher/internal/chunker"
	"github.com/nicozefrench/diveteacher/internal/converter"
	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/status"
)

type fakeValidator struct {
	err error
}

func (f *fakeValidator) Validate(path string) error { return f.err }

type fakeConverter struct {
	doc *converter.Document
	err error
}

func (f *fakeConverter) Name() string { return "fake" }

func (f *fakeConverter) Convert(ctx context.Context, path string) (*converter.Document, error) {
	return f.doc, f.err
}

func (f *fakeConverter) Warmup(ctx context.Context) error  { return nil }
func (f *fakeConverter) Healthy(ctx context.Context) error { return nil }

type fakeIngester struct {
	episodes []graphstore.EpisodeInput
	failAt   map[int]bool
	failAll  bool
}

func (f *fakeIngester) AddEpisode(ctx context.Context, in graphstore.EpisodeInput) (*graphstore.IngestResult, error) {
	if f.failAll || f.failAt[in.ChunkIndex] {
		return nil, fmt.Errorf("extraction blew up")
	}
	f.episodes = append(f.episodes, in)
	return &graphstore.IngestResult{EpisodeUUID: "ep", Entities: 2, Relations: 1, TokensUsed: 500}, nil
}

func (f *fakeIngester) CountsForUpload(ctx context.Context, uploadID string) (int, int, error) {
	return len(f.episodes) * 2, len(f.episodes), nil
}

type fakeLimiter struct {
	waits    int
	recorded []int
	err      error
}

func (f *fakeLimiter) WaitForBudget(ctx context.Context, estimate int) error {
	f.waits++
	return f.err
}

func (f *fakeLimiter) Record(tokens int) {
	f.recorded = append(f.recorded, tokens)
}

func sampleDoc() *converter.Document {
	return &converter.Document{
		Filename: "owd.pdf",
		Markdown: "# Ascent\n\nAscend no faster than 18 meters per minute.\n\nComplete a safety stop at five meters.",
		Pages:    3,
		Tables:   1,
	}
}

func uploadFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "u1_owd.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(v Validator, c converter.Converter, ing Ingester, lim Limiter, reg *status.Registry) *Pipeline {
	return New(v, c, ing, lim, reg,
		WithChunking("recursive", chunker.Options{MaxTokens: 3000, OverlapChars: 100}))
}

func TestProcessHappyPath(t *testing.T) {
	reg := status.NewRegistry()
	reg.Register("u1", "owd.pdf")

	ing := &fakeIngester{}
	lim := &fakeLimiter{}
	p := newTestPipeline(&fakeValidator{}, &fakeConverter{doc: sampleDoc()}, ing, lim, reg)

	path := uploadFile(t)
	if err := p.Process(context.Background(), "u1", path, "owd.pdf", ""); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	s, ok := reg.Get("u1")
	if !ok {
		t.Fatal("status missing")
	}
	if s.Status != status.StateCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if s.ChunksSucceeded != s.TotalChunks || s.ChunksFailed != 0 {
		t.Errorf("chunk split: succeeded=%d failed=%d total=%d", s.ChunksSucceeded, s.ChunksFailed, s.TotalChunks)
	}
	if s.Progress != 100 {
		t.Errorf("progress = %d, want 100", s.Progress)
	}
	if s.Pages != 3 || s.Tables != 1 {
		t.Errorf("document info not recorded: pages=%d tables=%d", s.Pages, s.Tables)
	}
	if s.TotalChunks == 0 || s.ChunksCompleted != s.TotalChunks {
		t.Errorf("chunks: completed=%d total=%d", s.ChunksCompleted, s.TotalChunks)
	}
	if len(ing.episodes) != s.TotalChunks {
		t.Errorf("ingested %d episodes, want %d", len(ing.episodes), s.TotalChunks)
	}
	if lim.waits != s.TotalChunks {
		t.Errorf("limiter waits = %d, want one per chunk (%d)", lim.waits, s.TotalChunks)
	}
	for _, tok := range lim.recorded {
		if tok != 500 {
			t.Errorf("recorded %d tokens, want the ingester-reported 500", tok)
		}
	}
	for _, stage := range []status.Stage{status.StageValidation, status.StageConversion, status.StageChunking, status.StageIngestion} {
		if _, ok := s.StageDurations[string(stage)]; !ok {
			t.Errorf("missing duration for stage %s", stage)
		}
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("upload file not removed after processing")
	}
}

func TestProcessValidationFailure(t *testing.T) {
	reg := status.NewRegistry()
	reg.Register("u1", "bad.pdf")

	p := newTestPipeline(&fakeValidator{err: fmt.Errorf("unreadable")}, &fakeConverter{doc: sampleDoc()}, &fakeIngester{}, &fakeLimiter{}, reg)

	path := uploadFile(t)
	if err := p.Process(context.Background(), "u1", path, "bad.pdf", ""); err == nil {
		t.Fatal("expected validation error")
	}

	s, _ := reg.Get("u1")
	if s.Status != status.StateFailed {
		t.Errorf("status = %s, want failed", s.Status)
	}
	if s.Error == "" {
		t.Error("error string not captured")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("upload file not removed on failure")
	}
}

func TestProcessConversionFailure(t *testing.T) {
	reg := status.NewRegistry()
	reg.Register("u1", "owd.pdf")

	p := newTestPipeline(&fakeValidator{}, &fakeConverter{err: fmt.Errorf("backend 500")}, &fakeIngester{}, &fakeLimiter{}, reg)

	if err := p.Process(context.Background(), "u1", uploadFile(t), "owd.pdf", ""); err == nil {
		t.Fatal("expected conversion error")
	}

	s, _ := reg.Get("u1")
	if s.Status != status.StateFailed {
		t.Errorf("status = %s, want failed", s.Status)
	}
	// Progress was raised to the conversion floor before the failure
	// and is frozen there.
	if s.Progress != 10 {
		t.Errorf("progress = %d, want 10", s.Progress)
	}
}

func TestProcessSkipsFailedChunks(t *testing.T) {
	reg := status.NewRegistry()
	reg.Register("u1", "owd.pdf")

	ing := &fakeIngester{failAt: map[int]bool{1: true}}
	p := newTestPipeline(&fakeValidator{}, &fakeConverter{doc: sampleDoc()}, ing, &fakeLimiter{}, reg)

	if err := p.Process(context.Background(), "u1", uploadFile(t), "owd.pdf", ""); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	s, _ := reg.Get("u1")
	if s.Status != status.StateCompleted {
		t.Errorf("status = %s, want completed despite a failed chunk", s.Status)
	}
	if s.ChunksCompleted != s.TotalChunks {
		t.Errorf("chunk accounting: completed=%d total=%d", s.ChunksCompleted, s.TotalChunks)
	}
	if s.ChunksSucceeded != s.TotalChunks-1 || s.ChunksFailed != 1 {
		t.Errorf("chunk split: succeeded=%d failed=%d total=%d", s.ChunksSucceeded, s.ChunksFailed, s.TotalChunks)
	}
	if len(ing.episodes) != s.TotalChunks-1 {
		t.Errorf("ingested %d episodes, want %d (chunk 1 skipped)", len(ing.episodes), s.TotalChunks-1)
	}
}

func TestProcessAllChunksFailed(t *testing.T) {
	reg := status.NewRegistry()
	reg.Register("u1", "owd.pdf")

	ing := &fakeIngester{failAll: true}
	p := newTestPipeline(&fakeValidator{}, &fakeConverter{doc: sampleDoc()}, ing, &fakeLimiter{}, reg)

	if err := p.Process(context.Background(), "u1", uploadFile(t), "owd.pdf", ""); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Every chunk failing still completes the document, but the status
	// must expose that nothing landed in the graph.
	s, _ := reg.Get("u1")
	if s.Status != status.StateCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if s.ChunksSucceeded != 0 {
		t.Errorf("chunks succeeded = %d, want 0", s.ChunksSucceeded)
	}
	if s.ChunksFailed != s.TotalChunks || s.TotalChunks == 0 {
		t.Errorf("chunks failed = %d, want all %d", s.ChunksFailed, s.TotalChunks)
	}
	if len(ing.episodes) != 0 {
		t.Errorf("ingested %d episodes, want 0", len(ing.episodes))
	}
}

func TestProcessLimiterCancellation(t *testing.T) {
	reg := status.NewRegistry()
	reg.Register("u1", "owd.pdf")

	lim := &fakeLimiter{err: context.Canceled}
	p := newTestPipeline(&fakeValidator{}, &fakeConverter{doc: sampleDoc()}, &fakeIngester{}, lim, reg)

	if err := p.Process(context.Background(), "u1", uploadFile(t), "owd.pdf", ""); err == nil {
		t.Fatal("expected ingestion error on budget cancellation")
	}

	s, _ := reg.Get("u1")
	if s.Status != status.StateFailed {
		t.Errorf("status = %s, want failed", s.Status)
	}
}

func TestProcessEpisodeInputCarriesContext(t *testing.T) {
	reg := status.NewRegistry()
	reg.Register("u1", "owd.pdf")

	ing := &fakeIngester{}
	p := newTestPipeline(&fakeValidator{}, &fakeConverter{doc: sampleDoc()}, ing, &fakeLimiter{}, reg)

	if err := p.Process(context.Background(), "u1", uploadFile(t), "owd.pdf", "padi-2026"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(ing.episodes) == 0 {
		t.Fatal("no episodes ingested")
	}
	for i, ep := range ing.episodes {
		if ep.UploadID != "u1" || ep.Filename != "owd.pdf" {
			t.Errorf("provenance missing: %+v", ep)
		}
		if ep.GroupID != "padi-2026" {
			t.Errorf("group id = %q, want padi-2026", ep.GroupID)
		}
		if ep.ChunkIndex != i+1 {
			t.Errorf("chunk index = %d, want 1-based %d", ep.ChunkIndex, i+1)
		}
		if ep.Content == "" {
			t.Error("empty episode content")
		}
		if ep.ValidAt.IsZero() {
			t.Error("valid_at not set")
		}
	}
}
