package status

import (
	"errors"
	"testing"
	"time"
)

func TestRegisterStartsQueued(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "manual.pdf")

	s, ok := r.Get("u1")
	if !ok {
		t.Fatal("status not found")
	}
	if s.Status != StateQueued || s.Stage != StageValidation || s.Progress != 0 {
		t.Errorf("status = %s/%s/%d, want queued/validation/0", s.Status, s.Stage, s.Progress)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "manual.pdf")

	r.EnterStage("u1", StageChunking, 50)
	r.SetProgress("u1", 30)

	s, _ := r.Get("u1")
	if s.Progress != 50 {
		t.Errorf("progress = %d, want 50 (must not decrease)", s.Progress)
	}

	r.SetProgress("u1", 130)
	s, _ = r.Get("u1")
	if s.Progress != 100 {
		t.Errorf("progress = %d, want clamped to 100", s.Progress)
	}
}

func TestTerminalStateFreezes(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "manual.pdf")
	r.EnterStage("u1", StageIngestion, 75)
	r.MarkFailed("u1", StageIngestion, errors.New("graph down"))

	r.SetProgress("u1", 99)
	r.EnterStage("u1", StageCompleted, 100)
	r.MarkCompleted("u1")

	s, _ := r.Get("u1")
	if s.Status != StateFailed {
		t.Errorf("status = %s, want failed to stick", s.Status)
	}
	if s.Stage != "ingestion_error" {
		t.Errorf("stage = %s, want ingestion_error to name the dying stage", s.Stage)
	}
	if s.Progress != 75 {
		t.Errorf("progress = %d, want frozen at 75", s.Progress)
	}
	if s.Error != "graph down" {
		t.Errorf("error = %q", s.Error)
	}
	if s.CompletedAt == nil {
		t.Error("CompletedAt not set on failure")
	}
}

func TestChunkIngestedProgress(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "manual.pdf")
	r.EnterStage("u1", StageIngestion, 75)
	r.SetChunkTotal("u1", 4)

	r.ChunkIngested("u1", true)
	s, _ := r.Get("u1")
	if s.Progress != 81 { // 75 + 25*1/4
		t.Errorf("progress after 1/4 = %d, want 81", s.Progress)
	}

	r.ChunkIngested("u1", false)
	r.ChunkIngested("u1", true)
	r.ChunkIngested("u1", true)
	s, _ = r.Get("u1")
	if s.Progress != 100 {
		t.Errorf("progress after 4/4 = %d, want 100", s.Progress)
	}
	if s.ChunksCompleted != 4 {
		t.Errorf("chunks completed = %d, want 4", s.ChunksCompleted)
	}
	if s.ChunksSucceeded != 3 || s.ChunksFailed != 1 {
		t.Errorf("split = %d/%d, want 3 succeeded 1 failed", s.ChunksSucceeded, s.ChunksFailed)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "manual.pdf")

	s, _ := r.Get("u1")
	s.Progress = 99
	s.StageDurations["bogus"] = 1

	fresh, _ := r.Get("u1")
	if fresh.Progress != 0 {
		t.Error("mutating a snapshot leaked into the registry")
	}
	if _, ok := fresh.StageDurations["bogus"]; ok {
		t.Error("mutating a snapshot map leaked into the registry")
	}
}

func TestCleanupRemovesOldTerminalOnly(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(WithClock(func() time.Time { return now }))

	r.Register("old-done", "a.pdf")
	r.Register("old-running", "b.pdf")
	r.MarkCompleted("old-done")

	now = now.Add(25 * time.Hour)
	r.Register("fresh", "c.pdf")
	r.MarkCompleted("fresh")

	removed := r.Cleanup(24 * time.Hour)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := r.Get("old-done"); ok {
		t.Error("old terminal status should be removed")
	}
	if _, ok := r.Get("old-running"); !ok {
		t.Error("in-flight status must survive cleanup")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("fresh status must survive cleanup")
	}
}

func TestLogsSynthesized(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "manual.pdf")
	r.EnterStage("u1", StageConversion, 10)
	r.MarkCompleted("u1")

	lines, ok := r.Logs("u1")
	if !ok {
		t.Fatal("logs not found")
	}
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3", len(lines))
	}
}

func TestDeleteUnknown(t *testing.T) {
	r := NewRegistry()
	if r.Delete("nope") {
		t.Error("Delete(unknown) = true, want false")
	}
}
