package status

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds processing statuses keyed by upload id. All mutation
// goes through registry methods; snapshots returned to callers are
// copies.
type Registry struct {
	mu       sync.Mutex
	statuses map[string]*ProcessingStatus

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty status registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		statuses: make(map[string]*ProcessingStatus),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a queued status for a new upload.
func (r *Registry) Register(uploadID, filename string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.statuses[uploadID] = &ProcessingStatus{
		UploadID:       uploadID,
		Filename:       filename,
		Status:         StateQueued,
		Stage:          StageValidation,
		StartedAt:      now,
		StageDurations: make(map[string]float64),
		Events: []Event{{
			At:      now,
			Stage:   StageValidation,
			Message: fmt.Sprintf("queued %s", filename),
		}},
	}
}

// EnterStage marks the upload processing in the given stage, raising
// progress to the stage floor. No-op for unknown or terminal statuses.
func (r *Registry) EnterStage(uploadID string, stage Stage, progressFloor int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[uploadID]
	if !ok || s.Status.Terminal() {
		return
	}

	s.Status = StateProcessing
	s.Stage = stage
	r.raiseProgress(s, progressFloor)
	s.Events = append(s.Events, Event{
		At:      r.now(),
		Stage:   stage,
		Message: fmt.Sprintf("entered %s", stage),
	})
}

// SetProgress raises progress to p. Progress never decreases and is
// frozen once the status is terminal.
func (r *Registry) SetProgress(uploadID string, p int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[uploadID]
	if !ok || s.Status.Terminal() {
		return
	}
	r.raiseProgress(s, p)
}

// raiseProgress clamps p to [0, 100] and applies it monotonically.
// Callers must hold the mutex.
func (r *Registry) raiseProgress(s *ProcessingStatus, p int) {
	if p > 100 {
		p = 100
	}
	if p > s.Progress {
		s.Progress = p
	}
}

// RecordStageDuration stores the elapsed time of a finished stage.
func (r *Registry) RecordStageDuration(uploadID string, stage Stage, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.statuses[uploadID]; ok {
		s.StageDurations[string(stage)] = d.Seconds()
	}
}

// SetDocumentInfo stores conversion facts on the status.
func (r *Registry) SetDocumentInfo(uploadID string, pages, tables, pictures int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.statuses[uploadID]; ok {
		s.Pages = pages
		s.Tables = tables
		s.Pictures = pictures
	}
}

// SetChunkTotal stores the number of chunks produced for the upload.
func (r *Registry) SetChunkTotal(uploadID string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.statuses[uploadID]; ok {
		s.TotalChunks = total
	}
}

// ChunkIngested records one attempted chunk and raises ingestion
// progress to 75 + 25*done/total. ok splits the attempt into the
// succeeded or failed counter.
func (r *Registry) ChunkIngested(uploadID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, found := r.statuses[uploadID]
	if !found || s.Status.Terminal() {
		return
	}

	s.ChunksCompleted++
	if ok {
		s.ChunksSucceeded++
	} else {
		s.ChunksFailed++
	}
	if s.TotalChunks > 0 {
		r.raiseProgress(s, 75+25*s.ChunksCompleted/s.TotalChunks)
	}
}

// SetGraphCounts stores the entity and relationship counts read from
// the graph after ingestion.
func (r *Registry) SetGraphCounts(uploadID string, entities, relationships int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.statuses[uploadID]; ok {
		s.Entities = entities
		s.Relationships = relationships
	}
}

// MarkCompleted moves the status to its terminal completed state.
func (r *Registry) MarkCompleted(uploadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[uploadID]
	if !ok || s.Status.Terminal() {
		return
	}

	now := r.now()
	s.Status = StateCompleted
	s.Stage = StageCompleted
	s.Progress = 100
	s.CompletedAt = &now
	s.Events = append(s.Events, Event{At: now, Stage: StageCompleted, Message: "processing completed"})
}

// MarkFailed moves the status to its terminal failed state, recording
// the failing stage and error.
func (r *Registry) MarkFailed(uploadID string, stage Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[uploadID]
	if !ok || s.Status.Terminal() {
		return
	}

	now := r.now()
	s.Status = StateFailed
	s.Stage = stage.Errored()
	s.CompletedAt = &now
	if err != nil {
		s.Error = err.Error()
	}
	s.Events = append(s.Events, Event{
		At:      now,
		Stage:   stage,
		Message: fmt.Sprintf("failed during %s: %s", stage, s.Error),
	})
}

// Get returns a copy of the status, or false if unknown.
func (r *Registry) Get(uploadID string) (*ProcessingStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[uploadID]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// All returns copies of every status.
func (r *Registry) All() []*ProcessingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*ProcessingStatus, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s.clone())
	}
	return out
}

// Logs returns human-readable stage transition lines for an upload.
func (r *Registry) Logs(uploadID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[uploadID]
	if !ok {
		return nil, false
	}

	lines := make([]string, 0, len(s.Events))
	for _, e := range s.Events {
		lines = append(lines, fmt.Sprintf("%s [%s] %s", e.At.Format(time.RFC3339), e.Stage, e.Message))
	}
	return lines, true
}

// Delete removes a status. Returns false if unknown.
func (r *Registry) Delete(uploadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.statuses[uploadID]; !ok {
		return false
	}
	delete(r.statuses, uploadID)
	return true
}

// Cleanup removes statuses started more than maxAge ago. Returns the
// number removed. In-flight uploads older than maxAge are kept.
func (r *Registry) Cleanup(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for id, s := range r.statuses {
		if s.StartedAt.Before(cutoff) && s.Status.Terminal() {
			delete(r.statuses, id)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Info("cleaned up stale processing statuses", "removed", removed)
	}
	return removed
}
