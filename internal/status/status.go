// Package status tracks per-upload processing state for the pipeline
// and the HTTP status endpoints.
package status

import "time"

// State is the overall processing state of an upload.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Stage names the pipeline stage an upload is in.
type Stage string

const (
	StageValidation Stage = "validation"
	StageConversion Stage = "conversion"
	StageChunking   Stage = "chunking"
	StageIngestion  Stage = "ingestion"
	StageCompleted  Stage = "completed"
)

// Errored returns the failure marker for a stage, e.g.
// "conversion_error". A failed status keeps the stage it died in.
func (s Stage) Errored() Stage {
	return s + "_error"
}

// Event is one recorded stage transition, used for the log view.
type Event struct {
	At      time.Time `json:"at"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
}

// ProcessingStatus is the full processing record for one upload.
type ProcessingStatus struct {
	UploadID    string     `json:"upload_id"`
	Filename    string     `json:"filename"`
	Status      State      `json:"status"`
	Stage       Stage      `json:"stage"`
	Progress    int        `json:"progress"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// StageDurations maps stage name to elapsed seconds.
	StageDurations map[string]float64 `json:"stage_durations,omitempty"`

	// Document facts filled in as stages complete.
	Pages    int `json:"pages,omitempty"`
	Tables   int `json:"tables,omitempty"`
	Pictures int `json:"pictures,omitempty"`

	// ChunksCompleted counts attempted chunks; the succeeded/failed
	// split tells partial or wholly-failed ingestion apart from full
	// success.
	TotalChunks     int `json:"total_chunks"`
	ChunksCompleted int `json:"chunks_completed"`
	ChunksSucceeded int `json:"chunks_succeeded"`
	ChunksFailed    int `json:"chunks_failed"`

	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`

	Error string `json:"error,omitempty"`

	Events []Event `json:"-"`
}

// clone returns a deep copy safe to hand outside the registry lock.
func (p *ProcessingStatus) clone() *ProcessingStatus {
	out := *p

	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	if p.StageDurations != nil {
		out.StageDurations = make(map[string]float64, len(p.StageDurations))
		for k, v := range p.StageDurations {
			out.StageDurations[k] = v
		}
	}
	out.Events = append([]Event(nil), p.Events...)

	return &out
}
