// Package queue serializes document processing. Graph ingestion is
// rate limited globally, so documents run one at a time with an
// optional cool-down between them.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nicozefrench/diveteacher/internal/metrics"
)

// DefaultCoolDown separates consecutive documents so the token window
// partially drains between them.
const DefaultCoolDown = 60 * time.Second

// DefaultHistoryLimit bounds the completed and failed history.
const DefaultHistoryLimit = 50

// Processor runs the pipeline for one queued document.
type Processor interface {
	Process(ctx context.Context, uploadID, path, filename, groupID string) error
}

// Item is one queued document.
type Item struct {
	UploadID string
	Path     string
	Filename string
	GroupID  string
	Queued   time.Time
}

// HistoryEntry records one finished document.
type HistoryEntry struct {
	UploadID   string    `json:"upload_id"`
	Filename   string    `json:"filename"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   float64   `json:"duration_sec"`
}

// Status is a point-in-time queue snapshot.
type Status struct {
	Depth          int            `json:"depth"`
	Processing     bool           `json:"processing"`
	Current        *Item          `json:"current,omitempty"`
	Pending        []Item         `json:"pending"`
	History        []HistoryEntry `json:"history"`
	TotalProcessed int            `json:"total_processed"`
	TotalSucceeded int            `json:"total_succeeded"`
	TotalFailed    int            `json:"total_failed"`
	SuccessRate    float64        `json:"success_rate_pct"`
}

// Queue is a FIFO, single-worker document queue.
type Queue struct {
	processor    Processor
	coolDown     time.Duration
	historyLimit int
	logger       *slog.Logger

	mu        sync.Mutex
	pending   []Item
	current   *Item
	history   []HistoryEntry
	succeeded int
	failed    int
	running   bool
	closed    bool

	wake chan struct{}
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Queue.
type Option func(*Queue)

// WithCoolDown sets the pause between documents.
func WithCoolDown(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.coolDown = d
		}
	}
}

// WithHistoryLimit bounds the finished-document history.
func WithHistoryLimit(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.historyLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// New creates a Queue over the given processor.
func New(p Processor, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		processor:    p,
		coolDown:     DefaultCoolDown,
		historyLimit: DefaultHistoryLimit,
		logger:       slog.Default(),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds a document and returns its 1-based queue position. The
// worker starts on first use. Returns -1 when the queue is shut down.
func (q *Queue) Enqueue(uploadID, path, filename, groupID string) int {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return -1
	}

	q.pending = append(q.pending, Item{
		UploadID: uploadID,
		Path:     path,
		Filename: filename,
		GroupID:  groupID,
		Queued:   time.Now(),
	})
	position := len(q.pending)
	if q.current != nil {
		position++
	}

	if !q.running {
		q.running = true
		go q.work()
	}
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(position))
	q.logger.Info("document enqueued",
		"upload_id", uploadID, "filename", filename, "position", position)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return position
}

// work is the single queue worker. It exits as soon as Shutdown
// cancels the queue context: the in-flight document finishes, the
// pending remainder is abandoned.
func (q *Queue) work() {
	defer close(q.done)

	for {
		if q.ctx.Err() != nil {
			return
		}

		item, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.ctx.Done():
				return
			}
		}

		q.process(item)

		// Cool down between documents so the ingestion token window
		// drains, but not when nothing is waiting.
		if q.hasPending() {
			select {
			case <-time.After(q.coolDown):
			case <-q.ctx.Done():
				return
			}
		}
	}
}

func (q *Queue) next() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Item{}, false
	}

	item := q.pending[0]
	q.pending = q.pending[1:]
	q.current = &item

	metrics.QueueDepth.Set(float64(len(q.pending)))
	metrics.QueueProcessing.Set(1)
	return item, true
}

func (q *Queue) process(item Item) {
	start := time.Now()
	q.logger.Info("processing document",
		"upload_id", item.UploadID, "filename", item.Filename)

	// Shutdown lets the in-flight document finish, so processing does
	// not run on the queue's cancellable context.
	err := q.processor.Process(context.Background(), item.UploadID, item.Path, item.Filename, item.GroupID)

	entry := HistoryEntry{
		UploadID:   item.UploadID,
		Filename:   item.Filename,
		Succeeded:  err == nil,
		FinishedAt: time.Now(),
		Duration:   time.Since(start).Seconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	q.mu.Lock()
	q.current = nil
	if err == nil {
		q.succeeded++
	} else {
		q.failed++
	}
	q.history = append(q.history, entry)
	if len(q.history) > q.historyLimit {
		q.history = q.history[len(q.history)-q.historyLimit:]
	}
	q.mu.Unlock()

	metrics.QueueProcessing.Set(0)

	if err != nil {
		q.logger.Error("document processing failed",
			"upload_id", item.UploadID, "error", err)
	}
}

func (q *Queue) hasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}

// Status returns a snapshot of the queue.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{
		Depth:          len(q.pending),
		Processing:     q.current != nil,
		Pending:        append([]Item{}, q.pending...),
		History:        append([]HistoryEntry{}, q.history...),
		TotalSucceeded: q.succeeded,
		TotalFailed:    q.failed,
		TotalProcessed: q.succeeded + q.failed,
	}
	if q.current != nil {
		c := *q.current
		st.Current = &c
		st.Depth++
	}
	if st.TotalProcessed > 0 {
		st.SuccessRate = float64(q.succeeded) / float64(st.TotalProcessed) * 100
	}
	return st
}

// Shutdown stops intake and waits for the in-flight document to
// finish, up to the context deadline. Pending documents are abandoned;
// their statuses stay queued until cleanup removes them.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	wasRunning := q.running
	q.mu.Unlock()

	q.cancel()

	if !wasRunning {
		return nil
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
