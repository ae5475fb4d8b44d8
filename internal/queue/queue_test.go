package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingProcessor struct {
	mu      sync.Mutex
	order   []string
	active  int
	peak    int
	delay   time.Duration
	failIDs map[string]bool
}

func (p *recordingProcessor) Process(ctx context.Context, uploadID, path, filename, groupID string) error {
	p.mu.Lock()
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.active--
	p.order = append(p.order, uploadID)
	fail := p.failIDs[uploadID]
	p.mu.Unlock()

	if fail {
		return fmt.Errorf("processing failed for %s", uploadID)
	}
	return nil
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.order...)
}

// gatedProcessor signals when the first document starts and blocks it
// until released, so tests can act while a document is in flight.
type gatedProcessor struct {
	started chan struct{}
	release chan struct{}

	once  sync.Once
	mu    sync.Mutex
	order []string
}

func (p *gatedProcessor) Process(ctx context.Context, uploadID, path, filename, groupID string) error {
	p.once.Do(func() { close(p.started) })
	<-p.release

	p.mu.Lock()
	p.order = append(p.order, uploadID)
	p.mu.Unlock()
	return nil
}

func (p *gatedProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.order...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestEnqueueProcessesFIFO(t *testing.T) {
	p := &recordingProcessor{delay: 10 * time.Millisecond}
	q := New(p, WithCoolDown(0))
	defer q.Shutdown(context.Background())

	for i := 1; i <= 3; i++ {
		q.Enqueue(fmt.Sprintf("u%d", i), "/tmp/x", "f.pdf", "")
	}

	waitFor(t, 2*time.Second, func() bool { return len(p.processed()) == 3 })

	got := p.processed()
	for i, want := range []string{"u1", "u2", "u3"} {
		if got[i] != want {
			t.Errorf("order[%d] = %s, want %s", i, got[i], want)
		}
	}
	if p.peak > 1 {
		t.Errorf("peak concurrency = %d, want 1", p.peak)
	}
}

func TestEnqueuePositions(t *testing.T) {
	block := make(chan struct{})
	p := &blockingProcessor{release: block}
	q := New(p, WithCoolDown(0))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	first := q.Enqueue("u1", "/tmp/x", "f.pdf", "")
	if first != 1 {
		t.Errorf("first position = %d, want 1", first)
	}

	// Wait until u1 is in flight so positions count it.
	waitFor(t, time.Second, func() bool { return q.Status().Processing })

	second := q.Enqueue("u2", "/tmp/x", "f.pdf", "")
	if second != 2 {
		t.Errorf("second position = %d, want 2", second)
	}
}

type blockingProcessor struct {
	release chan struct{}
}

func (p *blockingProcessor) Process(ctx context.Context, uploadID, path, filename, groupID string) error {
	<-p.release
	return nil
}

func TestItemCarriesGroupID(t *testing.T) {
	block := make(chan struct{})
	p := &blockingProcessor{release: block}
	q := New(p, WithCoolDown(0))
	defer func() {
		close(block)
		q.Shutdown(context.Background())
	}()

	q.Enqueue("u1", "/tmp/x", "f.pdf", "padi-2026")
	q.Enqueue("u2", "/tmp/x", "g.pdf", "")

	waitFor(t, time.Second, func() bool { return q.Status().Processing })

	st := q.Status()
	if st.Current == nil || st.Current.GroupID != "padi-2026" {
		t.Errorf("current group id not preserved: %+v", st.Current)
	}
	if len(st.Pending) != 1 || st.Pending[0].GroupID != "" {
		t.Errorf("pending group id not preserved: %+v", st.Pending)
	}
}

func TestStatusCountsAndHistory(t *testing.T) {
	p := &recordingProcessor{failIDs: map[string]bool{"u2": true}}
	q := New(p, WithCoolDown(0))
	defer q.Shutdown(context.Background())

	q.Enqueue("u1", "/tmp/x", "a.pdf", "")
	q.Enqueue("u2", "/tmp/x", "b.pdf", "")

	waitFor(t, 2*time.Second, func() bool { return q.Status().TotalProcessed == 2 })

	st := q.Status()
	if st.TotalSucceeded != 1 || st.TotalFailed != 1 {
		t.Errorf("counters: succeeded=%d failed=%d", st.TotalSucceeded, st.TotalFailed)
	}
	if st.SuccessRate != 50 {
		t.Errorf("success rate = %v, want 50", st.SuccessRate)
	}
	if len(st.History) != 2 {
		t.Fatalf("history = %d entries, want 2", len(st.History))
	}
	var failed *HistoryEntry
	for i := range st.History {
		if st.History[i].UploadID == "u2" {
			failed = &st.History[i]
		}
	}
	if failed == nil || failed.Succeeded || failed.Error == "" {
		t.Errorf("failed entry not recorded correctly: %+v", failed)
	}
}

func TestHistoryBounded(t *testing.T) {
	p := &recordingProcessor{}
	q := New(p, WithCoolDown(0), WithHistoryLimit(3))
	defer q.Shutdown(context.Background())

	for i := 0; i < 6; i++ {
		q.Enqueue(fmt.Sprintf("u%d", i), "/tmp/x", "f.pdf", "")
	}

	waitFor(t, 2*time.Second, func() bool { return q.Status().TotalProcessed == 6 })

	st := q.Status()
	if len(st.History) != 3 {
		t.Fatalf("history = %d entries, want 3", len(st.History))
	}
	if st.History[0].UploadID != "u3" {
		t.Errorf("oldest kept = %s, want u3", st.History[0].UploadID)
	}
}

func TestShutdownFinishesCurrentAbandonsPending(t *testing.T) {
	p := &gatedProcessor{started: make(chan struct{}), release: make(chan struct{})}
	q := New(p, WithCoolDown(0))

	q.Enqueue("u1", "/tmp/x", "f.pdf", "")
	q.Enqueue("u2", "/tmp/x", "f.pdf", "")
	q.Enqueue("u3", "/tmp/x", "f.pdf", "")

	<-p.started

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- q.Shutdown(ctx)
	}()

	// Let Shutdown cancel the queue context before u1 finishes.
	time.Sleep(20 * time.Millisecond)
	close(p.release)

	if err := <-done; err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	got := p.processed()
	if len(got) != 1 || got[0] != "u1" {
		t.Errorf("processed %v, want only the in-flight u1", got)
	}

	if pos := q.Enqueue("u4", "/tmp/x", "f.pdf", ""); pos != -1 {
		t.Errorf("enqueue after shutdown returned %d, want -1", pos)
	}
}

func TestShutdownTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	q := New(&blockingProcessor{release: block})
	q.Enqueue("u1", "/tmp/x", "f.pdf", "")

	waitFor(t, time.Second, func() bool { return q.Status().Processing })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Shutdown(ctx); err == nil {
		t.Fatal("expected deadline error when in-flight document blocks")
	}
}

func TestShutdownWithoutWorker(t *testing.T) {
	q := New(&recordingProcessor{})
	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown of idle queue failed: %v", err)
	}
}
