package batch

import (
	"context"
	"sync"

	"github.com/japaniel/wordorigin/pkg/extract"
)

const progressBuffer = 64

// Runner executes batches on a background goroutine, at most one at a time.
// Starting a batch while another is running is rejected with ErrRunActive;
// the caller decides whether to cancel the active one first.
type Runner struct {
	mu     sync.Mutex
	active *Handle
	wg     sync.WaitGroup
}

// NewRunner creates an idle Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Handle controls a started batch.
type Handle struct {
	cancel   Canceler
	progress chan Progress
	done     chan struct{}
	report   *Report
}

// Start copies lines and runs d over them in the background.
// d is copied too, so later changes to it do not affect the running batch.
func (r *Runner) Start(ctx context.Context, d *Driver, lines extract.LineMap, counts extract.WordCounts) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil && !r.active.finished() {
		return nil, ErrRunActive
	}

	h := &Handle{
		progress: make(chan Progress, progressBuffer),
		done:     make(chan struct{}),
	}
	driver := *d
	forward := d.OnProgress
	driver.OnProgress = func(p Progress) {
		if forward != nil {
			forward(p)
		}
		// Channel readers only need the latest state; drop when they lag.
		select {
		case h.progress <- p:
		default:
		}
	}
	snapshot := lines.Clone()

	r.active = h
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		rep := driver.Run(ctx, snapshot, counts, &h.cancel)
		h.report = rep
		close(h.progress)
		close(h.done)
	}()
	return h, nil
}

// Active returns the running batch, or nil.
func (r *Runner) Active() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.finished() {
		return nil
	}
	return r.active
}

// Wait blocks until every started batch has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Cancel requests a cooperative stop. Safe to call repeatedly.
func (h *Handle) Cancel() { h.cancel.RequestCancel() }

// Progress delivers progress events; it is closed when the batch ends.
func (h *Handle) Progress() <-chan Progress { return h.progress }

// Done is closed when the batch has ended.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch ends and returns its report.
func (h *Handle) Wait() *Report {
	<-h.done
	return h.report
}

func (h *Handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
