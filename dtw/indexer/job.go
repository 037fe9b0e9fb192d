package indexer

import (
	"context"
	"sync"
)

// Callbacks receives progress from an indexing job. OnTotal and OnWorked may
// fire zero or more times; OnDone fires exactly once unless the job is
// stopped first. All callbacks are invoked from the job's own goroutines.
type Callbacks struct {
	OnTotal  func(total int)
	OnWorked func(worked int)
	OnDone   func()
}

// Job is a cancellable indexing run. Stop is safe to call from any
// goroutine; once Stop returns, no further callbacks are delivered.
type Job struct {
	ctx    context.Context
	cancel context.CancelFunc

	cbMu    sync.Mutex
	stopped bool
	cb      Callbacks

	done chan struct{}
}

func newJob(parent context.Context, cb Callbacks) *Job {
	ctx, cancel := context.WithCancel(parent)
	return &Job{
		ctx:    ctx,
		cancel: cancel,
		cb:     cb,
		done:   make(chan struct{}),
	}
}

// Stop cancels the job. Underlying work may keep running briefly, but the
// callback gate is closed before Stop returns.
func (j *Job) Stop() {
	j.cancel()
	j.cbMu.Lock()
	j.stopped = true
	j.cbMu.Unlock()
}

// Done is closed when the job goroutine exits, whether it completed or was
// stopped. Mostly useful in tests.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) notifyTotal(total int) {
	j.cbMu.Lock()
	defer j.cbMu.Unlock()
	if j.stopped || j.cb.OnTotal == nil {
		return
	}
	j.cb.OnTotal(total)
}

func (j *Job) notifyWorked(worked int) {
	j.cbMu.Lock()
	defer j.cbMu.Unlock()
	if j.stopped || j.cb.OnWorked == nil {
		return
	}
	j.cb.OnWorked(worked)
}

func (j *Job) notifyDone() {
	j.cbMu.Lock()
	defer j.cbMu.Unlock()
	if j.stopped || j.cb.OnDone == nil {
		return
	}
	j.cb.OnDone()
}
