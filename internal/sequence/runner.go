package sequence

import (
	"fmt"
	"log/slog"
	"sync"
)

// Poster accepts tasks for execution on a sequence.
type Poster interface {
	Post(task func()) bool
}

// Runner executes posted tasks one at a time, in posting order, on a single
// goroutine. Tasks still queued when the runner closes are dropped.
type Runner struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewRunner starts a runner. Close must be called to release its goroutine.
func NewRunner(name string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Name returns the label the runner was created with.
func (r *Runner) Name() string {
	return r.name
}

// Post queues task. It reports false when the runner is closed.
func (r *Runner) Post(task func()) bool {
	if task == nil {
		return false
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.queue = append(r.queue, task)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops the runner and waits for the running task, if any, to return.
// It must not be called from a task running on r.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	dropped := len(r.queue)
	r.queue = nil
	r.mu.Unlock()

	if dropped > 0 {
		r.logger.Debug("sequence closed with pending tasks", "sequence", r.name, "dropped", dropped)
	}

	select {
	case r.wake <- struct{}{}:
	default:
	}
	<-r.done
}

func (r *Runner) loop() {
	defer close(r.done)
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			<-r.wake
			continue
		}
		task := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.run(task)
	}
}

func (r *Runner) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("sequence task panicked", "sequence", r.name, "panic", fmt.Sprint(rec))
		}
	}()
	task()
}
