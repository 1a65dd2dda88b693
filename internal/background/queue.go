// Package background runs fire-and-forget tasks on a bounded worker pool.
// Request paths enqueue and return immediately; task failures are logged,
// never surfaced to callers.
package background

import (
	"context"
	"log"
	"time"

	"github.com/sourcegraph/conc"
)

// Task is a named unit of deferred work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue executes tasks on a fixed number of workers with a bounded buffer.
// When the buffer is full the task is dropped and logged rather than
// blocking the caller.
type Queue struct {
	tasks   chan Task
	cancel  context.CancelFunc
	wg      conc.WaitGroup
	timeout time.Duration
}

// NewQueue starts a queue with the given worker count. A non-positive count
// falls back to a single worker.
func NewQueue(workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:   make(chan Task, buffer),
		cancel:  cancel,
		timeout: 2 * time.Minute,
	}

	for i := 0; i < workers; i++ {
		q.wg.Go(func() { q.worker(ctx) })
	}

	return q
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(ctx, task)
		}
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	if err := task.Run(taskCtx); err != nil {
		log.Printf("[background] task %s failed after %s: %v", task.Name, time.Since(start).Round(time.Millisecond), err)
	}
}

// Enqueue schedules a task without blocking. Returns false if the buffer is
// full; the task is dropped in that case.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) bool {
	select {
	case q.tasks <- Task{Name: name, Run: run}:
		return true
	default:
		log.Printf("[background] queue full, dropping task %s", name)
		return false
	}
}

// Stop cancels running tasks and waits for workers to exit.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}
