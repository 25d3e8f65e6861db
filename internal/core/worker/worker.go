// Package worker runs background tasks one at a time, in submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrClosed = errors.New("worker is closed")

var tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "codenav_worker_tasks_total",
	Help: "Background tasks run, by result (ok, error, panic).",
}, []string{"result"})

// Task is one unit of background work. It is never cancelled mid-run.
type Task func(ctx context.Context) error

type Options struct {
	// Size bounds the number of queued tasks; Submit blocks when full until
	// space frees up or the queue is closed.
	Size   int
	Logger *slog.Logger
}

type job struct {
	name string
	run  Task
}

type Queue struct {
	log *slog.Logger
	ch  chan *job
	wg  sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	stop    chan struct{}
	senders sync.WaitGroup
}

func New(opts Options) *Queue {
	size := opts.Size
	if size <= 0 {
		size = 64
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{log: log, ch: make(chan *job, size), stop: make(chan struct{})}
	q.wg.Add(1)
	go q.loop()
	return q
}

// Submit enqueues t behind everything submitted before it.
func (q *Queue) Submit(name string, t Task) error {
	if q == nil {
		return ErrClosed
	}
	if t == nil {
		return fmt.Errorf("task %q is nil", name)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case q.ch <- &job{name: name, run: t}:
		return nil
	case <-q.stop:
		return ErrClosed
	}
}

// Flush blocks until every task submitted before the call has finished.
func (q *Queue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	err := q.Submit("flush", func(context.Context) error {
		close(done)
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Pending() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}

// Close lets queued tasks finish, stops the consumer and waits for it.
func (q *Queue) Close() error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	// Blocked senders give up; the sentinel goes in behind everything
	// that was accepted.
	close(q.stop)
	q.senders.Wait()
	q.ch <- nil
	q.wg.Wait()
	return nil
}

func (q *Queue) loop() {
	defer q.wg.Done()
	ctx := context.Background()
	for j := range q.ch {
		if j == nil {
			return
		}
		q.runOne(ctx, j)
	}
}

func (q *Queue) runOne(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			tasksTotal.WithLabelValues("panic").Inc()
			q.log.Error("background task panicked", "task", j.name, "panic", r)
		}
	}()

	if err := j.run(ctx); err != nil {
		tasksTotal.WithLabelValues("error").Inc()
		q.log.Warn("background task failed", "task", j.name, "err", err)
		return
	}
	tasksTotal.WithLabelValues("ok").Inc()
}
