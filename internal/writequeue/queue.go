// Package writequeue serializes disk-mutating work.
//
// A Queue runs at most one task at a time, in submission order. A task
// submitted to an idle queue starts right away on a worker goroutine, and the
// worker keeps draining until the queue is empty again. Callers observe the
// outcome of each task through the Pending handle returned by Submit.
package writequeue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ErrClosed is delivered for tasks submitted after Close.
var ErrClosed = errors.New("write queue closed")

// Task is one unit of disk work.
type Task func() error

type job struct {
	name    string
	task    Task
	pending *Pending
}

// Queue is a FIFO of tasks with a single consumer.
type Queue struct {
	mu      sync.Mutex
	jobs    []*job
	running bool
	busy    bool
	closed  bool
	idle    *sync.Cond

	logger logrus.FieldLogger
	depth  prometheus.Gauge
}

// Option configures a Queue.
type Option func(*Queue)

// WithDepthGauge reports the number of queued and running tasks.
func WithDepthGauge(g prometheus.Gauge) Option {
	return func(q *Queue) {
		q.depth = g
	}
}

// New returns an idle queue. Task failures are logged to logger.
func New(logger logrus.FieldLogger, opts ...Option) *Queue {
	q := &Queue{logger: logger}
	q.idle = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit appends t to the queue. The returned Pending resolves with the
// task's error once it has run.
func (q *Queue) Submit(name string, t Task) *Pending {
	p := newPending()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		p.resolve(ErrClosed)
		return p
	}
	q.jobs = append(q.jobs, &job{name: name, task: t, pending: p})
	if !q.running {
		q.running = true
		go q.work()
	}
	q.observe()
	q.mu.Unlock()

	return p
}

// Len returns the number of tasks that have not completed yet.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

// Drain blocks until every task submitted before the call has completed.
func (q *Queue) Drain(ctx context.Context) error {
	return q.Submit("drain", func() error { return nil }).Wait(ctx)
}

// Close rejects further submissions and waits for queued tasks to finish.
// Closing twice is a no-op.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.mu.Lock()
		for q.running {
			q.idle.Wait()
		}
		q.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "close write queue")
	}
}

func (q *Queue) work() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			q.observe()
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.busy = true
		q.mu.Unlock()

		err := j.task()
		if err != nil {
			q.logger.WithField("action", "write_queue").
				WithField("task", j.name).
				WithError(err).
				Warn("task failed")
		}
		j.pending.resolve(err)

		q.mu.Lock()
		q.busy = false
		q.observe()
		q.mu.Unlock()
	}
}

// pendingLocked counts queued jobs plus the one in flight.
func (q *Queue) pendingLocked() int {
	n := len(q.jobs)
	if q.busy {
		n++
	}
	return n
}

func (q *Queue) observe() {
	if q.depth != nil {
		q.depth.Set(float64(q.pendingLocked()))
	}
}
