package dispatch

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned when work is submitted to a closed queue.
var ErrClosed = errors.New("dispatch queue closed")

// Queue runs functions one at a time, in the order they were submitted.
type Queue struct {
	label string

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []func()
	suspended int
	closed    bool
	done      chan struct{}
}

// NewQueue starts a queue goroutine. The label is used in log fields.
func NewQueue(label string) *Queue {
	q := &Queue{
		label: label,
		done:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Label returns the queue name.
func (q *Queue) Label() string {
	return q.label
}

// Async enqueues fn and returns immediately.
func (q *Queue) Async(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
	return nil
}

// Sync enqueues fn and blocks until it has run. It must not be called from
// inside a function running on the same queue.
func (q *Queue) Sync(fn func()) error {
	ran := make(chan struct{})
	if err := q.Async(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-q.done:
		// Closed before fn got its turn.
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Suspend stops the queue from starting new work. A function already
// running is not interrupted. Calls nest; each Suspend needs one Resume.
func (q *Queue) Suspend() {
	q.mu.Lock()
	q.suspended++
	q.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Queue.Suspend",
		"queue":    q.label,
	}).Debug("Queue suspended")
}

// Resume undoes one Suspend.
func (q *Queue) Resume() {
	q.mu.Lock()
	if q.suspended > 0 {
		q.suspended--
	}
	q.cond.Signal()
	q.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Queue.Resume",
		"queue":    q.label,
	}).Debug("Queue resumed")
}

// IsSuspended reports whether at least one Suspend is outstanding.
func (q *Queue) IsSuspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended > 0
}

// Len returns the number of functions waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close drains nothing further and stops the goroutine once the current
// function returns. Pending work is discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := len(q.pending)
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done

	logrus.WithFields(logrus.Fields{
		"function": "Queue.Close",
		"queue":    q.label,
		"dropped":  dropped,
	}).Debug("Queue closed")
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for !q.closed && (q.suspended > 0 || len(q.pending) == 0) {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}
