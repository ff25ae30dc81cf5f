package grpcdispatch

import (
	"sync/atomic"
)

// Queue is the lock-free handoff between event producers and a single
// consumer.
//
// Concurrency Model: MPSC (Multiple Producers, Single Consumer)
//   - Push: called from any goroutine (the dispatcher, or several)
//   - Ready, Park, Acquire: called ONLY by the single consumer
//
// The shared word (state) encodes three mutually exclusive cases,
// distinguishable from a single atomic load:
//   - nil: empty, no consumer parked
//   - &q.parked: empty, consumer parked; the resumption thunk is in
//     q.resume
//   - anything else: head of a producer-built LIFO stack of requests
//
// A C-style rendition would mark the parked case by tagging the low bit
// of the stored awaiter handle. Go does not permit pointer bit tagging,
// so a per-queue sentinel node plays that role instead: its address is
// reserved, never linked into any list, and compares unequal to every
// real request.
//
// Memory Ordering & Correctness:
// Go's atomic operations are sequentially consistent, which subsumes the
// release/acquire pairs the algorithm needs: a producer's CAS publishing
// a request happens-before the consumer's exchange that drains it, so
// the consumer always observes fully initialized requests. q.resume is a
// plain field, but it is only ever written by the consumer before the
// park CAS and read by the one producer whose CAS consumed the parked
// state; the two CASes order those accesses.
type Queue struct {
	// state is the shared handoff word.
	state atomic.Pointer[Request]
	// parked reserves the address encoding the empty-parked state.
	parked Request
	// resume is the parked consumer's resumption thunk. See the type
	// comment for the (lock-free) access protocol.
	resume func()
	// reader is the consumer-private FIFO of drained requests, in
	// arrival order. Only the consumer touches it.
	reader *Request
	// exec receives the resumption thunk on the wake path.
	exec Executor
}

// NewQueue creates a queue that hands parked-consumer resumptions to
// exec. Panics if exec is nil.
func NewQueue(exec Executor) *Queue {
	if exec == nil {
		panic(`grpcdispatch: executor must not be nil`)
	}
	return &Queue{exec: exec}
}

// Push publishes r to the consumer. Safe for any number of concurrent
// producers; producers never block, retrying the CAS only under direct
// producer/producer contention.
//
// If the consumer is parked, Push stores r as the sole pending request
// and hands the stored resumption thunk to the executor. This is the
// only path that wakes a parked consumer, and it is taken at most once
// per park.
//
// r must not currently be enqueued: a request has at most one
// outstanding event at a time, mirroring a completion queue delivering
// one event per requested operation per tag.
func (q *Queue) Push(r *Request) {
	if r == nil {
		return
	}
	for {
		head := q.state.Load()
		if head == &q.parked {
			r.next = nil
			if q.state.CompareAndSwap(head, r) {
				resume := q.resume
				q.resume = nil
				q.exec.Execute(resume)
				return
			}
			continue
		}
		r.next = head
		if q.state.CompareAndSwap(head, r) {
			return
		}
	}
}

// Ready reports whether Acquire would yield a request without parking.
// Consumer only.
func (q *Queue) Ready() bool {
	if q.reader != nil {
		return true
	}
	head := q.state.Load()
	return head != nil && head != &q.parked
}

// Park attempts to suspend the consumer, storing resume as the thunk a
// future Push hands to the executor. Only legal when Ready reported
// false. Consumer only.
//
// A true return means the consumer genuinely parked: it must not be
// touched again until the executor runs resume. A false return means a
// producer published a request between the ready-check and the park; the
// consumer must immediately Acquire instead of suspending, which is what
// guarantees a wake-up is never missed.
func (q *Queue) Park(resume func()) bool {
	q.resume = resume
	if q.state.CompareAndSwap(nil, &q.parked) {
		return true
	}
	q.resume = nil
	return false
}

// Acquire pops the next request in producer arrival order, or nil if
// none is pending. Consumer only.
//
// When the private buffer is empty, Acquire exchanges the whole
// published stack out of the shared word in one atomic operation and
// reverses it in place into the buffer; producers pushed LIFO, so the
// reversal restores FIFO delivery. Subsequent calls are served from the
// buffer without touching the shared word.
func (q *Queue) Acquire() *Request {
	if q.reader == nil {
		head := q.state.Swap(nil)
		for head != nil {
			next := head.next
			head.next = q.reader
			q.reader = head
			head = next
		}
	}
	r := q.reader
	if r == nil {
		return nil
	}
	q.reader = r.next
	r.next = nil
	return r
}
