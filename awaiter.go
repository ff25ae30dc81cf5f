package grpcdispatch

// Awaiter is the suspension point over a [Queue]. Its three methods
// mirror the three observable moments of a coroutine awaitable:
// ready-check, attempt-park, resume.
//
// At most one logical consumer may use the Awaiters of a given queue at
// a time; the consumer-private buffer behind Resume is unsynchronized.
type Awaiter struct {
	q *Queue
}

// NewAwaiter returns an Awaiter over q.
func NewAwaiter(q *Queue) Awaiter {
	return Awaiter{q: q}
}

// Ready reports whether Resume would yield a request without parking.
func (x Awaiter) Ready() bool {
	return x.q.Ready()
}

// Park attempts to suspend, storing resume as the wake thunk. Only legal
// when Ready reported false. A false return means a producer raced the
// park; call Resume immediately instead of suspending.
func (x Awaiter) Park(resume func()) bool {
	return x.q.Park(resume)
}

// Resume yields the next request. Only legal after Ready reported true,
// after Park returned false, or after the parked thunk ran.
func (x Awaiter) Resume() *Request {
	return x.q.Acquire()
}

// Await blocks until a request is available and returns it.
//
// The fast path (work already pending) returns without suspending. The
// slow path parks on a channel close, routed through the queue's
// executor; if a producer races the park, Await returns the raced-in
// request without ever sleeping.
func (x Awaiter) Await() *Request {
	if x.Ready() {
		return x.Resume()
	}
	wake := make(chan struct{})
	if !x.Park(func() { close(wake) }) {
		return x.Resume()
	}
	<-wake
	return x.Resume()
}
