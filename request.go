package grpcdispatch

import (
	"context"
)

// State represents the lifecycle state of a [Request].
//
// State Machine:
//
//	StateNew (0) → StateProcessing (1)   [first Proceed: Clone, then Process]
//	StateProcessing (1) → StateDone (2)  [handler calls Complete]
//	StateDone (2) → released             [next Proceed, or error default]
//
// Complete is a pure state write; the transition takes effect on the
// following Proceed, which releases the request instead of processing.
type State uint32

const (
	// StateNew indicates the request is registered but has not yet
	// received its first event.
	StateNew State = iota
	// StateProcessing indicates the request has been driven at least
	// once and its replacement clone is registered.
	StateProcessing
	// StateDone indicates the handler declared itself finished; the next
	// delivery releases the request.
	StateDone
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateProcessing:
		return "Processing"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

type (
	// Handler implements application behavior for one class of server
	// event. A handler instance is bound 1:1 to a [Request].
	Handler interface {
		// Process handles one event delivery for the request. It runs on
		// the consumer's execution context, never the dispatcher's. Call
		// [Request.Complete] once no further deliveries are expected.
		Process(r *Request)

		// Clone returns the handler for the replacement request that
		// keeps the event class armed while r is busy. It is invoked
		// exactly once, on the first Proceed.
		Clone() Handler
	}

	// ErrorHandler may be implemented by a [Handler] to intercept
	// channel failures. HandleError runs on the dispatcher goroutine,
	// directly, bypassing the queue: no further deliveries follow.
	//
	// The default (no ErrorHandler) releases the request immediately. An
	// implementation that cannot safely release on the dispatcher
	// goroutine may instead push the request back to the consumer side
	// however it sees fit.
	ErrorHandler interface {
		HandleError(r *Request)
	}

	// Finalizer may be implemented by a [Handler] to run resource
	// release when its request is discarded. It is invoked exactly once,
	// after which the request must not be used.
	Finalizer interface {
		Finalize(r *Request)
	}
)

// Request is one inbound unit of work: the correlation tag registered
// with the notification source, the intrusive queue link, and the
// lifecycle state. Its address is the stable identity the source hands
// back with each event.
//
// A Request is not safe for concurrent use; the queue transfers it
// wholesale between the dispatcher and the consumer.
type Request struct {
	service *Service
	handler Handler
	ctx     context.Context
	// next is owned by the queue while the request is enqueued. It must
	// not be read after Acquire returns the request.
	next  *Request
	state State
}

// Proceed drives the lifecycle one step. The consumer calls it exactly
// once per retrieved request.
func (r *Request) Proceed() {
	if r.state != StateDone {
		if r.state == StateNew {
			r.service.Register(r.handler.Clone())
			r.state = StateProcessing
		}
		r.handler.Process(r)
	} else {
		r.release()
	}
}

// Complete marks the request finished. The next Proceed releases it
// instead of invoking the handler.
func (r *Request) Complete() {
	r.state = StateDone
}

// State returns the current lifecycle state.
func (r *Request) State() State {
	return r.state
}

// Service returns the owning service.
func (r *Request) Service() *Service {
	return r.service
}

// Context returns the per-request context. For gRPC-backed sources this
// carries the call metadata attached by the RPC layer; the core treats
// it as opaque.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// SetContext attaches the per-request context. Intended for the event
// producer (RPC glue), before the request is pushed.
func (r *Request) SetContext(ctx context.Context) {
	r.ctx = ctx
}

// fail routes a channel failure to the handler. Dispatcher goroutine.
func (r *Request) fail() {
	if h, ok := r.handler.(ErrorHandler); ok {
		h.HandleError(r)
		return
	}
	r.release()
}

// release runs the finalizer, if any, and drops all references so the
// request (and whatever its handler holds) can be collected. The queue
// never releases requests; this is the sole authority.
func (r *Request) release() {
	if f, ok := r.handler.(Finalizer); ok {
		f.Finalize(r)
	}
	r.handler = nil
	r.service = nil
	r.ctx = nil
}
