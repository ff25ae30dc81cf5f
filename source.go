package grpcdispatch

import (
	"errors"
	"sync"
)

// ErrSourceShutdown is returned by producer-side source operations after
// the source has been shut down.
var ErrSourceShutdown = errors.New(`grpcdispatch: source shut down`)

type (
	// Event is one notification from a [Source]: the registered request
	// the event correlates to, and whether the channel delivered
	// successfully. OK false means no further deliveries will follow for
	// that request.
	Event struct {
		Request *Request
		OK      bool
	}

	// Source is the blocking notification source drained by the service
	// dispatcher. For a gRPC async server this is the completion queue
	// analogue; [BufferedSource] adapts arbitrary producers.
	Source interface {
		// Next blocks for the next event. The second return value is
		// false once the source has been shut down and fully drained,
		// after which the dispatcher terminates.
		Next() (Event, bool)

		// Shutdown causes pending and future Next calls to drain any
		// remaining buffered events and then report closed. Idempotent.
		Shutdown()
	}

	// Registrar is implemented by sources that track armed requests.
	// [Service.Register] forwards each new request to the source when
	// this interface is present.
	Registrar interface {
		Register(r *Request)
	}
)

// BufferedSource is a channel-backed [Source]. Producers deliver events
// via Complete; the dispatcher drains them via Next. After Shutdown,
// already-buffered events are still delivered before Next reports
// closed.
type BufferedSource struct {
	ch   chan Event
	stop chan struct{}
	once sync.Once
}

// NewBufferedSource creates a source buffering up to size pending
// events. Size 0 or negative yields an unbuffered source, making
// Complete rendezvous with the dispatcher.
func NewBufferedSource(size int) *BufferedSource {
	if size < 0 {
		size = 0
	}
	return &BufferedSource{
		ch:   make(chan Event, size),
		stop: make(chan struct{}),
	}
}

// Complete delivers an event correlating to r. It blocks while the
// buffer is full, and returns [ErrSourceShutdown] once the source has
// been shut down.
func (x *BufferedSource) Complete(r *Request, ok bool) error {
	select {
	case <-x.stop:
		return ErrSourceShutdown
	default:
	}
	select {
	case x.ch <- Event{Request: r, OK: ok}:
		return nil
	case <-x.stop:
		return ErrSourceShutdown
	}
}

// Next implements [Source].
func (x *BufferedSource) Next() (Event, bool) {
	select {
	case ev := <-x.ch:
		return ev, true
	case <-x.stop:
		// drain events buffered before shutdown
		select {
		case ev := <-x.ch:
			return ev, true
		default:
			return Event{}, false
		}
	}
}

// Shutdown implements [Source].
func (x *BufferedSource) Shutdown() {
	x.once.Do(func() { close(x.stop) })
}
