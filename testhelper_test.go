package grpcdispatch

import (
	"sync"
)

// testHandler counts hook invocations. It deliberately implements only
// the two mandatory hooks; see the embedding variants below for the
// optional ones.
type testHandler struct {
	mu        sync.Mutex
	process   int
	clones    int
	onProcess func(r *Request)
}

func (h *testHandler) Process(r *Request) {
	h.mu.Lock()
	h.process++
	fn := h.onProcess
	h.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

func (h *testHandler) Clone() Handler {
	h.mu.Lock()
	h.clones++
	h.mu.Unlock()
	return &testHandler{}
}

func (h *testHandler) processed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.process
}

func (h *testHandler) cloned() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clones
}

// finalizingHandler adds the optional release hook.
type finalizingHandler struct {
	testHandler
	finalizeMu sync.Mutex
	finalize   int
}

func (h *finalizingHandler) Finalize(*Request) {
	h.finalizeMu.Lock()
	h.finalize++
	h.finalizeMu.Unlock()
}

func (h *finalizingHandler) finalized() int {
	h.finalizeMu.Lock()
	defer h.finalizeMu.Unlock()
	return h.finalize
}

// erroringHandler adds the optional channel-failure hook.
type erroringHandler struct {
	testHandler
	errorMu sync.Mutex
	errors  int
}

func (h *erroringHandler) HandleError(*Request) {
	h.errorMu.Lock()
	h.errors++
	h.errorMu.Unlock()
}

func (h *erroringHandler) errored() int {
	h.errorMu.Lock()
	defer h.errorMu.Unlock()
	return h.errors
}

// registrarSource wraps a BufferedSource, recording registrations.
type registrarSource struct {
	*BufferedSource
	mu         sync.Mutex
	registered []*Request
}

func newRegistrarSource(size int) *registrarSource {
	return &registrarSource{BufferedSource: NewBufferedSource(size)}
}

func (x *registrarSource) Register(r *Request) {
	x.mu.Lock()
	x.registered = append(x.registered, r)
	x.mu.Unlock()
}

func (x *registrarSource) registrations() []*Request {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*Request(nil), x.registered...)
}

// inlineExecutor runs resumptions synchronously and counts them. With
// record set, thunks are captured without running, so tests can assert
// on the wake before releasing it.
type inlineExecutor struct {
	mu     sync.Mutex
	thunks []func()
	record bool
}

func (x *inlineExecutor) Execute(fn func()) {
	x.mu.Lock()
	x.thunks = append(x.thunks, fn)
	record := x.record
	x.mu.Unlock()
	if !record {
		fn()
	}
}

func (x *inlineExecutor) count() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.thunks)
}
