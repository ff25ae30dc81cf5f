package grpcdispatch

type (
	// Executor is the injected scheduling capability used to resume a
	// parked consumer. It receives the resumption thunk stored at park
	// time, at most once per successful park.
	//
	// Implementations are expected to hand fn to a different execution
	// context than the caller's, so the dispatcher goroutine stays free
	// to keep draining events. This is not enforced: [ExecutorFunc] of
	// an inline call is legal, and useful in tests.
	Executor interface {
		// Execute runs fn. It must not drop fn: a parked consumer is
		// resumed by fn and by nothing else.
		Execute(fn func())
	}

	// ExecutorFunc adapts a plain function to [Executor].
	ExecutorFunc func(fn func())

	// GoExecutor runs each resumption on a fresh goroutine. It is the
	// default executor for a [Service].
	GoExecutor struct{}
)

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

func (GoExecutor) Execute(fn func()) { go fn() }
