package grpcdispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestState_String(t *testing.T) {
	assert.Equal(t, `New`, StateNew.String())
	assert.Equal(t, `Processing`, StateProcessing.String())
	assert.Equal(t, `Done`, StateDone.String())
	assert.Equal(t, `Unknown`, State(42).String())
}

func TestRequest_lifecycle(t *testing.T) {
	src := newRegistrarSource(4)
	svc := newTestService(t, WithSource(src))

	h := &finalizingHandler{}
	r := svc.Register(h)
	require.Equal(t, StateNew, r.State())
	require.Same(t, svc, r.Service())
	require.Equal(t, []*Request{r}, src.registrations())

	// first drive: clone exactly once, then process
	r.Proceed()
	assert.Equal(t, 1, h.cloned())
	assert.Equal(t, 1, h.processed())
	assert.Equal(t, StateProcessing, r.State())
	require.Len(t, src.registrations(), 2, `clone must have registered a replacement`)
	require.NotSame(t, r, src.registrations()[1])

	// subsequent drives: process only
	r.Proceed()
	assert.Equal(t, 1, h.cloned())
	assert.Equal(t, 2, h.processed())

	// Complete is a pure state write
	h.onProcess = func(r *Request) { r.Complete() }
	r.Proceed()
	assert.Equal(t, 3, h.processed())
	assert.Equal(t, 0, h.finalized())
	require.Equal(t, StateDone, r.State())

	// terminal drive: release, never process
	r.Proceed()
	assert.Equal(t, 3, h.processed())
	assert.Equal(t, 1, h.finalized())
	assert.Nil(t, r.handler)
	assert.Nil(t, r.service)
}

func TestRequest_releaseWithoutFinalizer(t *testing.T) {
	svc := newTestService(t, WithSource(NewBufferedSource(4)))

	r := svc.Register(&testHandler{})
	r.Complete()
	r.Proceed()
	assert.Nil(t, r.handler)
	assert.Nil(t, r.service)
}

func TestRequest_errorHookDefault(t *testing.T) {
	svc := newTestService(t, WithSource(NewBufferedSource(4)))

	h := &finalizingHandler{}
	r := svc.Register(h)
	r.fail()
	assert.Equal(t, 1, h.finalized())
	assert.Equal(t, 0, h.processed())
	assert.Nil(t, r.handler)
}

func TestRequest_errorHookOverride(t *testing.T) {
	svc := newTestService(t, WithSource(NewBufferedSource(4)))

	h := &erroringHandler{}
	r := svc.Register(h)
	r.fail()
	assert.Equal(t, 1, h.errored())
	// the override chose not to release
	assert.NotNil(t, r.handler)
}

func TestRequest_context(t *testing.T) {
	svc := newTestService(t, WithSource(NewBufferedSource(4)))

	r := svc.Register(&testHandler{})
	require.NotNil(t, r.Context())

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, `v`)
	r.SetContext(ctx)
	require.Equal(t, `v`, r.Context().Value(key{}))
}
