// Package grpcdispatch bridges a blocking, completion-queue style event
// source with a single consumer that receives work one request at a time,
// without blocking a goroutine per pending request and without polling.
//
// # Architecture
//
// A [Service] owns a dispatcher goroutine that drains a [Source] (for a
// gRPC async server, the completion queue analogue). Each successful
// event is pushed into a lock-free MPSC [Queue]; each failed event is
// routed to the registered request's error hook directly, bypassing the
// queue. The consumer side is an [Awaiter]: a three-moment suspension
// protocol (ready-check, attempt-park, resume) over the queue, plus a
// blocking [Awaiter.Await] convenience.
//
// When the consumer parks, its resumption thunk is stored in the queue's
// shared handoff word. The producer that next publishes a request hands
// that thunk to the injected [Executor], so the dispatcher goroutine is
// never borrowed for application work and remains free to keep draining
// events.
//
// # Request Lifecycle
//
// Application behavior is supplied via [Handler], with two mandatory
// hooks (Process, Clone) and two optional ones ([ErrorHandler],
// [Finalizer]) carrying default behavior. Driving a freshly registered
// request first registers a clone, so the service never stops listening
// for the next occurrence of the same event class while one instance is
// being processed. A handler signals it is finished via
// [Request.Complete]; the next delivery then releases the request.
//
// # Thread Safety
//
//   - [Queue.Push] is safe for any number of concurrent producers.
//   - Ready, Park, Acquire, and therefore [Awaiter] and
//     [Service.Await], must only be used by a single consumer at a time;
//     the consumer-private buffer is deliberately unsynchronized.
//   - Shutdown is idempotent and safe from any goroutine.
//
// Once parked, a consumer is only woken by a subsequent event; shutting
// down the service stops the dispatcher but does not wake an
// already-parked consumer.
package grpcdispatch
