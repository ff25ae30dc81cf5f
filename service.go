package grpcdispatch

import (
	"context"
	"errors"
	"net"
	"sync"

	bigbuff "github.com/joeycumines/go-bigbuff"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Service owns the dispatcher goroutine, the handoff [Queue], the
// notification [Source], and (optionally) a gRPC server built from the
// configured address or listener. See the package documentation for the
// overall flow.
//
// Instances must be created via [New], which also starts the service.
type Service struct {
	notifier bigbuff.Notifier
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logiface.Logger[logiface.Event]
	source   Source
	server   *grpc.Server
	listener net.Listener
	queue    *Queue
	err      error
	done     chan struct{}
	stop     sync.Once
	mu       sync.Mutex
}

// New constructs and starts a Service. If an address or listener was
// configured, the owned gRPC server is built (credentials, server
// options, service registration callback) and starts serving
// immediately; either way, the dispatcher goroutine starts draining the
// source.
func New(opts ...Option) (*Service, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	lis := cfg.listener
	if cfg.address != "" {
		lis, err = net.Listen(`tcp`, cfg.address)
		if err != nil {
			return nil, err
		}
	}

	var server *grpc.Server
	if lis != nil {
		server = grpc.NewServer(append([]grpc.ServerOption{grpc.Creds(cfg.creds)}, cfg.serverOpts...)...)
		if cfg.register != nil {
			cfg.register(server)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	x := Service{
		ctx:      ctx,
		cancel:   cancel,
		logger:   cfg.logger,
		source:   cfg.source,
		server:   server,
		listener: lis,
		queue:    NewQueue(cfg.executor),
		done:     make(chan struct{}),
	}

	go x.run()

	return &x, nil
}

func (x *Service) run() {
	defer close(x.done)
	defer x.cancel()

	var eg errgroup.Group

	if x.server != nil {
		eg.Go(func() error {
			err := x.server.Serve(x.listener)
			if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				// the dispatcher is still draining - unblock it
				x.source.Shutdown()
				return err
			}
			return nil
		})
	}

	eg.Go(func() error {
		x.dispatch()
		return nil
	})

	if err := eg.Wait(); err != nil {
		x.fatalErr(err)
		x.logger.Err().Err(err).Log(`grpcdispatch: service stopped with error`)
	}
}

// dispatch drains the notification source until it reports closed.
// Successful events are published to subscribers then pushed into the
// queue; failed events are routed to the request's error hook directly.
func (x *Service) dispatch() {
	x.logger.Debug().Log(`grpcdispatch: dispatcher started`)
	defer x.logger.Debug().Log(`grpcdispatch: dispatcher stopped`)

	for {
		ev, open := x.source.Next()
		if !open {
			return
		}
		if ev.Request == nil {
			continue
		}
		if ev.OK {
			x.publish(ev.Request)
			x.queue.Push(ev.Request)
		} else {
			ev.Request.fail()
		}
	}
}

func (x *Service) fatalErr(err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err == nil && err != nil {
		x.err = err
	}
}

// Register creates a request in the New state bound to h, and arms it
// with the notification source when the source supports registration.
// The request becomes eligible for delivery the moment the source
// reports an event correlated to it.
func (x *Service) Register(h Handler) *Request {
	r := Request{service: x, handler: h, state: StateNew}
	if reg, ok := x.source.(Registrar); ok {
		reg.Register(&r)
	}
	return &r
}

// Awaiter returns the suspension point over the service's queue. At most
// one logical consumer may use it at a time.
func (x *Service) Awaiter() Awaiter {
	return NewAwaiter(x.queue)
}

// Await blocks until the next request is available and returns it.
// Shorthand for Awaiter().Await; the same single-consumer contract
// applies. Note that shutting down the service does not unblock a
// parked Await.
func (x *Service) Await() *Request {
	return x.Awaiter().Await()
}

// Server returns the owned gRPC server, or nil if no address or listener
// was configured.
func (x *Service) Server() *grpc.Server {
	return x.server
}

// Source returns the notification source the dispatcher drains.
func (x *Service) Source() Source {
	return x.source
}

// Done is closed once the service has fully stopped: the gRPC server (if
// any) stopped serving and the dispatcher drained the source to closure.
func (x *Service) Done() <-chan struct{} {
	return x.done
}

// Err returns the terminal error, if any. Non-nil only if the serve loop
// failed.
func (x *Service) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

// initiateStop starts shutdown exactly once: stop the owned server, then
// shut down the source so the dispatcher drains and exits.
func (x *Service) initiateStop(graceful bool) {
	x.stop.Do(func() {
		go func() {
			if x.server != nil {
				if graceful {
					x.server.GracefulStop()
				} else {
					x.server.Stop()
				}
			}
			x.source.Shutdown()
		}()
	})
}

// Shutdown stops the service, waiting for in-flight RPCs to finish and
// for the dispatcher to drain remaining events. If ctx expires first,
// shutdown escalates to a forceful stop and still waits for the
// dispatcher to exit. Idempotent.
func (x *Service) Shutdown(ctx context.Context) error {
	x.initiateStop(true)

	select {
	case <-ctx.Done():
		if x.server != nil {
			x.server.Stop()
		}
		x.source.Shutdown()
		<-x.done
	case <-x.done:
	}

	return x.Err()
}

// Close stops the service immediately, without waiting for in-flight
// RPCs. Idempotent.
func (x *Service) Close() error {
	x.initiateStop(false)
	if x.server != nil {
		x.server.Stop()
	}
	x.source.Shutdown()
	<-x.done
	return x.Err()
}

// Subscribe accepts any `target` that is a channel which can accept
// *Request values, and delivers every successfully dispatched request to
// it, for observation. The returned cancel func MUST be called, unless
// `ctx` is cancelled.
// WARNING: Sends to `target` are blocking, from the dispatcher
// goroutine, and callers must therefore always receive promptly.
func (x *Service) Subscribe(ctx context.Context, target any) context.CancelFunc {
	return x.notifier.SubscribeCancel(ctx, nil, target)
}

func (x *Service) publish(r *Request) {
	x.notifier.PublishContext(x.ctx, nil, r)
}
