package grpcdispatch

import (
	"errors"
	"net"

	"github.com/joeycumines/logiface"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// defaultSourceBuffer is the buffer size of the [BufferedSource] a
// [Service] falls back to when no source is configured.
const defaultSourceBuffer = 64

// serviceOptions holds configuration for a [Service] instance.
type serviceOptions struct {
	executor   Executor
	logger     *logiface.Logger[logiface.Event]
	source     Source
	listener   net.Listener
	creds      credentials.TransportCredentials
	register   func(grpc.ServiceRegistrar)
	address    string
	serverOpts []grpc.ServerOption
}

// Option configures a [Service] instance. Options are applied during
// construction, by [New].
type Option interface {
	applyOption(*serviceOptions) error
}

// serviceOptionImpl implements [Option] via a closure.
type serviceOptionImpl struct {
	fn func(*serviceOptions) error
}

func (o *serviceOptionImpl) applyOption(opts *serviceOptions) error {
	return o.fn(opts)
}

// WithExecutor configures the scheduling capability used to resume a
// parked consumer. Defaults to [GoExecutor]. Must not be nil.
func WithExecutor(executor Executor) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		if executor == nil {
			return errors.New(`grpcdispatch: executor must not be nil`)
		}
		opts.executor = executor
		return nil
	}}
}

// WithLogger configures structured logging. A nil logger disables
// logging, which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithSource configures the notification source the dispatcher drains.
// Defaults to a [BufferedSource] sized [defaultSourceBuffer]. Must not
// be nil.
func WithSource(source Source) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		if source == nil {
			return errors.New(`grpcdispatch: source must not be nil`)
		}
		opts.source = source
		return nil
	}}
}

// WithListener configures the listener the owned gRPC server serves on.
// Mutually exclusive with [WithAddress].
func WithListener(lis net.Listener) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		if lis == nil {
			return errors.New(`grpcdispatch: listener must not be nil`)
		}
		opts.listener = lis
		return nil
	}}
}

// WithAddress configures the address the owned gRPC server binds and
// listens on. Mutually exclusive with [WithListener].
func WithAddress(address string) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		if address == "" {
			return errors.New(`grpcdispatch: address must not be empty`)
		}
		opts.address = address
		return nil
	}}
}

// WithTransportCredentials configures the server transport credentials.
// Defaults to insecure credentials. Only meaningful alongside
// [WithAddress] or [WithListener].
func WithTransportCredentials(creds credentials.TransportCredentials) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		if creds == nil {
			return errors.New(`grpcdispatch: credentials must not be nil`)
		}
		opts.creds = creds
		return nil
	}}
}

// WithServerOption appends additional [grpc.ServerOption] values used to
// construct the owned gRPC server.
func WithServerOption(serverOpts ...grpc.ServerOption) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		opts.serverOpts = append(opts.serverOpts, serverOpts...)
		return nil
	}}
}

// WithService configures a callback that registers gRPC service
// implementations on the owned server, before it starts serving.
func WithService(register func(grpc.ServiceRegistrar)) Option {
	return &serviceOptionImpl{fn: func(opts *serviceOptions) error {
		if register == nil {
			return errors.New(`grpcdispatch: service registration func must not be nil`)
		}
		opts.register = register
		return nil
	}}
}

// resolveOptions applies the given options to a default
// [serviceOptions].
func resolveOptions(opts []Option) (*serviceOptions, error) {
	cfg := &serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.address != "" && cfg.listener != nil {
		return nil, errors.New(`grpcdispatch: address and listener are mutually exclusive`)
	}
	if cfg.register != nil && cfg.address == "" && cfg.listener == nil {
		return nil, errors.New(`grpcdispatch: service registration requires an address or listener`)
	}
	if cfg.executor == nil {
		cfg.executor = GoExecutor{}
	}
	if cfg.source == nil {
		cfg.source = NewBufferedSource(defaultSourceBuffer)
	}
	if cfg.creds == nil {
		cfg.creds = insecure.NewCredentials()
	}
	return cfg, nil
}
