package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rzbill/gdid/internal/runtime"
	"github.com/rzbill/gdid/pkg/authorityrpc"
	logpkg "github.com/rzbill/gdid/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New constructs a gRPC server and registers the Authority and health services.
func New(rt *runtime.Runtime, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	logger = logger.WithComponent("grpc")
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(logUnary(logger))}, opts...)
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...), health: health.NewServer(), logger: logger}
	authorityrpc.RegisterAuthorityServer(s.grpc, &authoritySvc{rt: rt})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	refreshHealth(context.Background(), rt, s.health)
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	go watchHealth(ctx, s.rt, s.health)
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func logUnary(logger logpkg.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []logpkg.Field{
			logpkg.Str("method", info.FullMethod),
			logpkg.Duration("elapsed", time.Since(start)),
		}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(authorityrpc.RequesterHeader); len(v) > 0 {
				fields = append(fields, logpkg.Str("requester", v[0]))
			}
		}
		if err != nil {
			fields = append(fields, logpkg.Str("code", status.Code(err).String()), logpkg.Err(err))
			logger.Warn("rpc failed", fields...)
		} else {
			logger.Debug("rpc", fields...)
		}
		return resp, err
	}
}
