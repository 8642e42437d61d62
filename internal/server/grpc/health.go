package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/gdid/internal/runtime"
	"github.com/rzbill/gdid/pkg/authorityrpc"
)

const healthInterval = 5 * time.Second

// refreshHealth maps runtime health onto the standard health service, for
// the whole server and for the Authority service.
func refreshHealth(ctx context.Context, rt *runtime.Runtime, hs *health.Server) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := rt.CheckHealth(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(authorityrpc.ServiceName, st)
}

func watchHealth(ctx context.Context, rt *runtime.Runtime, hs *health.Server) {
	t := time.NewTicker(healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			refreshHealth(ctx, rt, hs)
		}
	}
}
