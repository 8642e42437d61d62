// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/gdid/pkg/authorityrpc"
	"github.com/rzbill/gdid/pkg/gdid"
)

// GrpcTransport implements AuthorityTransport over gRPC.
type GrpcTransport struct {
	conn   *grpc.ClientConn
	client *authorityrpc.Client
	health healthpb.HealthClient
}

// NewGrpcTransport connects to addr in plaintext and tags calls with requester.
func NewGrpcTransport(addr, requester string) (*GrpcTransport, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GrpcTransport{
		conn:   conn,
		client: authorityrpc.NewClient(conn, authorityrpc.WithRequester(requester)),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// AllocateBlock requests one block.
func (t *GrpcTransport) AllocateBlock(ctx context.Context, scope, sequence string, blockSize int, vicinity uint64) (gdid.Block, error) {
	return t.client.AllocateBlock(ctx, scope, sequence, blockSize, vicinity)
}

// SequenceInfos lists sequences, optionally narrowed by a CEL filter.
func (t *GrpcTransport) SequenceInfos(ctx context.Context, scope, filter string) ([]gdid.SequenceInfo, error) {
	return t.client.SequenceInfos(ctx, scope, filter)
}

// Health queries the standard gRPC health service.
func (t *GrpcTransport) Health(ctx context.Context, service string) (string, error) {
	resp, err := t.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}

// Close releases the connection.
func (t *GrpcTransport) Close() error { return t.conn.Close() }
