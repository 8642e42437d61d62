package transports

import (
	"context"

	"github.com/rzbill/gdid/pkg/gdid"
)

// AuthorityTransport abstracts the transport used by the CLI to reach an
// Authority. It also satisfies generator.AuthorityClient.
type AuthorityTransport interface {
	AllocateBlock(ctx context.Context, scope, sequence string, blockSize int, vicinity uint64) (gdid.Block, error)
	SequenceInfos(ctx context.Context, scope, filter string) ([]gdid.SequenceInfo, error)
	// Health returns the serving status name of service ("" for the server).
	Health(ctx context.Context, service string) (string, error)
	Close() error
}
