package generator

import (
	"context"
	"errors"

	"github.com/rzbill/gdid/pkg/gdid"
)

// ErrNoAuthority is returned when no Authority can be resolved for a sequence.
var ErrNoAuthority = errors.New("no authority configured")

// AuthorityClient is the Generator's view of an Authority. Both an in-process
// Authority and the gRPC client satisfy it.
type AuthorityClient interface {
	AllocateBlock(ctx context.Context, scope, sequence string, blockSize int, vicinity uint64) (gdid.Block, error)
}

// Resolver picks the Authority that owns a sequence.
type Resolver interface {
	Resolve(ctx context.Context, scope, sequence string) (AuthorityClient, error)
}

// StaticResolver sends every sequence to the same Authority.
type StaticResolver struct {
	Client AuthorityClient
}

func (r StaticResolver) Resolve(context.Context, string, string) (AuthorityClient, error) {
	if r.Client == nil {
		return nil, ErrNoAuthority
	}
	return r.Client, nil
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, scope, sequence string) (AuthorityClient, error)

func (f ResolverFunc) Resolve(ctx context.Context, scope, sequence string) (AuthorityClient, error) {
	return f(ctx, scope, sequence)
}
