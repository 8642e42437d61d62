package grpcserver

import (
	"context"

	"github.com/rzbill/gdid/internal/authority"
	"github.com/rzbill/gdid/internal/runtime"
	"github.com/rzbill/gdid/pkg/authorityrpc"
	"github.com/rzbill/gdid/pkg/gdid"
)

type authoritySvc struct {
	rt *runtime.Runtime
}

func (s *authoritySvc) AllocateBlock(ctx context.Context, req *authorityrpc.AllocateBlockRequest) (*authorityrpc.AllocateBlockResponse, error) {
	blk, err := s.rt.Authority().AllocateBlock(ctx, req.Scope, req.Sequence, req.BlockSize, req.Vicinity)
	if err != nil {
		return nil, authorityrpc.ServerError(ctx, err)
	}
	return authorityrpc.NewAllocateBlockResponse(blk), nil
}

func (s *authoritySvc) GetSequenceInfos(ctx context.Context, req *authorityrpc.GetSequenceInfosRequest) (*authorityrpc.GetSequenceInfosResponse, error) {
	filter, err := authority.NewInfoFilter(req.Filter)
	if err != nil {
		return nil, authorityrpc.ServerError(ctx, gdid.NewError(gdid.KindInvalidArgument, req.Scope, "", err))
	}
	infos, err := s.rt.Authority().SequenceInfos(req.Scope)
	if err != nil {
		return nil, authorityrpc.ServerError(ctx, err)
	}
	if infos, err = filter.Apply(infos); err != nil {
		return nil, authorityrpc.ServerError(ctx, gdid.NewError(gdid.KindInvalidArgument, req.Scope, "", err))
	}
	return &authorityrpc.GetSequenceInfosResponse{Infos: infos}, nil
}
