package authorityrpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gdid.v1.AuthorityService"

const (
	allocateBlockMethod    = "/" + ServiceName + "/AllocateBlock"
	getSequenceInfosMethod = "/" + ServiceName + "/GetSequenceInfos"
)

// AuthorityServer is the server API of the Authority service.
type AuthorityServer interface {
	AllocateBlock(context.Context, *AllocateBlockRequest) (*AllocateBlockResponse, error)
	GetSequenceInfos(context.Context, *GetSequenceInfosRequest) (*GetSequenceInfosResponse, error)
}

// RegisterAuthorityServer registers srv with s. Messages use the msgpack codec.
func RegisterAuthorityServer(s grpc.ServiceRegistrar, srv AuthorityServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func allocateBlockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AllocateBlockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthorityServer).AllocateBlock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: allocateBlockMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthorityServer).AllocateBlock(ctx, req.(*AllocateBlockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getSequenceInfosHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSequenceInfosRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthorityServer).GetSequenceInfos(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getSequenceInfosMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthorityServer).GetSequenceInfos(ctx, req.(*GetSequenceInfosRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the Authority service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthorityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AllocateBlock", Handler: allocateBlockHandler},
		{MethodName: "GetSequenceInfos", Handler: getSequenceInfosHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gdid/v1/authority",
}
