package authorityrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rzbill/gdid/pkg/gdid"
)

// KindTrailer carries the gdid.ErrorKind of an application-level failure.
// Its absence marks a transport failure.
const KindTrailer = "gdid-kind"

// RequesterHeader names the calling generator, for server logs.
const RequesterHeader = "gdid-requester"

// ServerError converts an allocation error into a gRPC status and records its
// kind in the call trailer. ctx must be the handler's context.
func ServerError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var ae *gdid.AllocationError
	if !errors.As(err, &ae) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return status.Error(codes.DeadlineExceeded, err.Error())
		case errors.Is(err, context.Canceled):
			return status.Error(codes.Canceled, err.Error())
		}
		return status.Error(codes.Internal, err.Error())
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(KindTrailer, ae.Kind.String()))
	return status.Error(codeFor(ae.Kind), err.Error())
}

func codeFor(k gdid.ErrorKind) codes.Code {
	switch k {
	case gdid.KindInvalidName, gdid.KindInvalidArgument:
		return codes.InvalidArgument
	case gdid.KindLocationReadTotalFailure, gdid.KindLocationWriteTotalFailure, gdid.KindClosed:
		return codes.Unavailable
	case gdid.KindSequenceExhausted:
		return codes.ResourceExhausted
	case gdid.KindRequestFailure:
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// ClientError converts a failed call into an AllocationError. Failures the
// server classified keep their kind; everything else is a request failure,
// or KindUnknown for unexpected server errors.
func ClientError(err error, trailer metadata.MD, scope, sequence string) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	if vals := trailer.Get(KindTrailer); len(vals) > 0 {
		kind := gdid.ParseKind(vals[0])
		if kind == gdid.KindInvalidName {
			return gdid.NewError(kind, scope, sequence, errors.Join(gdid.ErrInvalidName, errors.New(st.Message())))
		}
		return gdid.NewError(kind, scope, sequence, errors.New(st.Message()))
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return gdid.NewError(gdid.KindInvalidArgument, scope, sequence, err)
	case codes.Internal, codes.Unknown:
		return gdid.NewError(gdid.KindUnknown, scope, sequence, err)
	}
	return gdid.NewError(gdid.KindRequestFailure, scope, sequence, err)
}
