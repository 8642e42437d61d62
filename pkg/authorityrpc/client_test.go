package authorityrpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rzbill/gdid/pkg/gdid"
)

type fakeServer struct {
	mu        sync.Mutex
	requester string
	lastReq   *AllocateBlockRequest
	err       error
	infos     []gdid.SequenceInfo
}

func (f *fakeServer) AllocateBlock(ctx context.Context, req *AllocateBlockRequest) (*AllocateBlockResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequesterHeader); len(v) > 0 {
			f.requester = v[0]
		}
	}
	if f.err != nil {
		return nil, ServerError(ctx, f.err)
	}
	return NewAllocateBlockResponse(gdid.Block{
		Era:            3,
		StartInclusive: 100,
		Count:          uint64(req.BlockSize),
		Authority:      "auth-1",
		IssuedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}), nil
}

func (f *fakeServer) GetSequenceInfos(ctx context.Context, req *GetSequenceInfosRequest) (*GetSequenceInfosResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, ServerError(ctx, f.err)
	}
	return &GetSequenceInfosResponse{Infos: f.infos}, nil
}

func serve(t *testing.T, srv AuthorityServer) (*bufconn.Listener, *grpc.Server, *Client) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterAuthorityServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := Dial("passthrough:///bufnet", []grpc.DialOption{
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, WithRequester("gen-1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return lis, s, c
}

func TestAllocateBlockRoundtrip(t *testing.T) {
	f := &fakeServer{}
	_, _, c := serve(t, f)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	blk, err := c.AllocateBlock(ctx, "billing", "invoice", 64, 12345)
	require.NoError(t, err)
	assert.Equal(t, gdid.Block{
		Scope: "billing", Sequence: "invoice", Era: 3, StartInclusive: 100, Count: 64,
		Authority: "auth-1", IssuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, blk)
	assert.Equal(t, &AllocateBlockRequest{Scope: "billing", Sequence: "invoice", BlockSize: 64, Vicinity: 12345}, f.lastReq)
	assert.Equal(t, "gen-1", f.requester)
}

func TestServerKindsSurviveTheWire(t *testing.T) {
	tests := []struct {
		err       error
		kind      gdid.ErrorKind
		retryable bool
	}{
		{gdid.NewError(gdid.KindLocationWriteTotalFailure, "s", "q", errors.New("all writes failed")), gdid.KindLocationWriteTotalFailure, true},
		{gdid.NewError(gdid.KindLocationReadTotalFailure, "s", "q", errors.New("all reads failed")), gdid.KindLocationReadTotalFailure, true},
		{gdid.ValidateNames("s", "bad name"), gdid.KindInvalidName, false},
		{gdid.NewError(gdid.KindSequenceExhausted, "s", "q", errors.New("done")), gdid.KindSequenceExhausted, false},
		{errors.New("boom"), gdid.KindUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			f := &fakeServer{err: tt.err}
			_, _, c := serve(t, f)
			_, err := c.AllocateBlock(context.Background(), "s", "q", 1, gdid.VicinityNone)
			require.Error(t, err)
			assert.Equal(t, tt.kind, gdid.KindOf(err))
			assert.Equal(t, tt.retryable, gdid.IsRetryable(err))
			if tt.kind == gdid.KindInvalidName {
				assert.ErrorIs(t, err, gdid.ErrInvalidName)
			}
		})
	}
}

func TestTransportFailureIsRequestFailure(t *testing.T) {
	lis, s, c := serve(t, &fakeServer{})
	s.Stop()
	_ = lis.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := c.AllocateBlock(ctx, "s", "q", 1, gdid.VicinityNone)
	require.Error(t, err)
	assert.Equal(t, gdid.KindRequestFailure, gdid.KindOf(err))
	assert.True(t, gdid.IsRetryable(err))
}

func TestSequenceInfosRoundtrip(t *testing.T) {
	issued := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	f := &fakeServer{infos: []gdid.SequenceInfo{{
		Scope: "billing", Sequence: "invoice", Era: 1, ApproximateCurrentValue: 10,
		TotalPreallocation: 10, IssuerName: "auth-1", IssueUtcDate: issued,
	}}}
	_, _, c := serve(t, f)

	infos, err := c.SequenceInfos(context.Background(), "billing", "")
	require.NoError(t, err)
	assert.Equal(t, f.infos, infos)
}

func TestClientErrorWithoutTrailer(t *testing.T) {
	err := ClientError(status.Error(codes.InvalidArgument, "nope"), nil, "s", "q")
	assert.Equal(t, gdid.KindInvalidArgument, gdid.KindOf(err))

	err = ClientError(status.Error(codes.DeadlineExceeded, "slow"), nil, "s", "q")
	assert.Equal(t, gdid.KindRequestFailure, gdid.KindOf(err))

	err = ClientError(status.Error(codes.Internal, "bug"), nil, "s", "q")
	assert.Equal(t, gdid.KindUnknown, gdid.KindOf(err))

	assert.NoError(t, ClientError(nil, nil, "s", "q"))
}

func TestCodecRoundtrip(t *testing.T) {
	in := &AllocateBlockRequest{Scope: "s", Sequence: "q", BlockSize: 7, Vicinity: gdid.VicinityNone}
	b, err := codec{}.Marshal(in)
	require.NoError(t, err)
	out := new(AllocateBlockRequest)
	require.NoError(t, codec{}.Unmarshal(b, out))
	assert.Equal(t, in, out)
	assert.Equal(t, "msgpack", codec{}.Name())
}
