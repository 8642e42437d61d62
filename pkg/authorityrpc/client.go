package authorityrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/rzbill/gdid/pkg/gdid"
)

// Client calls a remote Authority. It satisfies generator.AuthorityClient.
type Client struct {
	cc        grpc.ClientConnInterface
	conn      *grpc.ClientConn
	requester string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequester tags every call with the caller's identity.
func WithRequester(id string) ClientOption {
	return func(c *Client) { c.requester = id }
}

// Dial connects to an Authority at addr. Without dial options the connection
// is plaintext.
func Dial(addr string, dopts []grpc.DialOption, opts ...ClientOption) (*Client, error) {
	if len(dopts) == 0 {
		dopts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, dopts...)
	if err != nil {
		return nil, err
	}
	c := NewClient(conn, opts...)
	c.conn = conn
	return c, nil
}

// NewClient wraps an existing connection. The caller keeps ownership of cc.
func NewClient(cc grpc.ClientConnInterface, opts ...ClientOption) *Client {
	c := &Client{cc: cc}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.requester == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, RequesterHeader, c.requester)
}

// AllocateBlock asks the Authority for a block. Network and timeout failures
// come back as gdid.KindRequestFailure; rejections keep the server's kind.
func (c *Client) AllocateBlock(ctx context.Context, scope, sequence string, blockSize int, vicinity uint64) (gdid.Block, error) {
	var trailer metadata.MD
	out := new(AllocateBlockResponse)
	err := c.cc.Invoke(c.outgoing(ctx), allocateBlockMethod, &AllocateBlockRequest{
		Scope:     scope,
		Sequence:  sequence,
		BlockSize: blockSize,
		Vicinity:  vicinity,
	}, out, grpc.CallContentSubtype(CodecName), grpc.Trailer(&trailer))
	if err != nil {
		return gdid.Block{}, ClientError(err, trailer, scope, sequence)
	}
	return out.Block(scope, sequence), nil
}

// SequenceInfos lists monitoring info for scope ("" for all), optionally
// narrowed by a CEL filter evaluated on the server.
func (c *Client) SequenceInfos(ctx context.Context, scope, filter string) ([]gdid.SequenceInfo, error) {
	var trailer metadata.MD
	out := new(GetSequenceInfosResponse)
	err := c.cc.Invoke(c.outgoing(ctx), getSequenceInfosMethod, &GetSequenceInfosRequest{
		Scope:  scope,
		Filter: filter,
	}, out, grpc.CallContentSubtype(CodecName), grpc.Trailer(&trailer))
	if err != nil {
		return nil, ClientError(err, trailer, scope, "")
	}
	for i := range out.Infos {
		out.Infos[i].IssueUtcDate = out.Infos[i].IssueUtcDate.UTC()
	}
	return out.Infos, nil
}

// Conn returns the underlying connection when the Client dialed it itself.
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

// Close closes the connection if the Client dialed it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
