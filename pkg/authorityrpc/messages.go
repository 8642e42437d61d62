package authorityrpc

import (
	"time"

	"github.com/rzbill/gdid/pkg/gdid"
)

type AllocateBlockRequest struct {
	Scope     string `msgpack:"scope"`
	Sequence  string `msgpack:"sequence"`
	BlockSize int    `msgpack:"block_size"`
	Vicinity  uint64 `msgpack:"vicinity"`
}

type AllocateBlockResponse struct {
	Era            uint32    `msgpack:"era"`
	StartInclusive uint64    `msgpack:"start_inclusive"`
	Count          uint64    `msgpack:"count"`
	Authority      string    `msgpack:"authority"`
	IssuedAt       time.Time `msgpack:"issued_at"`
}

// Block converts the response into the block it describes.
func (r *AllocateBlockResponse) Block(scope, sequence string) gdid.Block {
	return gdid.Block{
		Scope:          scope,
		Sequence:       sequence,
		Era:            r.Era,
		StartInclusive: r.StartInclusive,
		Count:          r.Count,
		Authority:      r.Authority,
		IssuedAt:       r.IssuedAt.UTC(),
	}
}

// NewAllocateBlockResponse builds the response for blk.
func NewAllocateBlockResponse(blk gdid.Block) *AllocateBlockResponse {
	return &AllocateBlockResponse{
		Era:            blk.Era,
		StartInclusive: blk.StartInclusive,
		Count:          blk.Count,
		Authority:      blk.Authority,
		IssuedAt:       blk.IssuedAt,
	}
}

type GetSequenceInfosRequest struct {
	// Scope restricts the listing; empty lists every scope.
	Scope string `msgpack:"scope"`
	// Filter is an optional CEL expression over the sequence info fields.
	Filter string `msgpack:"filter"`
}

type GetSequenceInfosResponse struct {
	Infos []gdid.SequenceInfo `msgpack:"infos"`
}
