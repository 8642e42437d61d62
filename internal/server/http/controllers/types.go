package controllers

import (
	"time"

	"github.com/rzbill/gdid/internal/runtime"
	"github.com/rzbill/gdid/pkg/gdid"
)

// Common request/response types for HTTP controllers

// healthResp reports overall and per-location health.
type healthResp struct {
	Status    string                   `json:"status"`
	Locations []runtime.LocationStatus `json:"locations,omitempty"`
}

// infoResp describes the authority node.
type infoResp struct {
	Authority    string   `json:"authority"`
	CounterMax   uint64   `json:"counterMax"`
	MaxBlockSize int      `json:"maxBlockSize"`
	Locations    []string `json:"locations"`
}

// allocateReq represents a request to allocate a block.
type allocateReq struct {
	Scope     string `json:"scope"`
	Sequence  string `json:"sequence"`
	BlockSize int    `json:"blockSize"`
	// Vicinity is optional; absent means no placement preference.
	Vicinity *uint64 `json:"vicinity,omitempty"`
}

// blockResp represents an allocated block.
type blockResp struct {
	Scope          string    `json:"scope"`
	Sequence       string    `json:"sequence"`
	Era            uint32    `json:"era"`
	StartInclusive uint64    `json:"startInclusive"`
	Count          uint64    `json:"count"`
	First          string    `json:"first"`
	Authority      string    `json:"authority"`
	IssuedAt       time.Time `json:"issuedAt"`
}

func newBlockResp(b gdid.Block) blockResp {
	return blockResp{
		Scope:          b.Scope,
		Sequence:       b.Sequence,
		Era:            b.Era,
		StartInclusive: b.StartInclusive,
		Count:          b.Count,
		First:          b.At(0).String(),
		Authority:      b.Authority,
		IssuedAt:       b.IssuedAt,
	}
}

// sequencesResp lists sequence infos.
type sequencesResp struct {
	Sequences []gdid.SequenceInfo `json:"sequences"`
}
