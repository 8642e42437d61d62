// Package client provides the `gdid` command-line client.
//
// The CLI talks to an Authority over gRPC to allocate blocks, generate
// identifiers through a short-lived local Generator, list issued sequences
// and probe health. It is primarily intended for developers and operators.
//
// # Address configuration
//
// The Authority address is discovered by the application that embeds the
// commands via an AddrFunc. The standalone binary reads --authority, then
// GDID_AUTHORITY_ADDR, and defaults to 127.0.0.1:50051.
//
// Usage
//
//	gdid generate --scope billing --sequence invoice --count 5
//	gdid generate --scope billing --sequence invoice --count 1000 --consecutive --format human
//	gdid block --scope billing --sequence invoice --size 100 --vicinity 500000
//	gdid sequences --scope billing --filter 'era > 0 || current > 1000000'
//	gdid health --service gdid.v1.AuthorityService
//	gdid parse 0:1042
package client
