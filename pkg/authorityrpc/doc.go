// Package authorityrpc is the wire contract between Generators and a remote
// Authority: a hand-written gRPC service descriptor whose messages travel as
// msgpack, plus a client.
//
// Application-level rejections carry their gdid.ErrorKind in the
// "gdid-kind" trailer. A failed call without that trailer never reached the
// Authority's logic and is reported as gdid.KindRequestFailure.
package authorityrpc
