// Package gdid defines the Global Distributed Identifier and the data model
// shared by the Authority, the Generator, and the transport.
//
// # Format
//
// A GDID is 96 bits: a 32-bit Era followed by a 64-bit Counter. Values are
// ordered lexicographically on (Era, Counter), and both the 12-byte binary
// form and the 16-character text form preserve that order under byte-wise
// comparison.
//
//	 0                   32                                        96
//	+-------------------+------------------------------------------+
//	|     era (be4)     |               counter (be8)              |
//	+-------------------+------------------------------------------+
//
// The zero value (Era=0, Counter=0) is reserved and never issued.
//
// Usage
//
//	id := gdid.GDID{Era: 0, Counter: 42}
//	s := id.String()        // order-preserving text
//	back, _ := gdid.Parse(s)
//	_ = back.Compare(id)    // 0
package gdid
