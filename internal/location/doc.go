// Package location implements the durable counter stores behind an
// Authority. Every backend stores one small checksummed record per
// (scope, sequence) holding the next counter value and its era.
//
// Backends:
//   - Pebble: embedded LSM store (default primary)
//   - Bolt:   single-file B+tree (default secondary)
//   - S3:     object per counter in an S3-compatible bucket
//   - Memory: volatile, with failure injection for tests
package location
