// Package pebblestore is the Pebble key/value facade behind the pebble
// counter location: point reads and writes under an fsync policy, a health
// probe and latency hooks.
//
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
//	if err != nil { /* handle */ }
//	defer db.Close()
//	_ = db.Set(ctx, key, record)
package pebblestore
