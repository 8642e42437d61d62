// Package runtime wires config, Locations, metrics and the Authority into a
// single GDID authority node. It exposes Open/Close and health checks.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	blk, _ := rt.Authority().AllocateBlock(ctx, "billing", "invoice", 1024, gdid.VicinityNone)
package runtime
