// Package httpserver provides the JSON monitoring gateway of an Authority
// node: health with per-location detail, node info, sequence listing with
// CEL filters, direct block allocation and the Prometheus /metrics endpoint.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
