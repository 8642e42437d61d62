// Package config provides loading and environment overlay for gdid
// configuration: the Authority's counter locations and limits, the
// Generator's block size, low-water mark and retry policy, and logging.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file (JSON or YAML) and overlay env vars
//	if fileCfg, err := config.Load("/etc/gdid/gdid.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
package config
