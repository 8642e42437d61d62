// Package log provides the structured logging facade used across gdid.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by log/slog through a
// handler that feeds a Formatter/Output pipeline, so every component logs in
// the same shape whether the call site uses the facade or plain slog.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("authority"), log.Str("scope", "billing"))
//	l.Info("block allocated", log.Uint64("start", 100), log.Int("count", 10))
//
// # Levels
//
// Besides the usual debug/info/warn/error/fatal there is Catastrophic, used
// when an allocation aborts because no storage location could be read or
// written. Catastrophic does not exit the process.
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: text or JSON
// formatting, console/file/null output, key redaction and per-message
// sampling.
//
// # Interop
//
// Libraries that write to the standard library logger (Pebble among them) can
// be routed through the facade with RedirectStdLog, or given a dedicated
// *log.Logger via ToStdLogger.
package log
