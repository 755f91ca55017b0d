// Package logpipe assembles and runs log delivery pipelines.
//
// A Spec lists sinks (console, plain, size rotated and time rotated files,
// SMTP, HTTP, NATS or any backends.Backend). Build turns it into a Logger.
// Each sink is a small stack of decorators:
//
//	gate (level + filters) -> async queue (optional) -> batching (optional) -> render + transport
//
// Sinks are independent. A sink that fails to build is skipped, a slow
// async sink drops events instead of blocking producers, and delivery
// failures are reported to the ErrorHandler rather than returned to the
// caller of a logging method.
//
// Basic usage:
//
//	logger, _ := logpipe.Build(logpipe.Spec{
//		Name:  "api",
//		Level: types.LevelInfo,
//		Sinks: []logpipe.SinkConfig{
//			{Kind: logpipe.KindConsole},
//			{Kind: logpipe.KindRotatingFile, Rotating: &logpipe.RotatingFileConfig{
//				Path: "/var/log/api.log", MaxBytes: 10 << 20, BackupCount: 5,
//			}},
//		},
//	})
//	defer logger.Close()
//
//	logger.Info("listening", types.F("addr", ":8080"))
//
// Every event that passes a sink's gate is accounted for in Logger.Stats as
// delivered, dropped (queue full, delivery error, shutdown) or pending.
package logpipe
