// Package log wraps zerolog to give every package in this tree the same
// JSON-structured, component-scoped logging the rest of the stack expects:
//
//	import "github.com/cuemby/rsmgr/pkg/log"
//
//	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
//	rsmLog := log.WithComponent("rsm")
//	rsmLog.Info().Uint64("index", 42).Msg("snapshot installed")
//
// WithComponent derives a named child logger from the package-level
// Logger; WithNodeID, WithSessionID, WithServiceName, and WithIndex each
// derive a further child from a logger you already hold, attaching one
// field, so call sites compose context instead of repeating fields:
//
//	sessionLog := log.WithSessionID(m.logger, sessionID)
//	sessionLog.Warn().Err(err).Msg("keep alive failed")
package log
