// Package kv implements rsm.Service as a replicated key/value store: the
// example service type rsmd registers against the core, exercising the full
// Command/Query/snapshot surface with a real wire codec rather than the core
// test suite's ad-hoc fakes.
//
// Wire format is github.com/ugorji/go/codec's MessagePack handle, grounded
// on the same kind of fixed-schema envelope the teacher's fsm.go uses for
// its own commands (Command{Op,Data}), just msgpack instead of JSON to give
// the retained ugorji dependency a real home.
package kv
