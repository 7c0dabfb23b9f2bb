// Package eventloop implements the reactor workers: each Loop owns one
// readiness multiplexer, one OS thread, and a subset of the active
// connections. All I/O and all pipeline execution for a connection happen on
// the loop that registered it, for the connection's entire lifetime. The
// only cross-thread entry points are Execute, which hands a task to the
// loop's MPSC queue, and the group's shutdown signal.
package eventloop
