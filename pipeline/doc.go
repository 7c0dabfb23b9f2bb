// Package pipeline implements the per-connection chain of handler stages.
// Inbound bytes flow head to tail, outbound bytes tail to head, and
// lifecycle events travel the same ordered chain. The stage list is built
// once when a connection is accepted and never changes afterwards; every
// callback runs on the connection's owning event-loop thread.
package pipeline
