// Package security provides the optional transport-security pipeline stage.
// When enabled it is mounted as the first stage of a connection's pipeline
// and transparently decrypts inbound and encrypts outbound bytes using a
// TLS engine. The engine's blocking reads run on two stage-owned pump
// goroutines; every result re-enters the connection's event loop through
// its task queue, so the single-thread ownership of connection state holds.
package security
