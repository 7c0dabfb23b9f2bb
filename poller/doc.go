// Package poller wraps OS-level socket readiness notification (epoll on
// Linux, kqueue on Darwin) behind a batch-oriented multiplexer owned by a
// single event loop. One Poller belongs to exactly one loop; the only call
// that is safe from other goroutines is Wake.
package poller
