// File: eventloop/errors.go
// License: Apache-2.0

package eventloop

import "errors"

var (
	// ErrLoopClosed is returned by Execute and Attach once a loop has been
	// signaled to stop; no new work is accepted after that point.
	ErrLoopClosed = errors.New("eventloop: loop closed")

	// ErrConnClosed is returned when writing to a connection that has been
	// torn down.
	ErrConnClosed = errors.New("eventloop: connection closed")

	// ErrShutdownTimeout reports loops that failed to terminate within the
	// shutdown deadline. Callers treat it as a warning, not a failure.
	ErrShutdownTimeout = errors.New("eventloop: shutdown deadline exceeded")
)
