// File: server/options.go
// Functional options for the server facade.
// License: Apache-2.0

package server

import (
	"github.com/sirupsen/logrus"

	"github.com/evloop/evloop/metric"
)

// Option customizes server construction.
type Option func(*Server)

// WithLogger routes server and loop logging through log.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMetrics shares an existing metrics instance instead of creating one.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}
