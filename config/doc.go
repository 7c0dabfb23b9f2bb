// Package config loads the daemon configuration from an optional YAML file
// and EVLOOP_-prefixed environment variables, applying defaults and
// validation before anything starts.
package config
