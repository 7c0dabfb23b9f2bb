// File: config/config.go
// Daemon configuration schema.
// License: Apache-2.0

package config

import (
	"fmt"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	Listen   Listen   `mapstructure:"listen"`
	TLS      TLS      `mapstructure:"tls"`
	Loops    Loops    `mapstructure:"loops"`
	Log      Log      `mapstructure:"log"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Shutdown Shutdown `mapstructure:"shutdown"`
}

// Listen describes the listening socket.
type Listen struct {
	Port    int `mapstructure:"port"`
	Backlog int `mapstructure:"backlog"`
}

// TLS toggles the transport-security stage. With Enabled and no key pair a
// throwaway self-signed certificate is generated.
type TLS struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// Loops sizes the two event-loop groups. Zero worker count means twice the
// CPU count.
type Loops struct {
	Acceptors   int `mapstructure:"acceptors"`
	Workers     int `mapstructure:"workers"`
	AcceptBatch int `mapstructure:"accept_batch"`
}

// Log mirrors logging.Options.
type Log struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Shutdown bounds graceful termination.
type Shutdown struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate rejects configurations the server could not start with.
func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("config: listen port %d out of range", c.Listen.Port)
	}
	if c.Listen.Backlog < 0 {
		return fmt.Errorf("config: negative backlog")
	}
	if c.Loops.Acceptors < 0 || c.Loops.Workers < 0 {
		return fmt.Errorf("config: negative loop count")
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("config: tls cert_file and key_file must be set together")
	}
	return nil
}
