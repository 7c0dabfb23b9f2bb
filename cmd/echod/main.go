// File: cmd/echod/main.go
// Echo server daemon.
// License: Apache-2.0

package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/evloop/evloop/config"
	"github.com/evloop/evloop/logging"
	"github.com/evloop/evloop/metric"
	"github.com/evloop/evloop/pipeline"
	"github.com/evloop/evloop/security"
	"github.com/evloop/evloop/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "echod: %v\n", err)
		return 1
	}

	logger, err := logging.Init(logging.Options{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "echod: %v\n", err)
		return 1
	}
	log := logger.WithField("app", "echod")

	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile != "" {
			tlsCfg, err = security.LoadKeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			log.Warn("tls enabled without a key pair, generating a self-signed certificate")
			tlsCfg, err = security.SelfSigned()
		}
		if err != nil {
			log.WithError(err).Error("tls setup failed")
			return 1
		}
	}

	metrics := metric.New()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, metrics, log)
	}

	srv := server.New(&server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Listen.Port),
		Backlog:         cfg.Listen.Backlog,
		AcceptorLoops:   cfg.Loops.Acceptors,
		WorkerLoops:     cfg.Loops.Workers,
		AcceptBatch:     cfg.Loops.AcceptBatch,
		TLS:             tlsCfg,
		ShutdownTimeout: cfg.Shutdown.Timeout,
	}, func(pipeline.Transport) []pipeline.Handler {
		return []pipeline.Handler{pipeline.NewEcho()}
	}, server.WithLogger(log), server.WithMetrics(metrics))

	if err := srv.Start(); err != nil {
		log.WithError(err).Error("startup failed")
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		srv.Shutdown()
	case <-done:
		// listener closed on its own; teardown already ran
	}
	return 0
}

func serveMetrics(addr string, m *metric.Metrics, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Warn("metrics endpoint failed")
	}
}
