// Package server assembles the reactor core into a runnable TCP server: a
// boss group accepting connections, a worker group running them, a
// per-connection pipeline built once at accept time, and a shutdown
// coordinator that stops accepting before draining.
//
// Minimal echo server:
//
//	srv := server.New(server.DefaultConfig(), func(pipeline.Transport) []pipeline.Handler {
//		return []pipeline.Handler{pipeline.NewEcho()}
//	})
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	srv.Wait()
package server
