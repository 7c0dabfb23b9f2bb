// Package concurrency provides the queue primitives the event loops are
// built on: a multi-producer single-consumer task queue and a blocking
// variant used by stages that pump work on their own goroutines.
package concurrency
