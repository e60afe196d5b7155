// Package scheduler runs ingestion jobs one at a time through a FIFO queue.
//
// A single worker goroutine drains the queue, started lazily on Enqueue and
// exiting when the queue empties; a compare-and-swap gate guarantees at most
// one worker exists. Cancellation is cooperative: the flag is honored on
// dequeue for queued jobs and at the next file boundary for running ones.
package scheduler
