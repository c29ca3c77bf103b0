// Package workflow runs the queue: a bounded pool of workers claims messages,
// dispatches them to registered handlers, and applies the retry policy to
// failures.
//
// Failure handling is centralized here. Handlers return plain errors; the
// manager classifies them as retryable or non-retryable, requeues retryable
// failures with exponential backoff, and dead-letters everything else. Add
// new message types by registering a handler before Start.
package workflow
