// Package workflow runs the tagging pipeline over the durable queue.
//
// The Manager owns a single worker goroutine. Each iteration checks the
// stop and pause flags, pulls the highest-priority pending item (ties go to
// the oldest row) and runs it through the configured stages: frame
// sampling, Tier 1 local inference, the optional Tier 2 remote analyzer and
// Tier 3 vocabulary resolution. The outcome is persisted as a pending-review
// analysis result in the same transaction that completes the queue row.
//
// Pause and stop take effect between items; an item already in flight runs
// to completion. A Tier 2 failure is logged and counted but never fails the
// item. Any other stage failure marks the item failed with its message, and
// nothing is retried until RetryFailed is called.
package workflow
