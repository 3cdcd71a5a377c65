// Package metrics defines the Prometheus collectors for the tagging pipeline.
//
// Collectors are registered with the default registry through promauto and
// exposed by the HTTP API on /metrics. All names carry the "autotag_" prefix.
//
//   - ItemsProcessed: queue items finished, by final status
//   - StageDuration: per-stage wall time (frames, tier1, tier2, tier3)
//   - Tier2Failures: remote vision failures, by error kind
//   - ResolverMatches: resolved tags, by match type
//   - Suggestions: new-tag suggestions emitted
//   - QueueDepth: queue rows, by status
//   - WorkerState: 1 when the worker is in the labelled state
//   - ReviewOutcomes: review decisions, by outcome
//   - HTTPRequests / HTTPRequestDuration: API traffic
package metrics
