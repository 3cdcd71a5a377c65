// Package llm provides an OpenAI-compatible chat client (OpenRouter by
// default) used by the remote vision tier.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteVision: send a system prompt plus text and inline images.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 5
// attempts by default). Context cancellation aborts retries immediately.
// Non-2xx responses surface as *StatusError so callers can distinguish rate
// limiting from bad credentials.
package llm
