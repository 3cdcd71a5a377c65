// Package api exposes the workflow and review services over HTTP.
//
// # Key Types
//
// Server: gorilla/mux router with bearer-token auth on /api routes, plus
// unauthenticated /health and /metrics (Prometheus) endpoints.
//
// QueueItem, ReviewEntry, WorkflowStatus: transport DTOs built from queue
// and workflow models by the From* converters.
//
// Envelope: every /api response is {"success": bool, "data": ..., "error": ...}.
//
// # Routes
//
//	GET    /api/status
//	POST   /api/worker/{start,pause,resume,stop}
//	GET    /api/queue
//	POST   /api/queue                 {"mediaIds": [...], "priority": n}
//	POST   /api/queue/untagged        {"priority": n}
//	POST   /api/queue/all             {"priority": n}
//	POST   /api/queue/retry
//	POST   /api/queue/clear
//	POST   /api/queue/reset-stuck
//	DELETE /api/queue/{mediaId}
//	GET    /api/reviews?status=&page=&pageSize=
//	POST   /api/reviews/{mediaId}/approve   optional edits body
//	POST   /api/reviews/{mediaId}/reject
//	POST   /api/reviews/approve       {"mediaIds": [...]}
//	POST   /api/reviews/reject        {"mediaIds": [...]}
//	GET    /api/stats
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Sentinel errors map to status codes in writeError: not found is 404,
// review and worker conflicts are 409, validation is 400 and an unavailable
// capability is 503.
package api
