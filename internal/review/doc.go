// Package review implements the human approval step that turns pending
// analysis results into permanent library tags.
//
// Approvals link the matched vocabulary tags (and any accepted suggestions,
// which are created first) to the media item with the "ai" link source, and
// may apply the remote model's title. Rejections only record the outcome.
// Listing results first purges rows whose media left the library.
package review
