// Package queue persists the tagging work queue and the per-media analysis
// results in SQLite.
//
// The Store owns the database file: it applies the embedded migrations (which
// also create the library media/tag tables the vocabulary store reads), retries
// on SQLITE_BUSY, and exposes the state transitions the run loop drives:
// pending → processing → completed | failed. Enqueue is idempotent on media id.
// A processing row left behind by a crash stays processing; only failed rows
// are requeued, and only on explicit request.
//
// Analysis results are upserted per media id. Their list-valued columns hold
// JSON that is (de)serialized here so callers only ever see typed structs.
package queue
