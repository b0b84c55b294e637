// Package dispatch delivers classified records to the downstream
// coordination store.
//
// Three dispatchers exist: an HTTP dispatcher for a remote sync endpoint, a
// SQLite dispatcher for a local store, and a dry-run dispatcher that only
// reports what would change. All of them must be idempotent under repeated
// delivery of the same (event_code, data_hash) pair: delivering the same
// unchanged record twice never creates a duplicate downstream entity.
// Records classified ModifiedIdentity are delivered flagged for manual
// review, never auto-applied.
package dispatch
