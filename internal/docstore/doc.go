// Package docstore defines the document database used by the occupancy ledger.
//
// Documents live at slash-separated paths that alternate collection and
// document segments, e.g. "lots/lot_72/_meta/current_status". Each document
// holds a flat map of fields (Data).
//
// # Transactions
//
// Every backend implements optimistic concurrency:
//   - Reads inside a transaction record the version of each document read
//   - Writes are buffered until the transaction function returns
//   - Commit validates the read set and applies all writes atomically
//   - A stale read set aborts the attempt (ErrAborted) and the whole
//     function is run again, up to MaxAttempts times
//
// When the attempts are exhausted RunTransaction returns an error wrapping
// ErrConflict. Errors returned by the transaction function itself are never
// retried and are returned unchanged.
//
// Reads must precede writes within one attempt, matching the hosted
// document stores this interface models.
//
// # Backends
//
//   - sqlstore: SQLite (default) and MySQL via database/sql
//   - redisstore: Redis WATCH/MULTI
//   - firestore: Google Cloud Firestore
package docstore
