// Package sqlstore implements docstore.Store on a single SQL table.
//
// Two dialects share the implementation:
//   - SQLite (github.com/mattn/go-sqlite3): local file, the default backend
//   - MySQL (github.com/go-sql-driver/mysql): shared server
//
// # Optimistic transactions
//
// Reads inside RunTransaction run outside any SQL transaction and record
// each document's version. Commit opens a SQL transaction, re-reads the
// versions of the read set (FOR UPDATE on MySQL; SQLite takes the write
// lock up front via _txlock=immediate), aborts if any changed, and applies
// the buffered writes. Versions are taken from the commit clock and always
// increase, so a document deleted and recreated never repeats a version.
//
// Busy/locked (SQLite) and deadlock/lock-wait/duplicate-key (MySQL) errors
// are treated as aborted attempts and retried.
//
// # SQLite configuration
//
//   - WAL mode: concurrent readers during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection: SQLite has a single writer
package sqlstore
