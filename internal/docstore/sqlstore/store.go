package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/lotledger/internal/docstore"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_mysql.sql
var mysqlSchema string

// Schema version tracking (SQLite user_version):
// 0 - Initial schema (pre-migration)
// 1 - Added index on documents(parent, id) for collection listing
const currentSchemaVersion = 1

// Store is a docstore.Store backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect dialect
	ids     docstore.IDGenerator
	now     func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the generator used by Tx.Add.
func WithIDGenerator(g docstore.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open(string(SQLite), sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, sqliteDialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return newStore(db, sqliteDialect, opts), nil
}

// sqliteDSN appends _txlock=immediate to path, keeping any query string it
// already has. The write lock is taken at BEGIN so two processes never
// deadlock upgrading read locks.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

// OpenMySQL connects to a MySQL server and creates the documents table if
// it does not exist.
func OpenMySQL(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(string(MySQL), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applySchema(db, mysqlDialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return newStore(db, mysqlDialect, opts), nil
}

func newStore(db *sql.DB, d dialect, opts []Option) *Store {
	s := &Store{
		db:      db,
		dialect: d,
		ids:     docstore.UUIDv7Generator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the SQL dialect in use.
func (s *Store) Driver() Driver {
	return s.dialect.driver
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the table if it doesn't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB, d dialect) error {
	if _, err := db.Exec(d.schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if d.driver != SQLite {
		return nil
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental SQLite migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the collection listing index.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_documents_parent
		ON documents(parent, id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readDoc loads one document and its version (0 when missing).
func (s *Store) readDoc(ctx context.Context, q querier, path string, lock bool) (*docstore.Snapshot, int64, error) {
	query := `SELECT data, version, updated_at FROM documents WHERE path = ?`
	if lock {
		query += s.dialect.lock
	}

	var (
		text      string
		version   int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, query, path).Scan(&text, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &docstore.Snapshot{Path: path, ID: docstore.Base(path)}, 0, nil
	}
	if err != nil {
		return nil, 0, s.classify(fmt.Errorf("read %s: %w", path, err))
	}

	data, err := docstore.DecodeJSON(text)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return &docstore.Snapshot{
		Path:       path,
		ID:         docstore.Base(path),
		Exists:     true,
		Data:       data,
		UpdateTime: time.Unix(0, updatedAt).UTC(),
	}, version, nil
}

// classify marks driver errors that mean a lost race as docstore.ErrAborted.
func (s *Store) classify(err error) error {
	if err != nil && s.dialect.retryable(err) {
		return fmt.Errorf("%w: %v", docstore.ErrAborted, err)
	}
	return err
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, path string) (*docstore.Snapshot, error) {
	if err := docstore.ValidateDocument(path); err != nil {
		return nil, err
	}
	snap, _, err := s.readDoc(ctx, s.db, path, false)
	return snap, err
}

// Set writes one document atomically.
func (s *Store) Set(ctx context.Context, path string, data docstore.Data, opts ...docstore.SetOption) error {
	if err := docstore.ValidateDocument(path); err != nil {
		return err
	}
	kind := docstore.WriteSet
	if docstore.ApplySetOptions(opts).Merge {
		kind = docstore.WriteMerge
	}
	w := []docstore.Write{{Kind: kind, Path: path, Data: data}}
	return docstore.RunWithRetry(ctx, docstore.DefaultMaxAttempts, func(ctx context.Context) error {
		return s.commit(ctx, nil, w)
	})
}

// Delete removes one document; a missing document is a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocument(path); err != nil {
		return err
	}
	w := []docstore.Write{{Kind: docstore.WriteDelete, Path: path}}
	return docstore.RunWithRetry(ctx, docstore.DefaultMaxAttempts, func(ctx context.Context) error {
		return s.commit(ctx, nil, w)
	})
}

// List returns the documents directly inside collection, ordered by ID.
func (s *Store) List(ctx context.Context, collection string) ([]*docstore.Snapshot, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, data, updated_at FROM documents
		WHERE parent = ?
		ORDER BY id ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []*docstore.Snapshot
	for rows.Next() {
		var (
			path      string
			text      string
			updatedAt int64
		)
		if err := rows.Scan(&path, &text, &updatedAt); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		data, err := docstore.DecodeJSON(text)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		out = append(out, &docstore.Snapshot{
			Path:       path,
			ID:         docstore.Base(path),
			Exists:     true,
			Data:       data,
			UpdateTime: time.Unix(0, updatedAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

// RunTransaction runs fn as an optimistic transaction.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error, opts ...docstore.TxOption) error {
	o := docstore.ApplyTxOptions(opts)
	return docstore.RunWithRetry(ctx, o.MaxAttempts, func(ctx context.Context) error {
		buf := docstore.NewTxBuffer(func(path string) (*docstore.Snapshot, int64, error) {
			return s.readDoc(ctx, s.db, path, false)
		}, s.ids)

		if err := fn(ctx, buf); err != nil {
			return err
		}
		return s.commit(ctx, buf.Reads, buf.Writes)
	})
}

// commit validates the read set and applies writes in one SQL transaction.
func (s *Store) commit(ctx context.Context, reads map[string]int64, writes []docstore.Write) error {
	if len(writes) == 0 && len(reads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.classify(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	// Validate in path order so concurrent MySQL commits lock rows in the
	// same sequence.
	paths := make([]string, 0, len(reads))
	for p := range reads {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		var version int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM documents WHERE path = ?`+s.dialect.lock, p).Scan(&version)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return s.classify(fmt.Errorf("validate %s: %w", p, err))
		}
		if version != reads[p] {
			return fmt.Errorf("%w: %s changed since read", docstore.ErrAborted, p)
		}
	}

	resolved, err := docstore.Resolve(writes, func(path string) (docstore.Data, bool, error) {
		snap, _, err := s.readDoc(ctx, tx, path, true)
		if err != nil {
			return nil, false, err
		}
		return snap.Data, snap.Exists, nil
	})
	if err != nil {
		return err
	}

	now := s.now().UnixNano()
	for _, r := range resolved {
		if r.Deleted {
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, r.Path); err != nil {
				return s.classify(fmt.Errorf("delete %s: %w", r.Path, err))
			}
			continue
		}

		text, err := docstore.EncodeJSON(r.Data)
		if err != nil {
			return fmt.Errorf("write %s: %w", r.Path, err)
		}
		_, err = tx.ExecContext(ctx, s.dialect.upsert,
			r.Path,
			docstore.Parent(r.Path),
			docstore.Base(r.Path),
			text,
			now,
			now,
		)
		if err != nil {
			return s.classify(fmt.Errorf("write %s: %w", r.Path, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return s.classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}
