package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConflict is returned when a transaction could not commit within its
	// attempt budget.
	ErrConflict = errors.New("transaction conflict: retries exhausted")

	// ErrAborted marks a single attempt that lost a race with a concurrent
	// writer. Backends return it from commit; RunWithRetry retries on it.
	ErrAborted = errors.New("transaction aborted by concurrent write")

	// ErrReadAfterWrite is returned when a transaction reads a document after
	// it has already buffered a write.
	ErrReadAfterWrite = errors.New("transaction reads must precede writes")

	// ErrInvalidPath is returned for malformed document or collection paths.
	ErrInvalidPath = errors.New("invalid document path")
)

// DefaultMaxAttempts matches the retry budget of the hosted document store.
const DefaultMaxAttempts = 5

// MaxBatchWrites is the number of writes a single transaction may carry.
const MaxBatchWrites = 500

// Data is the field map of a document.
type Data map[string]any

// Snapshot is the state of a document as of one read.
type Snapshot struct {
	Path       string
	ID         string
	Exists     bool
	Data       Data
	UpdateTime time.Time
}

// Store is a document database.
type Store interface {
	// Get reads one document. A missing document yields Exists=false, not an error.
	Get(ctx context.Context, path string) (*Snapshot, error)

	// Set writes a document, replacing it or merging top-level fields.
	Set(ctx context.Context, path string, data Data, opts ...SetOption) error

	// Delete removes a document. Deleting a missing document is a no-op.
	Delete(ctx context.Context, path string) error

	// List returns the documents directly inside a collection, ordered by ID.
	List(ctx context.Context, collection string) ([]*Snapshot, error)

	// RunTransaction runs fn inside an optimistic transaction.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error, opts ...TxOption) error

	// Close releases the connection.
	Close() error
}

// Tx is the handle passed to a transaction function.
type Tx interface {
	Get(path string) (*Snapshot, error)
	Set(path string, data Data, opts ...SetOption) error
	// Add creates a document with a generated ID and returns its path.
	Add(collection string, data Data) (string, error)
	Delete(path string) error
}

// SetOption configures a Set call.
type SetOption func(*SetOptions)

// SetOptions is the resolved form of SetOption values.
type SetOptions struct {
	Merge bool
}

// Merge makes Set merge top-level fields into an existing document.
func Merge() SetOption {
	return func(o *SetOptions) { o.Merge = true }
}

// ApplySetOptions resolves opts.
func ApplySetOptions(opts []SetOption) SetOptions {
	var o SetOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TxOption configures RunTransaction.
type TxOption func(*TxOptions)

// TxOptions is the resolved form of TxOption values.
type TxOptions struct {
	MaxAttempts int
}

// MaxAttempts bounds the number of times a transaction function is run.
func MaxAttempts(n int) TxOption {
	return func(o *TxOptions) {
		if n > 0 {
			o.MaxAttempts = n
		}
	}
}

// ApplyTxOptions resolves opts, filling defaults.
func ApplyTxOptions(opts []TxOption) TxOptions {
	o := TxOptions{MaxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
