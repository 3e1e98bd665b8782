package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/lotledger/internal/docstore"
)

// Ledger applies occupancy operations to a document store.
//
// Thread-safety: safe for concurrent use; all coordination happens in the
// store's transactions.
type Ledger struct {
	store       docstore.Store
	maxAttempts int
	now         func() time.Time
	provenance  Provenance

	// maxBatch is the write limit of one transaction, used by DeleteLot.
	maxBatch int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxAttempts bounds how often a conflicting transaction is retried.
//
// Default: docstore.DefaultMaxAttempts (5).
// N concurrent writers to one lot all commit when n >= N.
func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithProvenance sets the provenance used by Record.
//
// Default: Manual ("manual", 1.0).
func WithProvenance(p Provenance) Option {
	return func(l *Ledger) { l.provenance = p }
}

// New creates a Ledger over store. The caller keeps ownership of store.
func New(store docstore.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		maxAttempts: docstore.DefaultMaxAttempts,
		now:         time.Now,
		provenance:  Manual,
		maxBatch:    docstore.MaxBatchWrites,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) timestamp() time.Time {
	return l.now().UTC()
}

// runTx runs fn with the ledger's attempt budget and maps exhaustion to a
// CONFLICT error.
func (l *Ledger) runTx(ctx context.Context, lotID string, fn func(ctx context.Context, tx docstore.Tx) error) error {
	err := l.store.RunTransaction(ctx, fn, docstore.MaxAttempts(l.maxAttempts))
	if errors.Is(err, docstore.ErrConflict) {
		return NewConflictError(lotID, err)
	}
	return err
}
