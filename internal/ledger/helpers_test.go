package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lotledger/internal/docstore"
	"github.com/roach88/lotledger/internal/docstore/sqlstore"
	"github.com/roach88/lotledger/internal/testutil"
)

// createTestStore opens a SQLite store in a temp directory.
func createTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(filepath.Join(t.TempDir(), "ledger.db"),
		sqlstore.WithIDGenerator(docstore.NewSequenceGenerator("ev")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestLedger returns a ledger over a fresh store with a step clock.
func createTestLedger(t *testing.T, opts ...Option) (*Ledger, *sqlstore.Store) {
	t.Helper()
	s := createTestStore(t)
	opts = append([]Option{WithClock(testutil.NewStepClock().Now)}, opts...)
	return New(s, opts...), s
}

func capacity(n int64) *int64 { return &n }

// seedLot upserts a lot with the given capacity.
func seedLot(t *testing.T, l *Ledger, id string, capacity int64) {
	t.Helper()
	_, err := l.UpsertLot(context.Background(), &Lot{
		ID:       id,
		Name:     id + " lot",
		Capacity: &capacity,
	})
	require.NoError(t, err)
}

// countEvents returns the number of stored events for a lot.
func countEvents(t *testing.T, s docstore.Store, lotID string) int {
	t.Helper()
	snaps, err := s.List(context.Background(), EventsCollection(lotID))
	require.NoError(t, err)
	return len(snaps)
}

// interferingStore writes to a lot's status between every transaction's
// reads and its commit, so every commit aborts.
type interferingStore struct {
	docstore.Store
	lotID string
}

func (s *interferingStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error, opts ...docstore.TxOption) error {
	return s.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return s.Store.Set(ctx, StatusPath(s.lotID), docstore.Data{"count_now": 77}, docstore.Merge())
	}, opts...)
}

// failingDeleteStore fails every Delete after the first allow calls.
type failingDeleteStore struct {
	docstore.Store
	mu    sync.Mutex
	allow int
	err   error
}

func (s *failingDeleteStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.allow == 0 {
		s.mu.Unlock()
		return s.err
	}
	s.allow--
	s.mu.Unlock()
	return s.Store.Delete(ctx, path)
}
