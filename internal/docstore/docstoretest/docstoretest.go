// Package docstoretest holds the behaviour every docstore backend must share.
// Backend test files call Run with a constructor for a fresh, empty store.
package docstoretest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lotledger/internal/docstore"
)

// Options adjusts the suite to a backend's locking model.
type Options struct {
	// SkipInterleavedWrite skips the test that writes a document from outside
	// a running transaction that has read it. Backends with pessimistic
	// read locks would block on that write.
	SkipInterleavedWrite bool
}

// Run executes the shared suite. newStore must return an empty store; the
// suite does not close it.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store, opts Options) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetReplace", func(t *testing.T) { testSetReplace(t, newStore(t)) })
	t.Run("SetMerge", func(t *testing.T) { testSetMerge(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ListDirectChildren", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("TransactionCommits", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TransactionErrorDiscardsWrites", func(t *testing.T) { testTxError(t, newStore(t)) })
	t.Run("TransactionReadAfterWrite", func(t *testing.T) { testTxReadAfterWrite(t, newStore(t)) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	if !opts.SkipInterleavedWrite {
		t.Run("ConflictExhaustsAttempts", func(t *testing.T) { testConflict(t, newStore(t)) })
		t.Run("ConflictRetriesThenCommits", func(t *testing.T) { testConflictThenCommit(t, newStore(t)) })
	}
}

func testGetMissing(t *testing.T, s docstore.Store) {
	snap, err := s.Get(context.Background(), "things/nope")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.Equal(t, "nope", snap.ID)
}

func testSetReplace(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "things/a", docstore.Data{"x": 1, "y": "two"}))
	require.NoError(t, s.Set(ctx, "things/a", docstore.Data{"x": 3}))

	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	require.True(t, snap.Exists)
	x, ok := docstore.Int(snap.Data, "x")
	require.True(t, ok)
	assert.Equal(t, int64(3), x)
	assert.NotContains(t, snap.Data, "y")
}

func testSetMerge(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "things/a", docstore.Data{"x": 1, "y": "two"}))
	require.NoError(t, s.Set(ctx, "things/a", docstore.Data{"x": 5}, docstore.Merge()))

	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	x, _ := docstore.Int(snap.Data, "x")
	y, _ := docstore.String(snap.Data, "y")
	assert.Equal(t, int64(5), x)
	assert.Equal(t, "two", y)

	// Merge onto a missing document creates it.
	require.NoError(t, s.Set(ctx, "things/b", docstore.Data{"z": true}, docstore.Merge()))
	snap, err = s.Get(ctx, "things/b")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}

func testDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Delete(ctx, "things/missing"), "deleting a missing document is a no-op")

	require.NoError(t, s.Set(ctx, "things/a", docstore.Data{"x": 1}))
	require.NoError(t, s.Delete(ctx, "things/a"))
	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	assert.False(t, snap.Exists)

	require.NoError(t, s.Delete(ctx, "things/a"), "second delete is a no-op")
}

func testList(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "things/b", docstore.Data{"n": 2}))
	require.NoError(t, s.Set(ctx, "things/a", docstore.Data{"n": 1}))
	require.NoError(t, s.Set(ctx, "things/a/parts/p1", docstore.Data{"n": 3}))
	require.NoError(t, s.Set(ctx, "others/c", docstore.Data{"n": 4}))

	snaps, err := s.List(ctx, "things")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].ID)
	assert.Equal(t, "b", snaps[1].ID)

	parts, err := s.List(ctx, "things/a/parts")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "things/a/parts/p1", parts[0].Path)

	empty, err := s.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testTxCommit(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "things/a", docstore.Data{"n": 1}))

	var added string
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get("things/a")
		if err != nil {
			return err
		}
		n, _ := docstore.Int(snap.Data, "n")
		added, err = tx.Add("things/a/log", docstore.Data{"seen": n})
		if err != nil {
			return err
		}
		return tx.Set("things/a", docstore.Data{"n": n + 1}, docstore.Merge())
	})
	require.NoError(t, err)

	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	n, _ := docstore.Int(snap.Data, "n")
	assert.Equal(t, int64(2), n)

	logged, err := s.Get(ctx, added)
	require.NoError(t, err)
	assert.True(t, logged.Exists)
}

func testTxError(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get("things/a"); err != nil {
			return err
		}
		if err := tx.Set("things/a", docstore.Data{"n": 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	snap, err := s.Get(ctx, "things/a")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func testTxReadAfterWrite(t *testing.T, s docstore.Store) {
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Set("things/a", docstore.Data{"n": 1}); err != nil {
			return err
		}
		_, err := tx.Get("things/b")
		return err
	})
	require.Error(t, err)
}

func testConcurrentIncrements(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	const workers = 20
	require.NoError(t, s.Set(ctx, "counters/c", docstore.Data{"n": 0}))

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every abort means another worker committed, so workers*2
			// attempts always suffice.
			errs <- s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
				snap, err := tx.Get("counters/c")
				if err != nil {
					return err
				}
				n, _ := docstore.Int(snap.Data, "n")
				return tx.Set("counters/c", docstore.Data{"n": n + 1})
			}, docstore.MaxAttempts(workers*2))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := s.Get(ctx, "counters/c")
	require.NoError(t, err)
	n, _ := docstore.Int(snap.Data, "n")
	assert.Equal(t, int64(workers), n)
}

func testConflict(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "counters/c", docstore.Data{"n": 0}))

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		attempts++
		snap, err := tx.Get("counters/c")
		if err != nil {
			return err
		}
		n, _ := docstore.Int(snap.Data, "n")
		// A concurrent writer lands between our read and our commit.
		if err := s.Set(ctx, "counters/c", docstore.Data{"n": n + 100}); err != nil {
			return err
		}
		return tx.Set("counters/c", docstore.Data{"n": n + 1})
	}, docstore.MaxAttempts(3))

	require.ErrorIs(t, err, docstore.ErrConflict)
	assert.Equal(t, 3, attempts)

	snap, err := s.Get(ctx, "counters/c")
	require.NoError(t, err)
	n, _ := docstore.Int(snap.Data, "n")
	assert.Equal(t, int64(300), n, "only the interfering writes landed")
}

func testConflictThenCommit(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "counters/c", docstore.Data{"n": 0}))

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		attempts++
		snap, err := tx.Get("counters/c")
		if err != nil {
			return err
		}
		n, _ := docstore.Int(snap.Data, "n")
		if attempts == 1 {
			if err := s.Set(ctx, "counters/c", docstore.Data{"n": 10}); err != nil {
				return err
			}
		}
		return tx.Set("counters/c", docstore.Data{"n": n + 1})
	}, docstore.MaxAttempts(3))
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	snap, err := s.Get(ctx, "counters/c")
	require.NoError(t, err)
	n, _ := docstore.Int(snap.Data, "n")
	assert.Equal(t, int64(11), n, "the retry saw the interfering write")
}
