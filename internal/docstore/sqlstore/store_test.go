package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/lotledger/internal/docstore"
	"github.com/roach88/lotledger/internal/docstore/docstoretest"
)

// createTestStore opens a fresh SQLite store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// verifyPragma checks that a pragma has the expected value.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("PRAGMA %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("PRAGMA %s = %q, want %q", name, got, want)
	}
	return nil
}

func TestSQLiteConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		return createTestStore(t)
	}, docstoretest.Options{})
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Driver() != SQLite {
		t.Errorf("Driver() = %q, want %q", s.Driver(), SQLite)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"lotledger.db", "lotledger.db?_txlock=immediate"},
		{"file:x.db?mode=rwc", "file:x.db?mode=rwc&_txlock=immediate"},
		{"file:x.db?mode=rwc&cache=shared", "file:x.db?mode=rwc&cache=shared&_txlock=immediate"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.path); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestOpen_URIWithQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uri.db")
	ctx := context.Background()

	s, err := Open("file:" + path + "?mode=rwc")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.Set(ctx, "lots/lot_72", docstore.Data{"name": "Lot 72"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created at %s: %v", path, err)
	}
	snap, err := s.Get(ctx, "lots/lot_72")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if name, _ := docstore.String(snap.Data, "name"); name != "Lot 72" {
		t.Errorf("name = %q, want %q", name, "Lot 72")
	}
}

func TestOpen_KeepsDocumentsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s1.Set(ctx, "lots/gsp", docstore.Data{"name": "GSP Lot"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	s1.Close()

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s2.Close()

	snap, err := s2.Get(ctx, "lots/gsp")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !snap.Exists {
		t.Fatal("document lost after reopen")
	}
	if name, _ := docstore.String(snap.Data, "name"); name != "GSP Lot" {
		t.Errorf("name = %q, want %q", name, "GSP Lot")
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"user_version", fmt.Sprint(currentSchemaVersion)},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.want); err != nil {
			t.Error(err)
		}
	}
}

func TestSchema_ParentIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_documents_parent",
	).Scan(&name)
	if err != nil {
		t.Errorf("index idx_documents_parent not found: %v", err)
	}
}

func TestSet_StoresParentAndID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "lots/gsp/events/e1", docstore.Data{"direction": "ENTRY"}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var parent, id string
	err := s.db.QueryRow("SELECT parent, id FROM documents WHERE path = ?", "lots/gsp/events/e1").Scan(&parent, &id)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if parent != "lots/gsp/events" || id != "e1" {
		t.Errorf("parent/id = %q/%q, want lots/gsp/events/e1", parent, id)
	}
}

func TestSet_VersionAlwaysIncreases(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	s := createTestStore(t)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	version := func() int64 {
		var v int64
		if err := s.db.QueryRow("SELECT version FROM documents WHERE path = 'lots/a'").Scan(&v); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		return v
	}

	if err := s.Set(ctx, "lots/a", docstore.Data{"n": 1}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	v1 := version()
	// Same clock reading: the version must still move.
	if err := s.Set(ctx, "lots/a", docstore.Data{"n": 2}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	v2 := version()
	if v2 <= v1 {
		t.Errorf("version did not increase: %d then %d", v1, v2)
	}
}

func TestGet_UpdateTime(t *testing.T) {
	fixed := time.Date(2025, 9, 6, 18, 30, 0, 0, time.UTC)
	s := createTestStore(t)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	if err := s.Set(ctx, "lots/a", docstore.Data{"n": 1}); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	snap, err := s.Get(ctx, "lots/a")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !snap.UpdateTime.Equal(fixed) {
		t.Errorf("UpdateTime = %v, want %v", snap.UpdateTime, fixed)
	}
}

func TestRunTransaction_AddUsesGenerator(t *testing.T) {
	s := createTestStore(t, WithIDGenerator(docstore.NewSequenceGenerator("ev")))
	ctx := context.Background()

	var path string
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		path, err = tx.Add("lots/gsp/events", docstore.Data{"direction": "EXIT"})
		return err
	})
	if err != nil {
		t.Fatalf("RunTransaction() failed: %v", err)
	}
	if path != "lots/gsp/events/ev-0001" {
		t.Errorf("path = %q, want lots/gsp/events/ev-0001", path)
	}
}

func TestInvalidPaths(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "lots"); err == nil {
		t.Error("Get(collection) should fail")
	}
	if err := s.Set(ctx, "lots", docstore.Data{}); err == nil {
		t.Error("Set(collection) should fail")
	}
	if _, err := s.List(ctx, "lots/a"); err == nil {
		t.Error("List(document) should fail")
	}
}
