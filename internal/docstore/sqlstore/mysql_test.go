package sqlstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/roach88/lotledger/internal/docstore"
	"github.com/roach88/lotledger/internal/docstore/docstoretest"
)

// openTestMySQL connects to LOTLEDGER_TEST_MYSQL_DSN, skipping when the
// variable is unset or the server is unreachable.
func openTestMySQL(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LOTLEDGER_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("LOTLEDGER_TEST_MYSQL_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := OpenMySQL(ctx, dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.db.Exec("DELETE FROM documents"); err != nil {
		t.Fatalf("clear documents: %v", err)
	}
	return s
}

func TestMySQLConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		return openTestMySQL(t)
	}, docstoretest.Options{})
}

func TestMySQLOpenReportsDriver(t *testing.T) {
	s := openTestMySQL(t)
	if s.Driver() != MySQL {
		t.Errorf("Driver() = %q, want %q", s.Driver(), MySQL)
	}
}
