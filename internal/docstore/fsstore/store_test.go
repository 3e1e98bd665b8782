package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/lotledger/internal/docstore"
	"github.com/roach88/lotledger/internal/docstore/docstoretest"
)

// getTestStore connects to the Firestore emulator, skipping when
// FIRESTORE_EMULATOR_HOST is not set.
func getTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	s, err := Open(context.Background(), Options{ProjectID: "lotledger-test"})
	if err != nil {
		t.Skipf("Firestore emulator not available: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFirestoreConformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		s := getTestStore(t)
		clearCollections(t, s, "things", "others", "nothing", "counters")
		return s
	}, docstoretest.Options{SkipInterleavedWrite: true})
}

// clearCollections deletes every document (and the subcollections the suite
// uses) so each subtest starts empty.
func clearCollections(t *testing.T, s *Store, collections ...string) {
	t.Helper()
	ctx := context.Background()
	for _, c := range collections {
		snaps, err := s.List(ctx, c)
		if err != nil {
			t.Fatalf("List(%s) failed: %v", c, err)
		}
		for _, snap := range snaps {
			for _, sub := range []string{"log", "parts"} {
				children, err := s.List(ctx, snap.Path+"/"+sub)
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				for _, child := range children {
					if err := s.Delete(ctx, child.Path); err != nil {
						t.Fatalf("Delete failed: %v", err)
					}
				}
			}
			if err := s.Delete(ctx, snap.Path); err != nil {
				t.Fatalf("Delete(%s) failed: %v", snap.Path, err)
			}
		}
	}
}

func TestTranslate(t *testing.T) {
	aborted := fmt.Errorf("commit: %w", status.Error(codes.Aborted, "contention"))
	if err := translate(aborted); !errors.Is(err, docstore.ErrConflict) {
		t.Errorf("translate(Aborted) = %v, want ErrConflict", err)
	}

	other := status.Error(codes.PermissionDenied, "no")
	if err := translate(other); err != other {
		t.Errorf("translate(PermissionDenied) = %v, want unchanged", err)
	}

	if translate(nil) != nil {
		t.Error("translate(nil) should be nil")
	}
}

func TestSnapshotMissing(t *testing.T) {
	snap := snapshot("lots/gsp", nil)
	if snap.Exists || snap.ID != "gsp" || snap.Path != "lots/gsp" {
		t.Errorf("snapshot(nil) = %+v", snap)
	}
}

func TestAddUsesGenerator(t *testing.T) {
	s := getTestStore(t)
	s.ids = docstore.NewSequenceGenerator("fs-" + uuid.NewString())
	ctx := context.Background()

	var path string
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var err error
		path, err = tx.Add("addtest", docstore.Data{"direction": "ENTRY"})
		return err
	})
	if err != nil {
		t.Fatalf("RunTransaction() failed: %v", err)
	}
	t.Cleanup(func() { s.Delete(context.Background(), path) })

	snap, err := s.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !snap.Exists {
		t.Errorf("document %s was not created", path)
	}
}
