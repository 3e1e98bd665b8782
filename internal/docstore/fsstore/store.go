// Package fsstore implements docstore.Store on Cloud Firestore, the hosted
// document database the ledger layout was designed for.
//
// Firestore transactions lock documents read inside them, so a concurrent
// writer waits instead of invalidating the reader. Aborted commits are
// retried by the client library up to the transaction's attempt budget.
package fsstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/lotledger/internal/docstore"
)

// Options configures a client.
type Options struct {
	// ProjectID is the Google Cloud project. Empty means detect it from the
	// credentials or environment.
	ProjectID string
	// CredentialsFile is a service account key file. Empty means application
	// default credentials (or the emulator when FIRESTORE_EMULATOR_HOST is set).
	CredentialsFile string
}

// Store is a docstore.Store backed by Firestore.
type Store struct {
	client *firestore.Client
	ids    docstore.IDGenerator
}

var _ docstore.Store = (*Store)(nil)

// Open creates a Firestore client.
func Open(ctx context.Context, opts Options) (*Store, error) {
	project := opts.ProjectID
	if project == "" {
		project = firestore.DetectProjectID
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, project, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Store{client: client, ids: docstore.UUIDv7Generator{}}, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func snapshot(path string, ds *firestore.DocumentSnapshot) *docstore.Snapshot {
	snap := &docstore.Snapshot{Path: path, ID: docstore.Base(path)}
	if ds == nil || !ds.Exists() {
		return snap
	}
	snap.Exists = true
	snap.Data = docstore.Data(ds.Data())
	snap.UpdateTime = ds.UpdateTime
	return snap
}

// translate maps gRPC status codes onto docstore errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	}
	return err
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, path string) (*docstore.Snapshot, error) {
	if err := docstore.ValidateDocument(path); err != nil {
		return nil, err
	}
	ds, err := s.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return snapshot(path, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return snapshot(path, ds), nil
}

// Set writes one document.
func (s *Store) Set(ctx context.Context, path string, data docstore.Data, opts ...docstore.SetOption) error {
	if err := docstore.ValidateDocument(path); err != nil {
		return err
	}
	var setOpts []firestore.SetOption
	if docstore.ApplySetOptions(opts).Merge {
		setOpts = append(setOpts, firestore.MergeAll)
	}
	if _, err := s.client.Doc(path).Set(ctx, map[string]any(data), setOpts...); err != nil {
		return translate(fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

// Delete removes one document; Firestore treats a missing document as a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocument(path); err != nil {
		return err
	}
	if _, err := s.client.Doc(path).Delete(ctx); err != nil {
		return translate(fmt.Errorf("delete %s: %w", path, err))
	}
	return nil
}

// List returns the documents directly inside collection, ordered by ID.
func (s *Store) List(ctx context.Context, collection string) ([]*docstore.Snapshot, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	iter := s.client.Collection(collection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []*docstore.Snapshot
	for {
		ds, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		out = append(out, snapshot(docstore.Join(collection, ds.Ref.ID), ds))
	}
	return out, nil
}

// RunTransaction runs fn in a Firestore transaction.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error, opts ...docstore.TxOption) error {
	o := docstore.ApplyTxOptions(opts)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &tx{client: s.client, t: t, ids: s.ids})
	}, firestore.MaxAttempts(o.MaxAttempts))
	return translate(err)
}

type tx struct {
	client *firestore.Client
	t      *firestore.Transaction
	ids    docstore.IDGenerator
	wrote  bool
}

func (x *tx) Get(path string) (*docstore.Snapshot, error) {
	if x.wrote {
		return nil, docstore.ErrReadAfterWrite
	}
	if err := docstore.ValidateDocument(path); err != nil {
		return nil, err
	}
	ds, err := x.t.Get(x.client.Doc(path))
	if status.Code(err) == codes.NotFound {
		return snapshot(path, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return snapshot(path, ds), nil
}

func (x *tx) Set(path string, data docstore.Data, opts ...docstore.SetOption) error {
	if err := docstore.ValidateDocument(path); err != nil {
		return err
	}
	x.wrote = true
	var setOpts []firestore.SetOption
	if docstore.ApplySetOptions(opts).Merge {
		setOpts = append(setOpts, firestore.MergeAll)
	}
	return x.t.Set(x.client.Doc(path), map[string]any(data), setOpts...)
}

func (x *tx) Add(collection string, data docstore.Data) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	x.wrote = true
	ref := x.client.Collection(collection).Doc(x.ids.Generate())
	if err := x.t.Create(ref, map[string]any(data)); err != nil {
		return "", err
	}
	return docstore.Join(collection, ref.ID), nil
}

func (x *tx) Delete(path string) error {
	if err := docstore.ValidateDocument(path); err != nil {
		return err
	}
	x.wrote = true
	return x.t.Delete(x.client.Doc(path))
}
