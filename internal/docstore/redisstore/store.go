// Package redisstore implements docstore.Store on Redis.
//
// Each document is a hash at {prefix}doc:{path} with fields "data" (JSON)
// and "updated_at" (Unix nanoseconds). Each collection keeps a sorted set
// of member IDs at {prefix}col:{collection}, all with score 0 so members
// come back in lexicographic order.
//
// Transactions use WATCH/MULTI/EXEC: every document read inside a
// transaction is watched on the transaction's connection, writes are queued
// in MULTI, and EXEC fails with redis.TxFailedErr when a watched key changed.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/lotledger/internal/docstore"
)

const (
	fieldData      = "data"
	fieldUpdatedAt = "updated_at"
)

// Options configures a connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, so several ledgers can share a server.
	Prefix string
}

// Store is a docstore.Store backed by Redis.
type Store struct {
	client *redis.Client
	prefix string
	ids    docstore.IDGenerator
	now    func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return New(client, opts.Prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		ids:    docstore.UUIDv7Generator{},
		now:    time.Now,
	}
}

// WithIDGenerator overrides the generator used by Tx.Add.
func (s *Store) WithIDGenerator(g docstore.IDGenerator) *Store {
	s.ids = g
	return s
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) docKey(path string) string {
	return s.prefix + "doc:" + path
}

func (s *Store) colKey(collection string) string {
	return s.prefix + "col:" + collection
}

// hashGetter is satisfied by *redis.Client, *redis.Tx and redis.Pipeliner.
type hashGetter interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *Store) read(ctx context.Context, c hashGetter, path string) (*docstore.Snapshot, error) {
	fields, err := c.HGetAll(ctx, s.docKey(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return decode(path, fields)
}

func decode(path string, fields map[string]string) (*docstore.Snapshot, error) {
	snap := &docstore.Snapshot{Path: path, ID: docstore.Base(path)}
	text, ok := fields[fieldData]
	if !ok {
		return snap, nil
	}
	data, err := docstore.DecodeJSON(text)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	snap.Exists = true
	snap.Data = data
	if nanos, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64); err == nil {
		snap.UpdateTime = time.Unix(0, nanos).UTC()
	}
	return snap, nil
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, path string) (*docstore.Snapshot, error) {
	if err := docstore.ValidateDocument(path); err != nil {
		return nil, err
	}
	return s.read(ctx, s.client, path)
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
	return s.write(ctx, []docstore.Write{{Kind: kind, Path: path, Data: data}})
}

// Delete removes one document; a missing document is a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := docstore.ValidateDocument(path); err != nil {
		return err
	}
	return s.write(ctx, []docstore.Write{{Kind: docstore.WriteDelete, Path: path}})
}

func (s *Store) write(ctx context.Context, writes []docstore.Write) error {
	return docstore.RunWithRetry(ctx, docstore.DefaultMaxAttempts, func(ctx context.Context) error {
		return s.client.Watch(ctx, func(tx *redis.Tx) error {
			return s.commit(ctx, tx, writes)
		})
	})
}

// List returns the documents directly inside collection, ordered by ID.
func (s *Store) List(ctx context.Context, collection string) ([]*docstore.Snapshot, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, s.colKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.docKey(docstore.Join(collection, id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	out := make([]*docstore.Snapshot, 0, len(ids))
	for i, id := range ids {
		snap, err := decode(docstore.Join(collection, id), cmds[i].Val())
		if err != nil {
			return nil, err
		}
		// The index can briefly outlive a document removed by hand.
		if snap.Exists {
			out = append(out, snap)
		}
	}
	return out, nil
}

// RunTransaction runs fn as a WATCH/MULTI/EXEC transaction.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error, opts ...docstore.TxOption) error {
	o := docstore.ApplyTxOptions(opts)
	return docstore.RunWithRetry(ctx, o.MaxAttempts, func(ctx context.Context) error {
		return s.client.Watch(ctx, func(rtx *redis.Tx) error {
			buf := docstore.NewTxBuffer(func(path string) (*docstore.Snapshot, int64, error) {
				if err := rtx.Watch(ctx, s.docKey(path)).Err(); err != nil {
					return nil, 0, fmt.Errorf("watch %s: %w", path, err)
				}
				snap, err := s.read(ctx, rtx, path)
				// WATCH does the validation; the version is unused.
				return snap, 0, err
			}, s.ids)

			if err := fn(ctx, buf); err != nil {
				return err
			}
			return s.commit(ctx, rtx, buf.Writes)
		})
	})
}

// commit applies writes in MULTI/EXEC on rtx. Merge bases are read under
// WATCH first, so a concurrent change to them also aborts.
func (s *Store) commit(ctx context.Context, rtx *redis.Tx, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}

	resolved, err := docstore.Resolve(writes, func(path string) (docstore.Data, bool, error) {
		if err := rtx.Watch(ctx, s.docKey(path)).Err(); err != nil {
			return nil, false, fmt.Errorf("watch %s: %w", path, err)
		}
		snap, err := s.read(ctx, rtx, path)
		if err != nil {
			return nil, false, err
		}
		return snap.Data, snap.Exists, nil
	})
	if err != nil {
		return err
	}

	now := strconv.FormatInt(s.now().UnixNano(), 10)
	texts := make([]string, len(resolved))
	for i, r := range resolved {
		if r.Deleted {
			continue
		}
		if texts[i], err = docstore.EncodeJSON(r.Data); err != nil {
			return fmt.Errorf("write %s: %w", r.Path, err)
		}
	}

	_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, r := range resolved {
			key := s.docKey(r.Path)
			col := s.colKey(docstore.Parent(r.Path))
			id := docstore.Base(r.Path)
			if r.Deleted {
				pipe.Del(ctx, key)
				pipe.ZRem(ctx, col, id)
				continue
			}
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, fieldData, texts[i], fieldUpdatedAt, now)
			pipe.ZAdd(ctx, col, redis.Z{Score: 0, Member: id})
		}
		return nil
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: watched document changed", docstore.ErrAborted)
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
