package docstore

import (
	"maps"
)

// WriteKind identifies a buffered transaction write.
type WriteKind int

const (
	WriteSet WriteKind = iota + 1
	WriteMerge
	WriteCreate
	WriteDelete
)

// Write is one buffered write.
type Write struct {
	Kind WriteKind
	Path string
	Data Data
}

// ReadFunc reads a document for a transaction and reports the version the
// backend will validate at commit (0 for a missing document).
type ReadFunc func(path string) (*Snapshot, int64, error)

// TxBuffer implements Tx for backends that validate at commit time
// (sqlstore, redisstore). It records the version of each document read and
// buffers writes; the backend's commit step consumes Reads and Writes.
type TxBuffer struct {
	read ReadFunc
	ids  IDGenerator

	// Reads maps each path read to the version first observed.
	Reads map[string]int64
	// Writes holds writes in call order.
	Writes []Write
}

// NewTxBuffer creates a buffer for one transaction attempt.
func NewTxBuffer(read ReadFunc, ids IDGenerator) *TxBuffer {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &TxBuffer{
		read:  read,
		ids:   ids,
		Reads: make(map[string]int64),
	}
}

// Get reads a document and adds it to the read set.
func (b *TxBuffer) Get(path string) (*Snapshot, error) {
	if len(b.Writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	if err := ValidateDocument(path); err != nil {
		return nil, err
	}
	snap, version, err := b.read(path)
	if err != nil {
		return nil, err
	}
	if _, seen := b.Reads[path]; !seen {
		b.Reads[path] = version
	}
	return snap, nil
}

// Set buffers a replace or merge write.
func (b *TxBuffer) Set(path string, data Data, opts ...SetOption) error {
	if err := ValidateDocument(path); err != nil {
		return err
	}
	kind := WriteSet
	if ApplySetOptions(opts).Merge {
		kind = WriteMerge
	}
	b.Writes = append(b.Writes, Write{Kind: kind, Path: path, Data: maps.Clone(data)})
	return nil
}

// Add buffers the creation of a document with a generated ID.
func (b *TxBuffer) Add(collection string, data Data) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	path := Join(collection, b.ids.Generate())
	b.Writes = append(b.Writes, Write{Kind: WriteCreate, Path: path, Data: maps.Clone(data)})
	return path, nil
}

// Delete buffers the removal of a document.
func (b *TxBuffer) Delete(path string) error {
	if err := ValidateDocument(path); err != nil {
		return err
	}
	b.Writes = append(b.Writes, Write{Kind: WriteDelete, Path: path})
	return nil
}

// Resolved is the final state of one document after all writes of a
// transaction are applied.
type Resolved struct {
	Path    string
	Data    Data
	Deleted bool
}

// BaseFunc loads the committed state of a document during commit.
type BaseFunc func(path string) (data Data, exists bool, err error)

// Resolve folds writes into one final state per path, in first-touched
// order. base is consulted only for merges onto documents that the
// transaction has not already written.
func Resolve(writes []Write, base BaseFunc) ([]Resolved, error) {
	order := make([]string, 0, len(writes))
	state := make(map[string]*Resolved, len(writes))

	for _, w := range writes {
		cur, touched := state[w.Path]
		if !touched {
			cur = &Resolved{Path: w.Path}
			state[w.Path] = cur
			order = append(order, w.Path)
		}

		switch w.Kind {
		case WriteSet, WriteCreate:
			cur.Data = maps.Clone(w.Data)
			cur.Deleted = false
		case WriteMerge:
			if !touched {
				data, exists, err := base(w.Path)
				if err != nil {
					return nil, err
				}
				if exists {
					cur.Data = data
				}
			}
			if cur.Deleted {
				cur.Data = nil
			}
			cur.Data = MergeData(cur.Data, w.Data)
			cur.Deleted = false
		case WriteDelete:
			cur.Data = nil
			cur.Deleted = true
		}
	}

	out := make([]Resolved, 0, len(order))
	for _, p := range order {
		out = append(out, *state[p])
	}
	return out, nil
}
