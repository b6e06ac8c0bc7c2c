// Package badger is an embedded docstore.Store on top of BadgerDB, for
// single-node deployments that want persistence without a server.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classquiz-service/internal/docstore"
	"github.com/dgraph-io/badger/v4"
)

const (
	docPrefix    = "doc/"
	maxTxRetries = 8
)

// Store keeps one JSON record per key "doc/{path}". Collection queries scan
// the "doc/{collection}/" prefix; group queries scan every document.
type Store struct {
	db    *badger.DB
	clock func() time.Time

	gcStop chan struct{}
	gcDone chan struct{}
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

func Open(cfg Config, opts ...Option) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go runGC(db, cfg.GCInterval, cfg.Logger, s.gcStop, s.gcDone)
	}
	return s, nil
}

func docKey(path string) []byte {
	return []byte(docPrefix + path)
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	if err := ref.Validate(); err != nil {
		return docstore.Document{}, err
	}
	var doc docstore.Document
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := load(txn, ref)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("get %s: %w", ref, docstore.ErrNotFound)
		}
		doc = rec.Document(ref)
		return nil
	})
	return doc, err
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	prefix := []byte(docPrefix)
	if q.Collection.Path != "" {
		prefix = []byte(docPrefix + q.Collection.Path + "/")
	}

	var candidates []docstore.Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			ref, err := docstore.ParseDocRef(string(item.Key()[len(docPrefix):]))
			if err != nil {
				return err
			}
			if !q.InScope(ref) {
				continue
			}
			err = item.Value(func(raw []byte) error {
				rec, err := docstore.DecodeRecord(raw)
				if err != nil {
					return err
				}
				candidates = append(candidates, rec.Document(ref))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return docstore.Select(q, candidates)
}

func (s *Store) Set(ctx context.Context, ref docstore.DocRef, data any, opts ...docstore.SetOption) error {
	return s.Batch(ctx, []docstore.Write{docstore.SetWrite(ref, data, opts...)})
}

func (s *Store) Create(ctx context.Context, coll docstore.CollectionRef, data any, opts ...docstore.SetOption) (docstore.DocRef, error) {
	ref := coll.Doc(docstore.NewID())
	if err := s.Set(ctx, ref, data, opts...); err != nil {
		return docstore.DocRef{}, err
	}
	return ref, nil
}

func (s *Store) Update(ctx context.Context, ref docstore.DocRef, fields map[string]any) error {
	return s.Batch(ctx, []docstore.Write{docstore.UpdateWrite(ref, fields)})
}

func (s *Store) Delete(ctx context.Context, ref docstore.DocRef) error {
	return s.Batch(ctx, []docstore.Write{docstore.DeleteWrite(ref)})
}

func (s *Store) Batch(ctx context.Context, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if err := docstore.CheckBatchScope(writes); err != nil {
		return err
	}
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			return s.commit(txn, writes)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("batch: %w after %d attempts", badger.ErrConflict, maxTxRetries)
}

func (s *Store) commit(txn *badger.Txn, writes []docstore.Write) error {
	state, refs, err := docstore.Staged(writes, s.clock(), func(ref docstore.DocRef) (*docstore.Record, error) {
		return load(txn, ref)
	})
	if err != nil {
		return err
	}
	for _, ref := range refs {
		key := docKey(ref.Path())
		rec := state[ref.Path()]
		if rec == nil {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", ref, err)
			}
			continue
		}
		raw, err := docstore.EncodeRecord(*rec)
		if err != nil {
			return err
		}
		if err := txn.Set(key, raw); err != nil {
			return fmt.Errorf("write %s: %w", ref, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

func load(txn *badger.Txn, ref docstore.DocRef) (*docstore.Record, error) {
	item, err := txn.Get(docKey(ref.Path()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	var rec docstore.Record
	err = item.Value(func(raw []byte) error {
		rec, err = docstore.DecodeRecord(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
