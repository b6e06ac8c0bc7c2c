package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classquiz-service/internal/docstore"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic-lock retries for one batch.
const maxTxRetries = 8

// Store is a Redis-backed docstore.Store.
// Layout:
//
//	SET  {prefix}doc:{path}        JSON record
//	SADD {prefix}coll:{collection} document ids
//	SADD {prefix}group:{name}      document paths (collection-group index)
//
// Writes run inside WATCH/MULTI so a batch is applied all-or-nothing.
type Store struct {
	client *redis.Client
	prefix string
	clock  func() time.Time
}

type Option func(*Store)

// WithPrefix namespaces every key, so several stores can share one database.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) docKey(path string) string {
	return s.prefix + "doc:" + path
}

func (s *Store) collKey(coll docstore.CollectionRef) string {
	return s.prefix + "coll:" + coll.Path
}

func (s *Store) groupKey(name string) string {
	return s.prefix + "group:" + name
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	if err := ref.Validate(); err != nil {
		return docstore.Document{}, err
	}
	raw, err := s.client.Get(ctx, s.docKey(ref.Path())).Bytes()
	if errors.Is(err, redis.Nil) {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, err)
	}
	rec, err := docstore.DecodeRecord(raw)
	if err != nil {
		return docstore.Document{}, err
	}
	return rec.Document(ref), nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var refs []docstore.DocRef
	if q.Collection.Path != "" {
		ids, err := s.client.SMembers(ctx, s.collKey(q.Collection)).Result()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", q.Collection.Path, err)
		}
		for _, id := range ids {
			refs = append(refs, q.Collection.Doc(id))
		}
	} else {
		paths, err := s.client.SMembers(ctx, s.groupKey(q.Group)).Result()
		if err != nil {
			return nil, fmt.Errorf("list group %s: %w", q.Group, err)
		}
		for _, p := range paths {
			ref, err := docstore.ParseDocRef(p)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return []docstore.Document{}, nil
	}

	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = s.docKey(ref.Path())
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	candidates := make([]docstore.Document, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// removed between the index read and the load
			continue
		}
		rec, err := docstore.DecodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rec.Document(refs[i]))
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
	keys := make([]string, 0, len(writes))
	for _, w := range writes {
		if err := w.Ref.Validate(); err != nil {
			return err
		}
		keys = append(keys, s.docKey(w.Ref.Path()))
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			return s.commit(ctx, tx, writes)
		}, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("batch: %w after %d attempts", redis.TxFailedErr, maxTxRetries)
}

func (s *Store) commit(ctx context.Context, tx *redis.Tx, writes []docstore.Write) error {
	state, refs, err := docstore.Staged(writes, s.clock(), func(ref docstore.DocRef) (*docstore.Record, error) {
		raw, err := tx.Get(ctx, s.docKey(ref.Path())).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		rec, err := docstore.DecodeRecord(raw)
		if err != nil {
			return nil, err
		}
		return &rec, nil
	})
	if err != nil {
		return err
	}

	encoded := make(map[string][]byte, len(refs))
	for _, ref := range refs {
		if rec := state[ref.Path()]; rec != nil {
			raw, err := docstore.EncodeRecord(*rec)
			if err != nil {
				return err
			}
			encoded[ref.Path()] = raw
		}
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ref := range refs {
			path := ref.Path()
			if raw, ok := encoded[path]; ok {
				pipe.Set(ctx, s.docKey(path), raw, 0)
				pipe.SAdd(ctx, s.collKey(ref.Coll), ref.ID)
				pipe.SAdd(ctx, s.groupKey(ref.Coll.Name()), path)
				continue
			}
			pipe.Del(ctx, s.docKey(path))
			pipe.SRem(ctx, s.collKey(ref.Coll), ref.ID)
			pipe.SRem(ctx, s.groupKey(ref.Coll.Name()), path)
		}
		return nil
	})
	return err
}

func (s *Store) Close() error {
	return s.client.Close()
}
