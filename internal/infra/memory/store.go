package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"classquiz-service/internal/docstore"
)

// Store is an in-process implementation of docstore.Store.
type Store struct {
	clock func() time.Time

	mu   sync.RWMutex
	docs map[string]entry
}

type entry struct {
	ref docstore.DocRef
	rec docstore.Record
}

type Option func(*Store)

// WithClock overrides the commit clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		clock: time.Now,
		docs:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	if err := ref.Validate(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[ref.Path()]
	if !ok {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, docstore.ErrNotFound)
	}
	return e.rec.Document(e.ref), nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	candidates := make([]docstore.Document, 0)
	for _, e := range s.docs {
		if q.InScope(e.ref) {
			candidates = append(candidates, e.rec.Document(e.ref))
		}
	}
	s.mu.RUnlock()
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
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstore.CheckBatchScope(writes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, refs, err := docstore.Staged(writes, s.clock(), func(ref docstore.DocRef) (*docstore.Record, error) {
		e, ok := s.docs[ref.Path()]
		if !ok {
			return nil, nil
		}
		rec := e.rec
		return &rec, nil
	})
	if err != nil {
		return err
	}
	for _, ref := range refs {
		path := ref.Path()
		if rec := state[path]; rec != nil {
			s.docs[path] = entry{ref: ref, rec: *rec}
		} else {
			delete(s.docs, path)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Paths lists every stored document path in order. Handy for asserting
// that a cascade left nothing behind.
func (s *Store) Paths(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for path := range s.docs {
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}
