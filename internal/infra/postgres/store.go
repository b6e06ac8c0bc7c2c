package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classquiz-service/internal/docstore"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	selectDocSQL = `SELECT data, create_time, update_time FROM documents WHERE path=$1`

	lockDocSQL = `SELECT data, create_time, update_time FROM documents WHERE path=$1 FOR UPDATE`

	upsertDocSQL = `INSERT INTO documents (path, collection, group_name, data, create_time, update_time)
VALUES ($1, $2, $3, $4::jsonb, $5, $6)
ON CONFLICT (path) DO UPDATE SET data=EXCLUDED.data, update_time=EXCLUDED.update_time`

	deleteDocSQL = `DELETE FROM documents WHERE path=$1`

	queryCollectionSQL = `SELECT path, data, create_time, update_time FROM documents WHERE collection=$1 AND data @> $2::jsonb`

	queryGroupSQL = `SELECT path, data, create_time, update_time FROM documents WHERE group_name=$1 AND data @> $2::jsonb`
)

// Store keeps every document as one JSONB row of the documents table.
type Store struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

func NewStore(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now is truncated to the column precision so reads return what was written.
func (s *Store) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	if err := ref.Validate(); err != nil {
		return docstore.Document{}, err
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx, selectDocSQL, ref.Path()))
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, err)
	}
	if rec == nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, docstore.ErrNotFound)
	}
	return rec.Document(ref), nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	contains, err := containment(q)
	if err != nil {
		return nil, err
	}

	sql, scope := queryCollectionSQL, q.Collection.Path
	if scope == "" {
		sql, scope = queryGroupSQL, q.Group
	}
	rows, err := s.pool.Query(ctx, sql, scope, contains)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", scope, err)
	}
	defer rows.Close()

	var candidates []docstore.Document
	for rows.Next() {
		var (
			path string
			raw  []byte
			rec  docstore.Record
		)
		if err := rows.Scan(&path, &raw, &rec.CreateTime, &rec.UpdateTime); err != nil {
			return nil, fmt.Errorf("scan %s: %w", scope, err)
		}
		ref, err := docstore.ParseDocRef(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		candidates = append(candidates, rec.Document(ref))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", scope, err)
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
	now := s.now()
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		state, refs, err := docstore.Staged(writes, now, func(ref docstore.DocRef) (*docstore.Record, error) {
			rec, err := scanRecord(tx.QueryRow(ctx, lockDocSQL, ref.Path()))
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", ref, err)
			}
			return rec, nil
		})
		if err != nil {
			return err
		}
		for _, ref := range refs {
			rec := state[ref.Path()]
			if rec == nil {
				if _, err := tx.Exec(ctx, deleteDocSQL, ref.Path()); err != nil {
					return fmt.Errorf("delete %s: %w", ref, err)
				}
				continue
			}
			data, err := json.Marshal(rec.Data)
			if err != nil {
				return fmt.Errorf("encode %s: %w", ref, err)
			}
			if _, err := tx.Exec(ctx, upsertDocSQL,
				ref.Path(), ref.Coll.Path, ref.Coll.Name(), string(data), rec.CreateTime, rec.UpdateTime,
			); err != nil {
				return fmt.Errorf("write %s: %w", ref, err)
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*docstore.Record, error) {
	var (
		raw []byte
		rec docstore.Record
	)
	err := row.Scan(&raw, &rec.CreateTime, &rec.UpdateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &rec.Data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	return &rec, nil
}

// containment builds the jsonb object pushed down as `data @> $2`. Only
// equality filters qualify; timestamp strings stay in Select because equal
// instants may be spelled differently.
func containment(q docstore.Query) (string, error) {
	eq, err := q.EqualityFilters()
	if err != nil {
		return "", err
	}
	for field, v := range eq {
		if str, ok := v.(string); ok {
			if _, err := time.Parse(time.RFC3339Nano, str); err == nil {
				delete(eq, field)
			}
		}
	}
	raw, err := json.Marshal(eq)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
