// Package docstore defines the document database contract the classroom core
// is written against, plus the pure helpers (paths, write application, query
// evaluation) that every backend shares so they agree on semantics.
//
// The model follows hosted document databases: documents live in
// collections addressed by slash-separated paths, collections can be nested
// under documents, and deleting a document never deletes its subcollections.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get and Update when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrBatchScope is returned when a batch spans more than one top-level collection.
	ErrBatchScope = errors.New("batch writes must share one top-level collection")
	// ErrInvalidPath is returned for malformed collection or document paths.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrInvalidQuery is returned for queries without a scope or with mismatched cursors.
	ErrInvalidQuery = errors.New("invalid query")
)

// Store is a document database client.
type Store interface {
	// Get reads one document. Missing documents yield ErrNotFound.
	Get(ctx context.Context, ref DocRef) (Document, error)
	// Query evaluates q against a collection or a collection group.
	Query(ctx context.Context, q Query) ([]Document, error)
	// Set writes data to ref, replacing it unless Merge is given.
	Set(ctx context.Context, ref DocRef, data any, opts ...SetOption) error
	// Create writes data under a new store-assigned id.
	Create(ctx context.Context, coll CollectionRef, data any, opts ...SetOption) (DocRef, error)
	// Update overwrites the given top-level fields of an existing document.
	Update(ctx context.Context, ref DocRef, fields map[string]any) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, ref DocRef) error
	// Batch applies all writes atomically. Writes must share a top-level collection.
	Batch(ctx context.Context, writes []Write) error
	Close() error
}

// Document is a snapshot of a stored document.
type Document struct {
	Ref        DocRef
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document fields into v (a pointer to a struct with json tags).
func (d Document) DataTo(v any) error {
	return decodeInto(d.Data, v)
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

// WriteKind enumerates the write operations a batch can carry.
type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteUpdate
	WriteDelete
)

// Write is one operation inside a Batch.
type Write struct {
	Kind    WriteKind
	Ref     DocRef
	Data    any            // WriteSet
	Fields  map[string]any // WriteUpdate
	Options []SetOption    // WriteSet
}

func SetWrite(ref DocRef, data any, opts ...SetOption) Write {
	return Write{Kind: WriteSet, Ref: ref, Data: data, Options: opts}
}

func UpdateWrite(ref DocRef, fields map[string]any) Write {
	return Write{Kind: WriteUpdate, Ref: ref, Fields: fields}
}

func DeleteWrite(ref DocRef) Write {
	return Write{Kind: WriteDelete, Ref: ref}
}

// SetOption tunes a Set write.
type SetOption func(*setConfig)

type setConfig struct {
	merge            bool
	serverTimestamps []string
}

// Merge makes Set overlay the given top-level fields onto an existing document
// instead of replacing it. A missing document is created.
func Merge() SetOption {
	return func(c *setConfig) { c.merge = true }
}

// ServerTimestamp stamps the named fields with the store's commit time.
func ServerTimestamp(fields ...string) SetOption {
	return func(c *setConfig) { c.serverTimestamps = append(c.serverTimestamps, fields...) }
}

func buildSetConfig(opts []SetOption) setConfig {
	var c setConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// CheckBatchScope verifies that all writes target the same top-level collection.
func CheckBatchScope(writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	root := writes[0].Ref.Root()
	for _, w := range writes[1:] {
		if w.Ref.Root() != root {
			return ErrBatchScope
		}
	}
	return nil
}
