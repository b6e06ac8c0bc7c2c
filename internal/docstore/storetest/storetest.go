// Package storetest is a conformance suite run by every docstore backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"classquiz-service/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) docstore.Store

type member struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	IsCreator bool   `json:"isCreator"`
}

// Run exercises the full docstore contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGetReplace", func(t *testing.T) { testSetGetReplace(t, newStore(t)) })
	t.Run("MergeAndServerTimestamp", func(t *testing.T) { testMergeAndServerTimestamp(t, newStore(t)) })
	t.Run("CreateAssignsID", func(t *testing.T) { testCreateAssignsID(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("DeleteKeepsSubcollections", func(t *testing.T) { testDeleteKeepsSubcollections(t, newStore(t)) })
	t.Run("QueryFiltersOrderLimit", func(t *testing.T) { testQuery(t, newStore(t)) })
	t.Run("CollectionGroup", func(t *testing.T) { testCollectionGroup(t, newStore(t)) })
	t.Run("BatchAtomic", func(t *testing.T) { testBatchAtomic(t, newStore(t)) })
	t.Run("BatchScope", func(t *testing.T) { testBatchScope(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s docstore.Store) {
	_, err := s.Get(context.Background(), docstore.Collection("users").Doc("nobody"))
	require.ErrorIs(t, err, docstore.ErrNotFound)
}

func testSetGetReplace(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Collection("users").Doc("u1")

	require.NoError(t, s.Set(ctx, ref, map[string]any{"name": "Ada", "email": "ada@example.com"}))
	first, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.Data["name"])
	assert.False(t, first.CreateTime.IsZero())

	require.NoError(t, s.Set(ctx, ref, map[string]any{"name": "Grace"}))
	second, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Grace", second.Data["name"])
	_, hasEmail := second.Data["email"]
	assert.False(t, hasEmail, "set without merge replaces the document")
	assert.True(t, second.CreateTime.Equal(first.CreateTime), "create time survives overwrite")
}

func testMergeAndServerTimestamp(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Collection("classrooms").Doc("c1")

	require.NoError(t, s.Set(ctx, ref, map[string]any{"classroomName": "Biology 101"},
		docstore.ServerTimestamp("createdAt")))
	require.NoError(t, s.Set(ctx, ref, map[string]any{"password": "XYZ"}, docstore.Merge()))

	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Biology 101", doc.Data["classroomName"])
	assert.Equal(t, "XYZ", doc.Data["password"])

	var decoded struct {
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, doc.DataTo(&decoded))
	assert.False(t, decoded.CreatedAt.IsZero())
	assert.WithinDuration(t, doc.CreateTime, decoded.CreatedAt, time.Second)
}

func testCreateAssignsID(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	coll := docstore.Collection("classrooms")

	a, err := s.Create(ctx, coll, map[string]any{"n": 1})
	require.NoError(t, err)
	b, err := s.Create(ctx, coll, map[string]any{"n": 2})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	doc, err := s.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, float64(2), doc.Data["n"])
}

func testUpdateMissing(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := docstore.Collection("classrooms").Doc("c1").Collection("quizzes").Doc("q1").Collection("stats").Doc("u1")

	err := s.Update(ctx, ref, map[string]any{"name": "x"})
	require.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = s.Get(ctx, ref)
	require.ErrorIs(t, err, docstore.ErrNotFound, "failed update must not create the document")

	require.NoError(t, s.Set(ctx, ref, map[string]any{"name": "a", "email": "e"}))
	require.NoError(t, s.Update(ctx, ref, map[string]any{"name": "b"}))
	doc, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "b", doc.Data["name"])
	assert.Equal(t, "e", doc.Data["email"])
}

func testDeleteKeepsSubcollections(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	parent := docstore.Collection("classrooms").Doc("c1")
	child := parent.Collection("members").Doc("u1")

	require.NoError(t, s.Set(ctx, parent, map[string]any{"classroomName": "x"}))
	require.NoError(t, s.Set(ctx, child, member{UserID: "u1"}))
	require.NoError(t, s.Delete(ctx, parent))
	require.NoError(t, s.Delete(ctx, parent), "deleting a missing document is not an error")

	_, err := s.Get(ctx, parent)
	require.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = s.Get(ctx, child)
	require.NoError(t, err, "subcollection documents outlive their parent")
}

func testQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	quizzes := docstore.Collection("classrooms").Doc("c1").Collection("quizzes")
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	for i, name := range []string{"alpha", "bravo", "charlie", "delta"} {
		require.NoError(t, s.Set(ctx, quizzes.Doc(name), map[string]any{
			"quizName": name,
			"deadline": base.Add(time.Duration(4-i) * time.Hour),
			"rank":     i,
		}))
	}
	// same collection name, different parent: must not leak into a collection query
	require.NoError(t, s.Set(ctx, docstore.Collection("classrooms").Doc("c2").Collection("quizzes").Doc("other"),
		map[string]any{"quizName": "other", "deadline": base, "rank": 0}))

	docs, err := s.Query(ctx, docstore.From(quizzes).Order("deadline", false))
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, []string{"delta", "charlie", "bravo", "alpha"}, ids(docs))

	docs, err = s.Query(ctx, docstore.From(quizzes).Where("rank", docstore.Gte, 2).Order("rank", true))
	require.NoError(t, err)
	assert.Equal(t, []string{"delta", "charlie"}, ids(docs))

	docs, err = s.Query(ctx, docstore.From(quizzes).Where("quizName", docstore.Eq, "bravo"))
	require.NoError(t, err)
	assert.Equal(t, []string{"bravo"}, ids(docs))

	page, err := s.Query(ctx, docstore.From(quizzes).Order("rank", false).WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo"}, ids(page))

	next, err := s.Query(ctx, docstore.From(quizzes).Order("rank", false).After(page[1].Data["rank"]).WithLimit(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"charlie", "delta"}, ids(next))
}

func testCollectionGroup(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	classrooms := docstore.Collection("classrooms")
	require.NoError(t, s.Set(ctx, classrooms.Doc("c1").Collection("members").Doc("u1"), member{UserID: "u1", IsCreator: true}))
	require.NoError(t, s.Set(ctx, classrooms.Doc("c2").Collection("members").Doc("u1"), member{UserID: "u1"}))
	require.NoError(t, s.Set(ctx, classrooms.Doc("c2").Collection("members").Doc("u2"), member{UserID: "u2"}))
	require.NoError(t, s.Set(ctx, docstore.Collection("members").Doc("u1"), member{UserID: "u1"}))

	docs, err := s.Query(ctx, docstore.FromGroup("members").Where("userId", docstore.Eq, "u1"))
	require.NoError(t, err)
	require.Len(t, docs, 3)

	docs, err = s.Query(ctx, docstore.FromGroup("members").
		Where("userId", docstore.Eq, "u1").
		Where("isCreator", docstore.Eq, true))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	parent, ok := docs[0].Ref.Coll.Parent()
	require.True(t, ok)
	assert.Equal(t, "classrooms/c1", parent.Path())
}

func testBatchAtomic(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	questions := docstore.Collection("classrooms").Doc("c1").Collection("quizzes").Doc("q1").Collection("quizQuestions")

	err := s.Batch(ctx, []docstore.Write{
		docstore.SetWrite(questions.Doc("a"), map[string]any{"question": "1+1"}),
		docstore.SetWrite(questions.Doc("b"), map[string]any{"question": "2+2"}),
		docstore.UpdateWrite(questions.Doc("missing"), map[string]any{"question": "x"}),
	})
	require.ErrorIs(t, err, docstore.ErrNotFound)

	docs, err := s.Query(ctx, docstore.From(questions))
	require.NoError(t, err)
	assert.Empty(t, docs, "a failed batch writes nothing")

	require.NoError(t, s.Batch(ctx, []docstore.Write{
		docstore.SetWrite(questions.Doc("a"), map[string]any{"question": "1+1"}),
		docstore.SetWrite(questions.Doc("b"), map[string]any{"question": "2+2"}),
		docstore.UpdateWrite(questions.Doc("a"), map[string]any{"answer": "2"}),
	}))
	docs, err = s.Query(ctx, docstore.From(questions))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	a, err := s.Get(ctx, questions.Doc("a"))
	require.NoError(t, err)
	assert.Equal(t, "2", a.Data["answer"])

	require.NoError(t, s.Batch(ctx, []docstore.Write{
		docstore.DeleteWrite(questions.Doc("a")),
		docstore.DeleteWrite(questions.Doc("b")),
	}))
	docs, err = s.Query(ctx, docstore.From(questions))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testBatchScope(t *testing.T, s docstore.Store) {
	err := s.Batch(context.Background(), []docstore.Write{
		docstore.SetWrite(docstore.Collection("users").Doc("u1"), map[string]any{}),
		docstore.SetWrite(docstore.Collection("classrooms").Doc("c1"), map[string]any{}),
	})
	require.True(t, errors.Is(err, docstore.ErrBatchScope), "got %v", err)
}

func ids(docs []docstore.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Ref.ID
	}
	return out
}
