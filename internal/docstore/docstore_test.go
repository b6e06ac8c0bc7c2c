package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	members := Collection("classrooms").Doc("c1").Collection("members")
	ref := members.Doc("u1")

	assert.Equal(t, "classrooms/c1/members/u1", ref.Path())
	assert.Equal(t, "members", members.Name())
	assert.Equal(t, "classrooms", ref.Root())

	parent, ok := members.Parent()
	require.True(t, ok)
	assert.Equal(t, "classrooms/c1", parent.Path())

	_, ok = Collection("users").Parent()
	assert.False(t, ok)

	parsed, err := ParseDocRef("classrooms/c1/members/u1")
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)

	for _, bad := range []string{"", "users", "classrooms/c1/members", "a//b", "/x"} {
		_, err := ParseDocRef(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestApplyUpdateMissing(t *testing.T) {
	_, err := Apply(nil, UpdateWrite(Collection("users").Doc("u"), map[string]any{"a": 1}), time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApplySetMergeKeepsCreateTime(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	ref := Collection("users").Doc("u")

	first, err := Apply(nil, SetWrite(ref, map[string]any{"a": 1, "b": "x"}), t0)
	require.NoError(t, err)

	merged, err := Apply(first, SetWrite(ref, map[string]any{"b": "y"}, Merge(), ServerTimestamp("at")), t1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), merged.Data["a"])
	assert.Equal(t, "y", merged.Data["b"])
	assert.Equal(t, t1.Format(time.RFC3339Nano), merged.Data["at"])
	assert.Equal(t, t0, merged.CreateTime)
	assert.Equal(t, t1, merged.UpdateTime)

	// the input record is untouched
	assert.Equal(t, "x", first.Data["b"])

	gone, err := Apply(merged, DeleteWrite(ref), t1)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStagedSeesEarlierWrites(t *testing.T) {
	ref := Collection("users").Doc("u")
	loads := 0
	state, refs, err := Staged([]Write{
		SetWrite(ref, map[string]any{"a": 1}),
		UpdateWrite(ref, map[string]any{"b": 2}),
	}, time.Now(), func(DocRef) (*Record, error) {
		loads++
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	require.Len(t, refs, 1)
	assert.Equal(t, float64(1), state[ref.Path()].Data["a"])
	assert.Equal(t, float64(2), state[ref.Path()].Data["b"])
}

func TestSelect(t *testing.T) {
	coll := Collection("classrooms").Doc("c1").Collection("quizzes")
	doc := func(id string, data map[string]any) Document {
		norm, err := Normalize(data)
		require.NoError(t, err)
		return Document{Ref: coll.Doc(id), Data: norm}
	}
	candidates := []Document{
		doc("a", map[string]any{"score": 3, "name": "x"}),
		doc("b", map[string]any{"score": 1, "name": "y"}),
		doc("c", map[string]any{"name": "z"}),
		doc("d", map[string]any{"score": 3, "name": "w"}),
		{Ref: Collection("classrooms").Doc("c2").Collection("quizzes").Doc("e"), Data: map[string]any{"score": float64(9)}},
	}

	t.Run("order excludes missing fields and breaks ties by path", func(t *testing.T) {
		got, err := Select(From(coll).Order("score", true), candidates)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "d", "b"}, refIDs(got))
	})

	t.Run("not-equal", func(t *testing.T) {
		got, err := Select(From(coll).Where("name", NotEq, "x"), candidates)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c", "d"}, refIDs(got))
	})

	t.Run("group scope", func(t *testing.T) {
		got, err := Select(FromGroup("quizzes").Where("score", Gt, 2), candidates)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "d", "e"}, refIDs(got))
	})

	t.Run("type mismatch never matches", func(t *testing.T) {
		got, err := Select(From(coll).Where("score", Eq, "3"), candidates)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Select(Query{}, candidates)
		assert.ErrorIs(t, err, ErrInvalidQuery)
		_, err = Select(From(coll).After(1), candidates)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})
}

func TestSelectComparesTimestamps(t *testing.T) {
	coll := Collection("quizzes")
	early := time.Date(2025, 1, 1, 9, 0, 0, 0, time.FixedZone("X", 2*3600))
	late := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	docs := []Document{
		{Ref: coll.Doc("late"), Data: map[string]any{"deadline": late.Format(time.RFC3339Nano)}},
		{Ref: coll.Doc("early"), Data: map[string]any{"deadline": early.Format(time.RFC3339Nano)}},
	}
	got, err := Select(From(coll).Order("deadline", false), docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, refIDs(got))
}

func TestCheckBatchScope(t *testing.T) {
	assert.NoError(t, CheckBatchScope(nil))
	assert.NoError(t, CheckBatchScope([]Write{
		DeleteWrite(Collection("classrooms").Doc("c1")),
		DeleteWrite(Collection("classrooms").Doc("c1").Collection("members").Doc("u")),
	}))
	assert.ErrorIs(t, CheckBatchScope([]Write{
		DeleteWrite(Collection("classrooms").Doc("c1")),
		DeleteWrite(Collection("users").Doc("u")),
	}), ErrBatchScope)
}

func refIDs(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Ref.ID
	}
	return out
}
