package badger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/docstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		store, err := Open(Config{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ref := docstore.Collection("classrooms").Doc("c1")

	store, err := Open(Config{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, ref, map[string]any{"classroomName": "Biology 101"}))
	require.NoError(t, store.Close())

	reopened, err := Open(Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Biology 101", doc.Data["classroomName"])
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}

func TestOpenKeepsCallerLogAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("component", "badger"))

	db, err := open(Config{InMemory: true, Logger: logger})
	require.NoError(t, err)
	db.Opts().Logger.Warningf("value log %s", "rotated")
	require.NoError(t, db.Close())

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "value log rotated") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Equal(t, 1, strings.Count(line, `"component"`))
}
