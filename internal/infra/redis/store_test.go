package redis

import (
	"context"
	"testing"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/docstore/storetest"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		mr := miniredis.RunT(t)
		return NewStore(newClient(mr))
	})
}

func TestStoreKeyLayout(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewStore(newClient(mr), WithPrefix("cq:"))
	ctx := context.Background()
	ref := docstore.Collection("classrooms").Doc("c1").Collection("members").Doc("u1")

	if err := store.Set(ctx, ref, map[string]any{"userId": "u1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("cq:doc:classrooms/c1/members/u1") {
		t.Fatalf("expected document key")
	}
	if ok, _ := mr.SIsMember("cq:coll:classrooms/c1/members", "u1"); !ok {
		t.Fatalf("expected collection index entry")
	}
	if ok, _ := mr.SIsMember("cq:group:members", "classrooms/c1/members/u1"); !ok {
		t.Fatalf("expected group index entry")
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("cq:doc:classrooms/c1/members/u1") {
		t.Fatalf("expected document key removed")
	}
	if ok, _ := mr.SIsMember("cq:group:members", "classrooms/c1/members/u1"); ok {
		t.Fatalf("expected group index entry removed")
	}
}

func TestQuerySkipsDanglingIndexEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewStore(newClient(mr))
	ctx := context.Background()
	coll := docstore.Collection("users")

	if err := store.Set(ctx, coll.Doc("u1"), map[string]any{"name": "Ada"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := mr.SAdd("coll:users", "ghost"); err != nil {
		t.Fatalf("sadd: %v", err)
	}

	docs, err := store.Query(ctx, docstore.From(coll))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].Ref.ID != "u1" {
		t.Fatalf("unexpected documents %+v", docs)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
