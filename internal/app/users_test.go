package app_test

import (
	"context"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedStore holds every Get until release is closed or the read's context ends.
type gatedStore struct {
	docstore.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return docstore.Document{}, ctx.Err()
	}
	return g.Store.Get(ctx, ref)
}

func TestGetUserCancelledCallerDoesNotFailOthers(t *testing.T) {
	gated := &gatedStore{
		Store:   memory.NewStore(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	svc := app.New(gated)
	_, err := svc.Users.CreateUser(context.Background(), domain.User{ID: "u1", Name: "Teacher", Email: "u1@example.com"})
	require.NoError(t, err)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Users.GetUser(firstCtx, "u1")
		first <- err
	}()
	<-gated.entered

	type result struct {
		user domain.User
		err  error
	}
	second := make(chan result, 1)
	go func() {
		u, err := svc.Users.GetUser(context.Background(), "u1")
		second <- result{u, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-first, context.Canceled)

	close(gated.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "Teacher", got.user.Name)
}
