package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// UserStore reads profile records. Concurrent reads of one id share a single
// store round trip; nothing is kept once the read returns. The shared read
// runs detached from any one caller, and each caller stops waiting when its
// own context is done.
type UserStore struct {
	*core
	sf singleflight.Group
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if userID == "" {
		return domain.User{}, fmt.Errorf("get user: %w", domain.ErrNotFound)
	}
	readCtx := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(userID, func() (interface{}, error) {
		doc, err := s.store.Get(readCtx, userRef(userID))
		if err != nil {
			return domain.User{}, storeErr("get user "+userID, err)
		}
		var user domain.User
		if err := doc.DataTo(&user); err != nil {
			return domain.User{}, fmt.Errorf("decode user %s: %w", userID, err)
		}
		user.ID = doc.Ref.ID
		return user, nil
	})
	select {
	case <-ctx.Done():
		return domain.User{}, fmt.Errorf("get user %s: %w", userID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.User{}, res.Err
		}
		return res.Val.(domain.User), nil
	}
}

// CreateUser writes a profile record. Signup itself happens elsewhere; this
// backs seeding and tests.
func (s *UserStore) CreateUser(ctx context.Context, user domain.User) (_ domain.User, err error) {
	defer s.track("create_user", time.Now(), &err)

	name, err := domain.UserName(user.Name)
	if err != nil {
		return domain.User{}, err
	}
	user.Name = name
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == "" {
		user.ID = docstore.NewID()
	}
	if err := s.store.Set(ctx, userRef(user.ID), map[string]any{
		"name":  user.Name,
		"email": user.Email,
	}); err != nil {
		return domain.User{}, storeErr("create user", err)
	}
	return user, nil
}
