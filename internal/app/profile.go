package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ProfileService owns changes to a user's profile and the copies of the
// user's name kept on members, classrooms and stats.
type ProfileService struct {
	*core
}

// PropagateNameChange writes newName to the user record, then to every member
// record of the user, the createdByName of classrooms they created, and their
// stat under every quiz of those classrooms. Quizzes the user never attempted
// are skipped. Updates run concurrently; failures are joined into one error
// and nothing already written is rolled back.
func (p *ProfileService) PropagateNameChange(ctx context.Context, userID, newName string) (err error) {
	defer p.track("propagate_name", time.Now(), &err)

	name, err := domain.UserName(newName)
	if err != nil {
		return err
	}
	if err := p.store.Update(ctx, userRef(userID), map[string]any{"name": name}); err != nil {
		return storeErr("update user name", err)
	}

	memberships, err := p.store.Query(ctx, docstore.FromGroup(membersGroup).Where("userId", docstore.Eq, userID))
	if err != nil {
		return storeErr("list memberships", err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(p.limit)
	for _, m := range memberships {
		m := m
		classroom, ok := classroomOfMember(m.Ref)
		if !ok {
			continue
		}
		isCreator, _ := m.Data["isCreator"].(bool)
		g.Go(func() error {
			if err := p.propagateToClassroom(ctx, m.Ref, classroom, isCreator, userID, name); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		p.rec.FanoutFailure("propagate_name")
		return fmt.Errorf("propagate name of %s: %w", userID, err)
	}

	p.publish(domain.EventUserNameChanged, "", "", userID)
	return nil
}

func (p *ProfileService) propagateToClassroom(ctx context.Context, member, classroom docstore.DocRef, isCreator bool, userID, name string) error {
	var errs []error
	if err := p.store.Update(ctx, member, map[string]any{"name": name}); err != nil {
		errs = append(errs, storeErr("update member "+member.Path(), err))
	}
	if isCreator {
		if err := p.store.Update(ctx, classroom, map[string]any{"createdByName": name}); err != nil {
			errs = append(errs, storeErr("update classroom "+classroom.ID, err))
		}
	}

	quizzes, err := p.store.Query(ctx, docstore.From(quizzesOf(classroom.ID)))
	if err != nil {
		return errors.Join(append(errs, storeErr("list quizzes of "+classroom.ID, err))...)
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(p.limit)
	for _, q := range quizzes {
		ref := statRef(classroom.ID, q.Ref.ID, userID)
		g.Go(func() error {
			err := p.store.Update(ctx, ref, map[string]any{"name": name})
			if err == nil {
				return nil
			}
			if errors.Is(err, docstore.ErrNotFound) {
				p.log.Debug("no stat to rename", slog.String("path", ref.Path()))
				return nil
			}
			mu.Lock()
			errs = append(errs, storeErr("update stat "+ref.Path(), err))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
