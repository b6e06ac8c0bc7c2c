package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"classquiz-service/internal/docstore"
	"golang.org/x/sync/errgroup"
)

// Cascade deletes a document tree child-first in a fixed order. A failure
// stops before the parent goes, so re-running finishes the job.
type Cascade struct {
	*core
}

// DeleteQuiz removes the quiz's questions, then its stats, then the quiz.
func (c *Cascade) DeleteQuiz(ctx context.Context, classroomID, quizID string) error {
	if err := c.deleteCollection(ctx, questionsOf(classroomID, quizID)); err != nil {
		return fmt.Errorf("delete quiz %s questions: %w", quizID, err)
	}
	if err := c.deleteCollection(ctx, statsOf(classroomID, quizID)); err != nil {
		return fmt.Errorf("delete quiz %s stats: %w", quizID, err)
	}
	if err := c.store.Delete(ctx, quizRef(classroomID, quizID)); err != nil {
		return storeErr("delete quiz "+quizID, err)
	}
	return nil
}

// DeleteClassroom removes every quiz subtree, then the members, then the
// classroom itself.
func (c *Cascade) DeleteClassroom(ctx context.Context, classroomID string) error {
	quizzes, err := c.store.Query(ctx, docstore.From(quizzesOf(classroomID)))
	if err != nil {
		return storeErr("list quizzes", err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(c.limit)
	for _, q := range quizzes {
		quizID := q.Ref.ID
		g.Go(func() error {
			if err := c.DeleteQuiz(ctx, classroomID, quizID); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("delete classroom %s quizzes: %w", classroomID, err)
	}

	if err := c.deleteCollection(ctx, membersOf(classroomID)); err != nil {
		return fmt.Errorf("delete classroom %s members: %w", classroomID, err)
	}
	if err := c.store.Delete(ctx, classroomRef(classroomID)); err != nil {
		return storeErr("delete classroom "+classroomID, err)
	}
	return nil
}

// deleteCollection deletes every document of coll concurrently and joins the failures.
func (c *Cascade) deleteCollection(ctx context.Context, coll docstore.CollectionRef) error {
	docs, err := c.store.Query(ctx, docstore.From(coll))
	if err != nil {
		return storeErr("list "+coll.Path, err)
	}
	refs := make([]docstore.DocRef, len(docs))
	for i, d := range docs {
		refs[i] = d.Ref
	}
	return c.deleteEach(ctx, refs)
}

func (c *Cascade) deleteEach(ctx context.Context, refs []docstore.DocRef) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(c.limit)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if err := c.store.Delete(ctx, ref); err != nil {
				mu.Lock()
				errs = append(errs, storeErr("delete "+ref.Path(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
