package app

import (
	"context"
	"errors"
	"fmt"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
)

// UniquenessChecker answers whether a name is free in its scope. It reads the
// store on every call; two concurrent creations can both see a name as free.
type UniquenessChecker struct {
	*core
}

// ClassroomNameUnique reports whether none of the classrooms created by userID,
// other than excludeID, has name under NormalizeKey. A lookup failure is an
// error, never a "unique" answer.
func (u *UniquenessChecker) ClassroomNameUnique(ctx context.Context, userID, name, excludeID string) (bool, error) {
	key := domain.NormalizeKey(name)
	owned, err := u.store.Query(ctx, docstore.FromGroup(membersGroup).
		Where("userId", docstore.Eq, userID).
		Where("isCreator", docstore.Eq, true))
	if err != nil {
		return false, storeErr("list created classrooms", err)
	}

	for _, m := range owned {
		classroom, ok := classroomOfMember(m.Ref)
		if !ok || classroom.ID == excludeID {
			continue
		}
		doc, err := u.store.Get(ctx, classroom)
		if errors.Is(err, docstore.ErrNotFound) {
			// classroom mid-deletion
			continue
		}
		if err != nil {
			return false, storeErr("resolve classroom", err)
		}
		existing, _ := doc.Data["classroomName"].(string)
		if domain.NormalizeKey(existing) == key {
			return false, nil
		}
	}
	return true, nil
}

// QuizNameUnique reports whether no quiz of classroomID other than excludeID
// has name under NormalizeKey.
func (u *UniquenessChecker) QuizNameUnique(ctx context.Context, classroomID, name, excludeID string) (bool, error) {
	key := domain.NormalizeKey(name)
	quizzes, err := u.store.Query(ctx, docstore.From(quizzesOf(classroomID)))
	if err != nil {
		return false, storeErr("list quizzes", err)
	}
	for _, q := range quizzes {
		if q.Ref.ID == excludeID {
			continue
		}
		existing, _ := q.Data["quizName"].(string)
		if domain.NormalizeKey(existing) == key {
			return false, nil
		}
	}
	return true, nil
}

func duplicate(kind, name string) error {
	return fmt.Errorf("%s %q: %w", kind, name, domain.ErrDuplicateName)
}
