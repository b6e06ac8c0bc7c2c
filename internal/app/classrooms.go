package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ClassroomService manages classrooms and their membership.
type ClassroomService struct {
	*core
	users   *UserStore
	uniq    *UniquenessChecker
	cascade *Cascade
}

// Cleanup reports the best-effort deletions done after a member was removed.
type Cleanup struct {
	Attempted []string
	Failed    []CleanupFailure
}

type CleanupFailure struct {
	Path string
	Err  error
}

func (c Cleanup) OK() bool {
	return len(c.Failed) == 0
}

// CreateClassroom creates a classroom owned by userID and its creator member.
// The two writes are separate; if the member write fails the classroom is
// left without members and the failure is logged with its id.
func (s *ClassroomService) CreateClassroom(ctx context.Context, userID, rawName string) (_ domain.Classroom, err error) {
	defer s.track("create_classroom", time.Now(), &err)

	name, err := domain.ClassroomName(rawName)
	if err != nil {
		return domain.Classroom{}, err
	}
	unique, err := s.uniq.ClassroomNameUnique(ctx, userID, name, "")
	if err != nil {
		return domain.Classroom{}, err
	}
	if !unique {
		return domain.Classroom{}, duplicate("classroom", name)
	}
	creator, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.Classroom{}, err
	}
	password, err := s.passwords()
	if err != nil {
		return domain.Classroom{}, err
	}

	ref, err := s.store.Create(ctx, classroomsColl, map[string]any{
		"classroomName": name,
		"createdByName": creator.Name,
		"password":      password,
	}, docstore.ServerTimestamp("createdAt"))
	if err != nil {
		return domain.Classroom{}, storeErr("create classroom", err)
	}
	classroom, err := s.getClassroom(ctx, ref.ID)
	if err != nil {
		return domain.Classroom{}, err
	}

	member := domain.Member{
		UserID:             creator.ID,
		Email:              creator.Email,
		Name:               creator.Name,
		IsCreator:          true,
		ClassroomCreatedAt: classroom.CreatedAt,
	}
	if err := s.store.Set(ctx, memberRef(classroom.ID, creator.ID), member); err != nil {
		s.log.Error("classroom created without creator member",
			slog.String("classroomId", classroom.ID),
			slog.String("userId", userID),
			slog.String("error", err.Error()))
		return domain.Classroom{}, storeErr("create creator member", err)
	}

	s.publish(domain.EventClassroomCreated, classroom.ID, "", userID)
	return classroom, nil
}

// UpdateClassroomName renames a classroom, keeping names unique among the
// classrooms userID created.
func (s *ClassroomService) UpdateClassroomName(ctx context.Context, classroomID, userID, rawName string) (_ string, err error) {
	defer s.track("update_classroom_name", time.Now(), &err)

	name, err := domain.ClassroomName(rawName)
	if err != nil {
		return "", err
	}
	unique, err := s.uniq.ClassroomNameUnique(ctx, userID, name, classroomID)
	if err != nil {
		return "", err
	}
	if !unique {
		return "", duplicate("classroom", name)
	}
	if err := s.store.Update(ctx, classroomRef(classroomID), map[string]any{"classroomName": name}); err != nil {
		return "", storeErr("rename classroom", err)
	}
	s.publish(domain.EventClassroomRenamed, classroomID, "", userID)
	return name, nil
}

// RegeneratePassword overwrites the join password with a fresh token.
// Passwords are not checked for collisions across classrooms.
func (s *ClassroomService) RegeneratePassword(ctx context.Context, classroomID string) (_ string, err error) {
	defer s.track("regenerate_password", time.Now(), &err)

	password, err := s.passwords()
	if err != nil {
		return "", err
	}
	if err := s.store.Update(ctx, classroomRef(classroomID), map[string]any{"password": password}); err != nil {
		return "", storeErr("regenerate password", err)
	}
	s.publish(domain.EventPasswordReset, classroomID, "", "")
	return password, nil
}

// JoinClassroom enrolls userID in the classroom whose password matches.
func (s *ClassroomService) JoinClassroom(ctx context.Context, userID, password string) (_ domain.Classroom, err error) {
	defer s.track("join_classroom", time.Now(), &err)

	password = strings.TrimSpace(password)
	if password == "" {
		return domain.Classroom{}, rejected(domain.ErrInvalidPassword, "password", "password is required")
	}
	found, err := s.store.Query(ctx, docstore.From(classroomsColl).
		Where("password", docstore.Eq, password).
		WithLimit(1))
	if err != nil {
		return domain.Classroom{}, storeErr("find classroom by password", err)
	}
	if len(found) == 0 {
		return domain.Classroom{}, fmt.Errorf("join: %w", domain.ErrInvalidPassword)
	}
	classroom, err := decodeClassroom(found[0])
	if err != nil {
		return domain.Classroom{}, err
	}

	_, err = s.store.Get(ctx, memberRef(classroom.ID, userID))
	switch {
	case err == nil:
		return domain.Classroom{}, fmt.Errorf("join %s: %w", classroom.ID, domain.ErrAlreadyMember)
	case !errors.Is(err, docstore.ErrNotFound):
		return domain.Classroom{}, storeErr("check membership", err)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.Classroom{}, err
	}
	member := domain.Member{
		UserID:             user.ID,
		Email:              user.Email,
		Name:               user.Name,
		ClassroomCreatedAt: classroom.CreatedAt,
	}
	if err := s.store.Set(ctx, memberRef(classroom.ID, user.ID), member); err != nil {
		return domain.Classroom{}, storeErr("create member", err)
	}
	s.publish(domain.EventMemberJoined, classroom.ID, "", userID)
	return classroom, nil
}

// RemoveMember deletes userID's membership, then tries to delete their stat
// under every quiz. The result depends only on the member delete; stat
// cleanup outcomes are reported in Cleanup and logged.
func (s *ClassroomService) RemoveMember(ctx context.Context, classroomID, userID string) (_ Cleanup, err error) {
	defer s.track("remove_member", time.Now(), &err)

	doc, err := s.store.Get(ctx, memberRef(classroomID, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return Cleanup{}, fmt.Errorf("remove %s: %w", userID, domain.ErrNotMember)
	}
	if err != nil {
		return Cleanup{}, storeErr("get member", err)
	}
	var member domain.Member
	if err := doc.DataTo(&member); err != nil {
		return Cleanup{}, fmt.Errorf("decode member: %w", err)
	}
	if member.IsCreator {
		return Cleanup{}, fmt.Errorf("remove %s: %w", userID, domain.ErrCreatorRemoval)
	}
	if err := s.store.Delete(ctx, doc.Ref); err != nil {
		return Cleanup{}, storeErr("delete member", err)
	}
	s.publish(domain.EventMemberRemoved, classroomID, "", userID)
	return s.cleanupStats(ctx, classroomID, userID), nil
}

func (s *ClassroomService) cleanupStats(ctx context.Context, classroomID, userID string) Cleanup {
	var cleanup Cleanup
	quizzes, err := s.store.Query(ctx, docstore.From(quizzesOf(classroomID)))
	if err != nil {
		s.rec.FanoutFailure("remove_member")
		s.log.Warn("stat cleanup skipped",
			slog.String("classroomId", classroomID),
			slog.String("userId", userID),
			slog.String("error", err.Error()))
		cleanup.Failed = append(cleanup.Failed, CleanupFailure{Path: quizzesOf(classroomID).Path, Err: err})
		return cleanup
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.limit)
	for _, q := range quizzes {
		ref := statRef(classroomID, q.Ref.ID, userID)
		cleanup.Attempted = append(cleanup.Attempted, ref.Path())
		g.Go(func() error {
			if err := s.store.Delete(ctx, ref); err != nil {
				s.rec.FanoutFailure("remove_member")
				s.log.Warn("stat cleanup failed", slog.String("path", ref.Path()), slog.String("error", err.Error()))
				mu.Lock()
				cleanup.Failed = append(cleanup.Failed, CleanupFailure{Path: ref.Path(), Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return cleanup
}

// DeleteClassroom removes the classroom and everything under it.
func (s *ClassroomService) DeleteClassroom(ctx context.Context, classroomID string) (err error) {
	defer s.track("delete_classroom", time.Now(), &err)

	if err := s.cascade.DeleteClassroom(ctx, classroomID); err != nil {
		return err
	}
	s.publish(domain.EventClassroomDeleted, classroomID, "", "")
	return nil
}

func (s *ClassroomService) GetClassroom(ctx context.Context, classroomID string) (domain.Classroom, error) {
	return s.getClassroom(ctx, classroomID)
}

func (s *ClassroomService) getClassroom(ctx context.Context, classroomID string) (domain.Classroom, error) {
	doc, err := s.store.Get(ctx, classroomRef(classroomID))
	if err != nil {
		return domain.Classroom{}, storeErr("get classroom", err)
	}
	return decodeClassroom(doc)
}

// IsCreator reports whether userID created the classroom.
func (s *ClassroomService) IsCreator(ctx context.Context, classroomID, userID string) (bool, error) {
	member, err := s.GetMember(ctx, classroomID, userID)
	if errors.Is(err, domain.ErrNotMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return member.IsCreator, nil
}

func (s *ClassroomService) GetMember(ctx context.Context, classroomID, userID string) (domain.Member, error) {
	doc, err := s.store.Get(ctx, memberRef(classroomID, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Member{}, fmt.Errorf("member %s: %w", userID, domain.ErrNotMember)
	}
	if err != nil {
		return domain.Member{}, storeErr("get member", err)
	}
	var member domain.Member
	if err := doc.DataTo(&member); err != nil {
		return domain.Member{}, fmt.Errorf("decode member: %w", err)
	}
	return member, nil
}

// ListMembers returns the creator first, then everyone else by name.
func (s *ClassroomService) ListMembers(ctx context.Context, classroomID string) ([]domain.Member, error) {
	docs, err := s.store.Query(ctx, docstore.From(membersOf(classroomID)))
	if err != nil {
		return nil, storeErr("list members", err)
	}
	members := make([]domain.Member, 0, len(docs))
	for _, d := range docs {
		var m domain.Member
		if err := d.DataTo(&m); err != nil {
			return nil, fmt.Errorf("decode member %s: %w", d.Ref.ID, err)
		}
		members = append(members, m)
	}
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].IsCreator != members[j].IsCreator {
			return members[i].IsCreator
		}
		return strings.ToLower(members[i].Name) < strings.ToLower(members[j].Name)
	})
	return members, nil
}

// ListMemberships returns the classrooms userID belongs to, newest first.
// Memberships whose classroom is already gone are skipped.
func (s *ClassroomService) ListMemberships(ctx context.Context, userID string) ([]domain.Membership, error) {
	docs, err := s.store.Query(ctx, docstore.FromGroup(membersGroup).
		Where("userId", docstore.Eq, userID).
		Order("classroomCreatedAt", true))
	if err != nil {
		return nil, storeErr("list memberships", err)
	}

	resolved := make([]*domain.Membership, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, d := range docs {
		i, d := i, d
		classroom, ok := classroomOfMember(d.Ref)
		if !ok {
			continue
		}
		g.Go(func() error {
			var m domain.Member
			if err := d.DataTo(&m); err != nil {
				return fmt.Errorf("decode member: %w", err)
			}
			c, err := s.getClassroom(gctx, classroom.ID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			resolved[i] = &domain.Membership{
				ClassroomID:        c.ID,
				ClassroomName:      c.ClassroomName,
				CreatedByName:      c.CreatedByName,
				IsCreator:          m.IsCreator,
				ClassroomCreatedAt: m.ClassroomCreatedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Membership, 0, len(resolved))
	for _, m := range resolved {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

func decodeClassroom(doc docstore.Document) (domain.Classroom, error) {
	var c domain.Classroom
	if err := doc.DataTo(&c); err != nil {
		return domain.Classroom{}, fmt.Errorf("decode classroom %s: %w", doc.Ref.ID, err)
	}
	c.ID = doc.Ref.ID
	return c, nil
}
