package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected store failure")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// faultyStore fails selected writes by document path.
type faultyStore struct {
	docstore.Store

	mu        sync.Mutex
	deletes   map[string]error
	updates   map[string]error
	batchFail error
}

func (f *faultyStore) failDelete(path string) {
	f.mu.Lock()
	f.deletes[path] = errInjected
	f.mu.Unlock()
}

func (f *faultyStore) failUpdate(path string) {
	f.mu.Lock()
	f.updates[path] = errInjected
	f.mu.Unlock()
}

func (f *faultyStore) failBatches() {
	f.mu.Lock()
	f.batchFail = errInjected
	f.mu.Unlock()
}

func (f *faultyStore) heal() {
	f.mu.Lock()
	f.deletes = map[string]error{}
	f.updates = map[string]error{}
	f.batchFail = nil
	f.mu.Unlock()
}

func (f *faultyStore) Delete(ctx context.Context, ref docstore.DocRef) error {
	f.mu.Lock()
	err := f.deletes[ref.Path()]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Delete(ctx, ref)
}

func (f *faultyStore) Update(ctx context.Context, ref docstore.DocRef, fields map[string]any) error {
	f.mu.Lock()
	err := f.updates[ref.Path()]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Update(ctx, ref, fields)
}

func (f *faultyStore) Batch(ctx context.Context, writes []docstore.Write) error {
	f.mu.Lock()
	err := f.batchFail
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Batch(ctx, writes)
}

type fixture struct {
	svc    *app.Services
	mem    *memory.Store
	faults *faultyStore
	clock  *fakeClock
}

func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	mem := memory.NewStore(memory.WithClock(clock.Now))
	faults := &faultyStore{Store: mem, deletes: map[string]error{}, updates: map[string]error{}}

	seq := 0
	passwords := func() (string, error) {
		seq++
		return fmt.Sprintf("PASS%04d", seq), nil
	}
	opts = append([]app.Option{
		app.WithClock(clock.Now),
		app.WithPasswordGenerator(passwords),
		app.WithFanoutLimit(4),
	}, opts...)

	return &fixture{
		svc:    app.New(faults, opts...),
		mem:    mem,
		faults: faults,
		clock:  clock,
	}
}

func (f *fixture) user(t *testing.T, id, name string) domain.User {
	t.Helper()
	u, err := f.svc.Users.CreateUser(context.Background(), domain.User{ID: id, Name: name, Email: id + "@example.com"})
	require.NoError(t, err)
	return u
}

func (f *fixture) classroom(t *testing.T, userID, name string) domain.Classroom {
	t.Helper()
	c, err := f.svc.Classrooms.CreateClassroom(context.Background(), userID, name)
	require.NoError(t, err)
	return c
}

func (f *fixture) quiz(t *testing.T, classroomID, name string) domain.Quiz {
	t.Helper()
	q, err := f.svc.Quizzes.CreateQuiz(context.Background(), classroomID, newQuiz(name, f.clock.Now().Add(time.Hour)))
	require.NoError(t, err)
	return q
}

func (f *fixture) join(t *testing.T, userID string, c domain.Classroom) {
	t.Helper()
	_, err := f.svc.Classrooms.JoinClassroom(context.Background(), userID, c.Password)
	require.NoError(t, err)
}

func (f *fixture) submit(t *testing.T, userID, classroomID, quizID string, score int) domain.QuizStat {
	t.Helper()
	st, err := f.svc.Stats.SubmitAttempt(context.Background(), userID, classroomID, quizID,
		domain.Attempt{Score: score, TotalScore: 2})
	require.NoError(t, err)
	return st
}

func newQuiz(name string, deadline time.Time) domain.NewQuiz {
	return domain.NewQuiz{
		Name:     name,
		Deadline: deadline,
		Questions: []domain.NewQuestion{
			{Question: "1 + 1", Options: []string{"1", "2", "3"}, Answer: "2"},
			{Question: "2 + 2", Options: []string{"4", "5"}, Answer: "4"},
		},
	}
}
