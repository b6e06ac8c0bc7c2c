package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateQuizWritesQuestionsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")

	q := f.quiz(t, c.ID, "  Cells   quiz ")
	assert.Equal(t, "Cells quiz", q.QuizName)
	assert.True(t, q.CreatedAt.Equal(f.clock.Now()))

	questions, err := f.svc.Quizzes.GetQuestions(ctx, c.ID, q.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "1 + 1", questions[0].Question)
	assert.Equal(t, "2 + 2", questions[1].Question)
	assert.NotEmpty(t, questions[0].ID)
}

func TestCreateQuizRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")
	later := f.clock.Now().Add(time.Hour)

	tests := []struct {
		name string
		in   domain.NewQuiz
		want error
	}{
		{name: "name too short", in: newQuiz("abc", later), want: domain.ErrInvalidName},
		{name: "name too long", in: newQuiz(strings.Repeat("q", 61), later), want: domain.ErrInvalidName},
		{name: "deadline now", in: newQuiz("Quiz One", f.clock.Now()), want: domain.ErrInvalidDeadline},
		{name: "deadline past", in: newQuiz("Quiz One", f.clock.Now().Add(-time.Minute)), want: domain.ErrInvalidDeadline},
		{name: "one question", in: func() domain.NewQuiz {
			nq := newQuiz("Quiz One", later)
			nq.Questions = nq.Questions[:1]
			return nq
		}(), want: domain.ErrInvalidQuestions},
		{name: "answer not an option", in: func() domain.NewQuiz {
			nq := newQuiz("Quiz One", later)
			nq.Questions[0].Answer = "7"
			return nq
		}(), want: domain.ErrInvalidQuestions},
		{name: "single option", in: func() domain.NewQuiz {
			nq := newQuiz("Quiz One", later)
			nq.Questions[1].Options = []string{"4"}
			return nq
		}(), want: domain.ErrInvalidQuestions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Quizzes.CreateQuiz(ctx, c.ID, tt.in)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, domain.KindRejected, domain.KindOf(err))
		})
	}

	quizzes, err := f.svc.Quizzes.ListQuizzes(ctx, c.ID, app.QuizOrder{})
	require.NoError(t, err)
	assert.Empty(t, quizzes)
}

func TestCreateQuizNameBoundaries(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")
	for length, ok := range map[int]bool{3: false, 4: true, 60: true, 61: false} {
		_, err := f.svc.Quizzes.CreateQuiz(context.Background(), c.ID,
			newQuiz(strings.Repeat("q", length), f.clock.Now().Add(time.Hour)))
		if ok {
			assert.NoError(t, err, "length %d", length)
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidName, "length %d", length)
		}
	}
}

func TestCreateQuizDuplicateName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	bio := f.classroom(t, "u1", "Biology 101")
	chem := f.classroom(t, "u1", "Chemistry 101")
	f.quiz(t, bio.ID, "Cells quiz")

	_, err := f.svc.Quizzes.CreateQuiz(ctx, bio.ID, newQuiz("CELLS  QUIZ", f.clock.Now().Add(time.Hour)))
	require.ErrorIs(t, err, domain.ErrDuplicateName)

	// quiz names are scoped to their classroom
	f.quiz(t, chem.ID, "Cells quiz")
}

func TestCreateQuizUnknownClassroom(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Quizzes.CreateQuiz(context.Background(), "missing", newQuiz("Quiz One", f.clock.Now().Add(time.Hour)))
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCreateQuizDeadlineCheckedAgainstCommitTime(t *testing.T) {
	var f *fixture
	f = newFixture(t, app.WithClock(func() time.Time { return f.clock.Now().Add(-time.Hour) }))
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")

	// ahead of the service clock but behind the commit timestamp
	_, err := f.svc.Quizzes.CreateQuiz(ctx, c.ID, newQuiz("Quiz One", f.clock.Now().Add(-time.Minute)))
	require.ErrorIs(t, err, domain.ErrInvalidDeadline)
	assert.Equal(t, domain.KindRejected, domain.KindOf(err))
	assert.Empty(t, f.mem.Paths("classrooms/"+c.ID+"/quizzes/"))

	q, err := f.svc.Quizzes.CreateQuiz(ctx, c.ID, newQuiz("Quiz One", f.clock.Now().Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, q.Deadline.After(q.CreatedAt))
}

func TestGetQuestionsUnknownQuiz(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")

	_, err := f.svc.Quizzes.GetQuestions(context.Background(), c.ID, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCreateQuizRemovesQuizWhenQuestionsFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")

	f.faults.failBatches()
	_, err := f.svc.Quizzes.CreateQuiz(ctx, c.ID, newQuiz("Quiz One", f.clock.Now().Add(time.Hour)))
	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, domain.KindSystem, domain.KindOf(err))
	assert.Empty(t, f.mem.Paths("classrooms/"+c.ID+"/quizzes/"))

	f.faults.heal()
	f.quiz(t, c.ID, "Quiz One")
}

func TestUpdateQuizDeadlineBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")
	q := f.quiz(t, c.ID, "Quiz One")
	f.quiz(t, c.ID, "Quiz Two")

	_, err := f.svc.Quizzes.UpdateQuiz(ctx, c.ID, q.ID, "Quiz One", q.CreatedAt)
	require.ErrorIs(t, err, domain.ErrInvalidDeadline)

	_, err = f.svc.Quizzes.UpdateQuiz(ctx, c.ID, q.ID, "quiz two", q.CreatedAt.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrDuplicateName)

	deadline := q.CreatedAt.Add(time.Nanosecond)
	name, err := f.svc.Quizzes.UpdateQuiz(ctx, c.ID, q.ID, "Quiz One renamed", deadline)
	require.NoError(t, err)
	assert.Equal(t, "Quiz One renamed", name)

	got, err := f.svc.Quizzes.GetQuiz(ctx, c.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quiz One renamed", got.QuizName)
	assert.True(t, got.Deadline.Equal(deadline))

	_, err = f.svc.Quizzes.UpdateQuiz(ctx, c.ID, "missing", "Quiz Three", deadline)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestListQuizzesOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")

	start := f.clock.Now()
	create := func(name string, deadline time.Duration) string {
		q, err := f.svc.Quizzes.CreateQuiz(ctx, c.ID, newQuiz(name, start.Add(deadline)))
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
		return q.ID
	}
	first := create("First quiz", 3*time.Hour)
	second := create("Second quiz", time.Hour)
	third := create("Third quiz", 2*time.Hour)

	ids := func(order app.QuizOrder) []string {
		quizzes, err := f.svc.Quizzes.ListQuizzes(ctx, c.ID, order)
		require.NoError(t, err)
		out := make([]string, len(quizzes))
		for i, q := range quizzes {
			out[i] = q.ID
		}
		return out
	}
	assert.Equal(t, []string{first, second, third}, ids(app.QuizOrder{By: app.OrderByCreation}))
	assert.Equal(t, []string{third, second, first}, ids(app.QuizOrder{By: app.OrderByCreation, Descending: true}))
	assert.Equal(t, []string{second, third, first}, ids(app.QuizOrder{By: app.OrderByDeadline}))
	assert.Equal(t, []string{first, third, second}, ids(app.QuizOrder{By: app.OrderByDeadline, Descending: true}))
}

func TestGradeUsesAnswerKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	c := f.classroom(t, "u1", "Biology 101")
	q := f.quiz(t, c.ID, "Quiz One")

	questions, err := f.svc.Quizzes.GetQuestions(ctx, c.ID, q.ID)
	require.NoError(t, err)

	attempt, err := f.svc.Quizzes.Grade(ctx, c.ID, q.ID, map[string]string{
		questions[0].ID: "2",
		questions[1].ID: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.Score)
	assert.Equal(t, 2, attempt.TotalScore)

	_, err = f.svc.Quizzes.Grade(ctx, c.ID, "missing", nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDeleteQuizRemovesSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "u1", "Teacher")
	f.user(t, "u2", "Student")
	c := f.classroom(t, "u1", "Biology 101")
	f.join(t, "u2", c)
	q := f.quiz(t, c.ID, "Quiz One")
	keep := f.quiz(t, c.ID, "Quiz Two")
	f.submit(t, "u2", c.ID, q.ID, 2)

	require.NoError(t, f.svc.Quizzes.DeleteQuiz(ctx, c.ID, q.ID))
	assert.Empty(t, f.mem.Paths("classrooms/"+c.ID+"/quizzes/"+q.ID))

	_, err := f.svc.Quizzes.GetQuiz(ctx, c.ID, keep.ID)
	require.NoError(t, err)
}
