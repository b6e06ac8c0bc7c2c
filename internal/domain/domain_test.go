package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"", "   ", "Biology 101", "  Intro   to\tTesting \n 2025 ",
		"ÉCOLE  Ünïcode", "a b", "MiXeD   CaSe",
	}
	for _, in := range inputs {
		once := NormalizeKey(in)
		assert.Equal(t, once, NormalizeKey(once), "input %q", in)
		assert.Equal(t, CleanName(in), CleanName(CleanName(in)), "input %q", in)
	}
	assert.Equal(t, "Intro to Testing 2025", CleanName("  Intro   to\tTesting \n 2025 "))
	assert.Equal(t, "intro to testing 2025", NormalizeKey("  Intro   to\tTesting \n 2025 "))
}

func TestClassroomNameBoundaries(t *testing.T) {
	cases := []struct {
		length int
		ok     bool
	}{{7, false}, {8, true}, {150, true}, {151, false}}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.length), func(t *testing.T) {
			name, err := ClassroomName("  " + strings.Repeat("é", tc.length) + "  ")
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, strings.Repeat("é", tc.length), name)
				return
			}
			require.ErrorIs(t, err, ErrInvalidName)
			assert.Equal(t, KindRejected, KindOf(err))
		})
	}
}

func TestQuizNameBoundaries(t *testing.T) {
	for length, ok := range map[int]bool{3: false, 4: true, 60: true, 61: false} {
		_, err := QuizName(strings.Repeat("q", length))
		if ok {
			assert.NoError(t, err, "length %d", length)
		} else {
			assert.ErrorIs(t, err, ErrInvalidName, "length %d", length)
		}
	}
	// collapsed whitespace counts once
	_, err := QuizName("a      b")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestUserName(t *testing.T) {
	_, err := UserName("   ")
	assert.ErrorIs(t, err, ErrInvalidName)
	name, err := UserName(" New   Name ")
	require.NoError(t, err)
	assert.Equal(t, "New Name", name)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindOK, KindOf(nil))
	assert.Equal(t, KindRejected, KindOf(fmt.Errorf("join: %w", ErrAlreadyMember)))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("create: %w", ErrDuplicateName)))
	assert.Equal(t, KindNotFound, KindOf(ErrNotMember))
	assert.Equal(t, KindSystem, KindOf(errors.New("connection refused")))
	assert.Equal(t, KindRejected, KindOf(NewValidationError(ErrInvalidQuestions)))
}

func validQuiz() NewQuiz {
	return NewQuiz{
		Name:     "Quiz One",
		Deadline: time.Now().Add(time.Hour),
		Questions: []NewQuestion{
			{Question: "1+1", Options: []string{"1", "2"}, Answer: "2"},
			{Question: "2+2", Options: []string{"3", "4", "5"}, Answer: "4"},
		},
	}
}

func TestValidateQuestions(t *testing.T) {
	require.NoError(t, ValidateQuestions(validQuiz()))

	tooFew := validQuiz()
	tooFew.Questions = tooFew.Questions[:1]
	assert.ErrorIs(t, ValidateQuestions(tooFew), ErrInvalidQuestions)

	tooManyOptions := validQuiz()
	tooManyOptions.Questions[0].Options = []string{"1", "2", "3", "4", "5", "6"}
	assert.ErrorIs(t, ValidateQuestions(tooManyOptions), ErrInvalidQuestions)

	badAnswer := validQuiz()
	badAnswer.Questions[1].Answer = "22"
	err := ValidateQuestions(badAnswer)
	require.ErrorIs(t, err, ErrInvalidQuestions)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "questions[1].answer", verr.Fields[0].Field)
	assert.Contains(t, verr.Fields[0].Error, "must be one of the options")

	duplicateOptions := validQuiz()
	duplicateOptions.Questions[0].Options = []string{"2", "2"}
	assert.ErrorIs(t, ValidateQuestions(duplicateOptions), ErrInvalidQuestions)
}

func TestValidateAttempt(t *testing.T) {
	assert.NoError(t, ValidateAttempt(Attempt{Score: 0, TotalScore: 2}))
	assert.NoError(t, ValidateAttempt(Attempt{Score: 2, TotalScore: 2}))
	assert.ErrorIs(t, ValidateAttempt(Attempt{Score: 3, TotalScore: 2}), ErrInvalidAttempt)
	assert.ErrorIs(t, ValidateAttempt(Attempt{Score: -1, TotalScore: 2}), ErrInvalidAttempt)
	assert.ErrorIs(t, ValidateAttempt(Attempt{Score: 0, TotalScore: 0}), ErrInvalidAttempt)
}

func TestGradeAndSummarize(t *testing.T) {
	questions := []Question{
		{ID: "a", Options: []string{"1", "2"}, Answer: "2"},
		{ID: "b", Options: []string{"3", "4"}, Answer: "4"},
	}
	graded := Grade(questions, map[string]string{"a": "2", "b": "3", "zzz": "4"})
	assert.Equal(t, Attempt{Score: 1, TotalScore: 2}, graded)

	deadline := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	quiz := Quiz{ID: "q1", QuizName: "Quiz One", Deadline: deadline}
	stats := []QuizStat{
		{UserID: "u2", Name: "Bob", Attempts: []Attempt{
			{AttemptDate: deadline.Add(-time.Hour), Score: 1, TotalScore: 2},
			{AttemptDate: deadline.Add(time.Hour), Score: 2, TotalScore: 2},
		}, LastAttemptDate: deadline.Add(time.Hour)},
		{UserID: "u3", Name: "Ada", Attempts: []Attempt{
			{AttemptDate: deadline.Add(time.Minute), Score: 0, TotalScore: 2},
		}},
	}
	s := Summarize(quiz, stats)
	assert.Equal(t, 2, s.Attempted)
	assert.Equal(t, 1, s.Late)
	assert.InDelta(t, 50.0, s.AverageBestScore, 0.001)
	require.Len(t, s.Students, 2)
	assert.Equal(t, "Ada", s.Students[0].Name)
	assert.True(t, s.Students[0].Late)
	assert.Equal(t, 2, s.Students[1].BestScore)
	assert.Equal(t, 2, s.Students[1].Attempts)
	assert.False(t, s.Students[1].Late)

	sorted := SortAttempts(stats[0].Attempts)
	assert.Equal(t, 2, sorted[0].Score)
	assert.Equal(t, 1, stats[0].Attempts[0].Score, "input order untouched")
	assert.True(t, stats[0].Attempts[1].IsLate(deadline))
}
