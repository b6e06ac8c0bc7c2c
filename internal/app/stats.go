package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
)

// StatsService records quiz attempts.
type StatsService struct {
	*core
	users *UserStore
}

// SubmitAttempt appends attempt to the user's stat for the quiz, creating it on
// the first attempt. The write is an upsert; concurrent submissions by the
// same user race and the last writer wins.
func (s *StatsService) SubmitAttempt(ctx context.Context, userID, classroomID, quizID string, attempt domain.Attempt) (_ domain.QuizStat, err error) {
	defer s.track("submit_attempt", time.Now(), &err)

	if attempt.AttemptDate.IsZero() {
		attempt.AttemptDate = s.now()
	}
	if err := domain.ValidateAttempt(attempt); err != nil {
		return domain.QuizStat{}, err
	}
	if _, err := s.store.Get(ctx, memberRef(classroomID, userID)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.QuizStat{}, fmt.Errorf("submit to %s: %w", classroomID, domain.ErrNotMember)
		}
		return domain.QuizStat{}, storeErr("check membership", err)
	}
	if _, err := s.store.Get(ctx, quizRef(classroomID, quizID)); err != nil {
		return domain.QuizStat{}, storeErr("get quiz", err)
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.QuizStat{}, err
	}

	stat, err := s.GetStat(ctx, classroomID, quizID, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.QuizStat{}, err
	}
	stat.UserID = user.ID
	stat.Email = user.Email
	stat.Name = user.Name
	stat.Attempts = append(stat.Attempts, attempt)
	stat.LastAttemptDate = attempt.AttemptDate

	if err := s.store.Set(ctx, statRef(classroomID, quizID, userID), stat, docstore.Merge()); err != nil {
		return domain.QuizStat{}, storeErr("write stat", err)
	}
	s.publish(domain.EventAttemptSubmitted, classroomID, quizID, userID)
	return stat, nil
}

func (s *StatsService) GetStat(ctx context.Context, classroomID, quizID, userID string) (domain.QuizStat, error) {
	doc, err := s.store.Get(ctx, statRef(classroomID, quizID, userID))
	if err != nil {
		return domain.QuizStat{}, storeErr("get stat", err)
	}
	return decodeStat(doc)
}

func (s *StatsService) ListStats(ctx context.Context, classroomID, quizID string) ([]domain.QuizStat, error) {
	docs, err := s.store.Query(ctx, docstore.From(statsOf(classroomID, quizID)))
	if err != nil {
		return nil, storeErr("list stats", err)
	}
	stats := make([]domain.QuizStat, 0, len(docs))
	for _, d := range docs {
		st, err := decodeStat(d)
		if err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// Summarize builds the creator's statistics view of one quiz.
func (s *StatsService) Summarize(ctx context.Context, classroomID, quizID string) (domain.QuizSummary, error) {
	doc, err := s.store.Get(ctx, quizRef(classroomID, quizID))
	if err != nil {
		return domain.QuizSummary{}, storeErr("get quiz", err)
	}
	quiz, err := decodeQuiz(doc)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	stats, err := s.ListStats(ctx, classroomID, quizID)
	if err != nil {
		return domain.QuizSummary{}, err
	}
	return domain.Summarize(quiz, stats), nil
}

func decodeStat(doc docstore.Document) (domain.QuizStat, error) {
	var st domain.QuizStat
	if err := doc.DataTo(&st); err != nil {
		return domain.QuizStat{}, fmt.Errorf("decode stat %s: %w", doc.Ref.Path(), err)
	}
	if st.UserID == "" {
		st.UserID = doc.Ref.ID
	}
	return st, nil
}
