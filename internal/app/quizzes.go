package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
)

// QuizOrderField selects the quiz list ordering.
type QuizOrderField string

const (
	OrderByCreation QuizOrderField = "creationDate"
	OrderByDeadline QuizOrderField = "deadline"
)

type QuizOrder struct {
	By         QuizOrderField
	Descending bool
}

func (o QuizOrder) field() string {
	if o.By == OrderByDeadline {
		return "deadline"
	}
	return "createdAt"
}

// QuizService manages quizzes and their questions.
type QuizService struct {
	*core
	uniq    *UniquenessChecker
	cascade *Cascade
}

// CreateQuiz writes the quiz and then all its questions in one batch. If the
// batch fails the quiz document is removed again, so a quiz is never seen
// with only some of its questions.
func (s *QuizService) CreateQuiz(ctx context.Context, classroomID string, nq domain.NewQuiz) (_ domain.Quiz, err error) {
	defer s.track("create_quiz", time.Now(), &err)

	name, err := domain.QuizName(nq.Name)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := domain.ValidateQuestions(nq); err != nil {
		return domain.Quiz{}, err
	}
	if !nq.Deadline.After(s.now()) {
		return domain.Quiz{}, rejected(domain.ErrInvalidDeadline, "deadline", "deadline must be in the future")
	}
	if _, err := s.store.Get(ctx, classroomRef(classroomID)); err != nil {
		return domain.Quiz{}, storeErr("get classroom", err)
	}
	unique, err := s.uniq.QuizNameUnique(ctx, classroomID, name, "")
	if err != nil {
		return domain.Quiz{}, err
	}
	if !unique {
		return domain.Quiz{}, duplicate("quiz", name)
	}

	ref, err := s.store.Create(ctx, quizzesOf(classroomID), map[string]any{
		"quizName": name,
		"deadline": nq.Deadline,
	}, docstore.ServerTimestamp("createdAt"))
	if err != nil {
		return domain.Quiz{}, storeErr("create quiz", err)
	}
	// createdAt is stamped at commit, which can pass the deadline checked above.
	created, err := s.GetQuiz(ctx, classroomID, ref.ID)
	if err != nil {
		s.discardQuiz(ctx, ref)
		return domain.Quiz{}, err
	}
	if !created.Deadline.After(created.CreatedAt) {
		s.discardQuiz(ctx, ref)
		return domain.Quiz{}, rejected(domain.ErrInvalidDeadline, "deadline", "deadline must be after the quiz creation time")
	}

	questions := questionsOf(classroomID, ref.ID)
	writes := make([]docstore.Write, len(nq.Questions))
	for i, q := range nq.Questions {
		writes[i] = docstore.SetWrite(questions.Doc(docstore.NewID()), map[string]any{
			"question": q.Question,
			"options":  q.Options,
			"answer":   q.Answer,
			"position": i,
		})
	}
	if err := s.store.Batch(ctx, writes); err != nil {
		s.discardQuiz(ctx, ref)
		return domain.Quiz{}, storeErr("write questions", err)
	}

	s.publish(domain.EventQuizCreated, classroomID, created.ID, "")
	return created, nil
}

func (s *QuizService) discardQuiz(ctx context.Context, ref docstore.DocRef) {
	if err := s.store.Delete(ctx, ref); err != nil {
		s.log.Error("quiz left without questions",
			slog.String("path", ref.Path()),
			slog.String("error", err.Error()))
	}
}

// UpdateQuiz renames and reschedules a quiz in one write. The deadline must
// stay after the quiz creation time.
func (s *QuizService) UpdateQuiz(ctx context.Context, classroomID, quizID, rawName string, deadline time.Time) (_ string, err error) {
	defer s.track("update_quiz", time.Now(), &err)

	name, err := domain.QuizName(rawName)
	if err != nil {
		return "", err
	}
	current, err := s.GetQuiz(ctx, classroomID, quizID)
	if err != nil {
		return "", err
	}
	if !deadline.After(current.CreatedAt) {
		return "", rejected(domain.ErrInvalidDeadline, "deadline", "deadline must be after the quiz creation time")
	}
	unique, err := s.uniq.QuizNameUnique(ctx, classroomID, name, quizID)
	if err != nil {
		return "", err
	}
	if !unique {
		return "", duplicate("quiz", name)
	}
	if err := s.store.Update(ctx, quizRef(classroomID, quizID), map[string]any{
		"quizName": name,
		"deadline": deadline,
	}); err != nil {
		return "", storeErr("update quiz", err)
	}
	s.publish(domain.EventQuizUpdated, classroomID, quizID, "")
	return name, nil
}

// DeleteQuiz removes the quiz with its questions and stats.
func (s *QuizService) DeleteQuiz(ctx context.Context, classroomID, quizID string) (err error) {
	defer s.track("delete_quiz", time.Now(), &err)

	if err := s.cascade.DeleteQuiz(ctx, classroomID, quizID); err != nil {
		return err
	}
	s.publish(domain.EventQuizDeleted, classroomID, quizID, "")
	return nil
}

func (s *QuizService) GetQuiz(ctx context.Context, classroomID, quizID string) (domain.Quiz, error) {
	doc, err := s.store.Get(ctx, quizRef(classroomID, quizID))
	if err != nil {
		return domain.Quiz{}, storeErr("get quiz", err)
	}
	return decodeQuiz(doc)
}

func (s *QuizService) ListQuizzes(ctx context.Context, classroomID string, order QuizOrder) ([]domain.Quiz, error) {
	docs, err := s.store.Query(ctx, docstore.From(quizzesOf(classroomID)).Order(order.field(), order.Descending))
	if err != nil {
		return nil, storeErr("list quizzes", err)
	}
	quizzes := make([]domain.Quiz, 0, len(docs))
	for _, d := range docs {
		q, err := decodeQuiz(d)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, nil
}

// GetQuestions returns the quiz questions in the order they were written.
func (s *QuizService) GetQuestions(ctx context.Context, classroomID, quizID string) ([]domain.Question, error) {
	if _, err := s.store.Get(ctx, quizRef(classroomID, quizID)); err != nil {
		return nil, storeErr("get quiz", err)
	}
	docs, err := s.store.Query(ctx, docstore.From(questionsOf(classroomID, quizID)).Order("position", false))
	if err != nil {
		return nil, storeErr("list questions", err)
	}
	questions := make([]domain.Question, 0, len(docs))
	for _, d := range docs {
		var q domain.Question
		if err := d.DataTo(&q); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", d.Ref.ID, err)
		}
		q.ID = d.Ref.ID
		questions = append(questions, q)
	}
	return questions, nil
}

// Grade scores chosen options against the quiz's answer key.
func (s *QuizService) Grade(ctx context.Context, classroomID, quizID string, answers map[string]string) (domain.Attempt, error) {
	questions, err := s.GetQuestions(ctx, classroomID, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if len(questions) == 0 {
		return domain.Attempt{}, fmt.Errorf("grade quiz %s: %w", quizID, domain.ErrNotFound)
	}
	return domain.Grade(questions, answers), nil
}

func decodeQuiz(doc docstore.Document) (domain.Quiz, error) {
	var q domain.Quiz
	if err := doc.DataTo(&q); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode quiz %s: %w", doc.Ref.ID, err)
	}
	q.ID = doc.Ref.ID
	return q, nil
}
