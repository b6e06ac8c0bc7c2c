package http

import (
	"net/http"
	"strconv"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type updateQuizRequest struct {
	Name     string    `json:"name"`
	Deadline time.Time `json:"deadline"`
}

type attemptRequest struct {
	Answers map[string]string `json:"answers"`
}

type quizWithQuestions struct {
	domain.Quiz
	Questions []domain.Question `json:"questions"`
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.member(w, r); !ok {
		return
	}
	order := app.QuizOrder{By: app.OrderByCreation}
	if r.URL.Query().Get("order") == string(app.OrderByDeadline) {
		order.By = app.OrderByDeadline
	}
	order.Descending, _ = strconv.ParseBool(r.URL.Query().Get("desc"))

	quizzes, err := h.svc.Quizzes.ListQuizzes(r.Context(), chi.URLParam(r, "cid"), order)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	if !h.creator(w, r) {
		return
	}
	var req domain.NewQuiz
	if !decode(w, r, &req) {
		return
	}
	cid := chi.URLParam(r, "cid")
	quiz, err := h.svc.Quizzes.CreateQuiz(r.Context(), cid, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	questions, err := h.svc.Quizzes.GetQuestions(r.Context(), cid, quiz.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quizWithQuestions{Quiz: quiz, Questions: questions})
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.member(w, r); !ok {
		return
	}
	quiz, err := h.svc.Quizzes.GetQuiz(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "qid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) updateQuiz(w http.ResponseWriter, r *http.Request) {
	if !h.creator(w, r) {
		return
	}
	var req updateQuizRequest
	if !decode(w, r, &req) {
		return
	}
	cid, qid := chi.URLParam(r, "cid"), chi.URLParam(r, "qid")
	if _, err := h.svc.Quizzes.UpdateQuiz(r.Context(), cid, qid, req.Name, req.Deadline); err != nil {
		h.writeError(w, r, err)
		return
	}
	quiz, err := h.svc.Quizzes.GetQuiz(r.Context(), cid, qid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	if !h.creator(w, r) {
		return
	}
	if err := h.svc.Quizzes.DeleteQuiz(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "qid")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getQuestions hides the answer key from everyone but the creator.
func (h *Handler) getQuestions(w http.ResponseWriter, r *http.Request) {
	m, ok := h.member(w, r)
	if !ok {
		return
	}
	questions, err := h.svc.Quizzes.GetQuestions(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "qid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !m.IsCreator {
		for i := range questions {
			questions[i].Answer = ""
		}
	}
	writeJSON(w, http.StatusOK, questions)
}

// submitAttempt grades the chosen options server-side and records the result.
func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.member(w, r); !ok {
		return
	}
	var req attemptRequest
	if !decode(w, r, &req) {
		return
	}
	cid, qid := chi.URLParam(r, "cid"), chi.URLParam(r, "qid")
	attempt, err := h.svc.Quizzes.Grade(r.Context(), cid, qid, req.Answers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stat, err := h.svc.Stats.SubmitAttempt(r.Context(), callerID(r), cid, qid, attempt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stat)
}

func (h *Handler) quizSummary(w http.ResponseWriter, r *http.Request) {
	if !h.creator(w, r) {
		return
	}
	summary, err := h.svc.Stats.Summarize(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "qid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) myStat(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.member(w, r); !ok {
		return
	}
	stat, err := h.svc.Stats.GetStat(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "qid"), callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stat.Attempts = domain.SortAttempts(stat.Attempts)
	writeJSON(w, http.StatusOK, stat)
}
