package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"classquiz-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserHeader carries the id of the authenticated caller, set by the gateway.
const UserHeader = "X-User-ID"

// Handler serves the classroom API on top of app.Services.
type Handler struct {
	svc *app.Services
	log *slog.Logger
	ws  *WSHandler
}

func NewHandler(svc *app.Services, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log, ws: NewWSHandler(svc, log)}
}

// NewRouter wires the routes, request logging and the metrics endpoint.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&slogFormatter{log: h.log}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/ws", h.ws.ServeWS)
		r.Put("/users/me/name", h.changeName)

		r.Route("/classrooms", func(r chi.Router) {
			r.Get("/", h.listMemberships)
			r.Post("/", h.createClassroom)
			r.Post("/join", h.joinClassroom)

			r.Route("/{cid}", func(r chi.Router) {
				r.Get("/", h.getClassroom)
				r.Patch("/", h.renameClassroom)
				r.Delete("/", h.deleteClassroom)
				r.Post("/password", h.regeneratePassword)
				r.Get("/members", h.listMembers)
				r.Delete("/members/{uid}", h.removeMember)

				r.Route("/quizzes", func(r chi.Router) {
					r.Get("/", h.listQuizzes)
					r.Post("/", h.createQuiz)
					r.Route("/{qid}", func(r chi.Router) {
						r.Get("/", h.getQuiz)
						r.Patch("/", h.updateQuiz)
						r.Delete("/", h.deleteQuiz)
						r.Get("/questions", h.getQuestions)
						r.Post("/attempts", h.submitAttempt)
						r.Get("/stats", h.quizSummary)
						r.Get("/stats/me", h.myStat)
					})
				})
			})
		})
	})

	return r
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + UserHeader + " header"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// slogFormatter feeds chi's request logger into slog.
type slogFormatter struct {
	log *slog.Logger
}

func (f *slogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &slogEntry{log: f.log.With(
		slog.String("requestId", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)}
}

type slogEntry struct {
	log *slog.Logger
}

func (e *slogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.log.Info("request",
		slog.Int("status", status),
		slog.Int("bytes", bytes),
		slog.Duration("elapsed", elapsed))
}

func (e *slogEntry) Panic(v interface{}, stack []byte) {
	e.log.Error("panic", slog.Any("panic", v), slog.String("stack", string(stack)))
}
