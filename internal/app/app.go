// Package app is the classroom and quiz core: identity reads, name
// uniqueness, classroom and quiz lifecycles, attempt recording, name
// propagation and cascading deletes, all written against docstore.Store.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"classquiz-service/internal/docstore"
	"classquiz-service/internal/domain"
)

// DefaultFanoutLimit bounds the store calls a single fan-out keeps in flight.
const DefaultFanoutLimit = 16

// Recorder receives per-operation outcomes. metrics.Metrics implements it.
type Recorder interface {
	Observe(operation, outcome string, d time.Duration)
	FanoutFailure(operation string)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, string, time.Duration) {}
func (nopRecorder) FanoutFailure(string)                  {}

// core is the state every service shares.
type core struct {
	store     docstore.Store
	log       *slog.Logger
	rec       Recorder
	events    *Events
	now       func() time.Time
	limit     int
	passwords func() (string, error)
}

type Option func(*core)

func WithLogger(l *slog.Logger) Option {
	return func(c *core) { c.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(c *core) { c.rec = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *core) { c.now = now }
}

// WithFanoutLimit caps concurrent store calls per fan-out. n <= 0 keeps the default.
func WithFanoutLimit(n int) Option {
	return func(c *core) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithPasswordGenerator replaces the classroom password generator.
func WithPasswordGenerator(gen func() (string, error)) Option {
	return func(c *core) { c.passwords = gen }
}

func WithEvents(e *Events) Option {
	return func(c *core) { c.events = e }
}

// Services is the wired set of use cases, built once per process.
type Services struct {
	Users      *UserStore
	Uniqueness *UniquenessChecker
	Classrooms *ClassroomService
	Quizzes    *QuizService
	Stats      *StatsService
	Profiles   *ProfileService
	Cascade    *Cascade
	Events     *Events
}

func New(store docstore.Store, opts ...Option) *Services {
	c := &core{
		store:     store,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		rec:       nopRecorder{},
		now:       time.Now,
		limit:     DefaultFanoutLimit,
		passwords: GeneratePassword,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.events == nil {
		c.events = NewEvents(DefaultEventBuffer)
	}

	users := &UserStore{core: c}
	uniq := &UniquenessChecker{core: c}
	cascade := &Cascade{core: c}
	return &Services{
		Users:      users,
		Uniqueness: uniq,
		Classrooms: &ClassroomService{core: c, users: users, uniq: uniq, cascade: cascade},
		Quizzes:    &QuizService{core: c, uniq: uniq, cascade: cascade},
		Stats:      &StatsService{core: c, users: users},
		Profiles:   &ProfileService{core: c},
		Cascade:    cascade,
		Events:     c.events,
	}
}

// track records the outcome of an operation; call it deferred with a pointer
// to the named error result.
func (c *core) track(op string, start time.Time, err *error) {
	kind := domain.KindOf(*err)
	c.rec.Observe(op, kind.String(), time.Since(start))
	if kind == domain.KindSystem {
		c.log.Error("operation failed", slog.String("op", op), slog.String("error", (*err).Error()))
	}
}

func (c *core) publish(t domain.EventType, classroomID, quizID, userID string) {
	c.events.Publish(domain.Event{
		Type:        t,
		ClassroomID: classroomID,
		QuizID:      quizID,
		UserID:      userID,
		At:          c.now(),
	})
}

// storeErr wraps a store failure, translating a missing document into
// domain.ErrNotFound.
func storeErr(op string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func rejected(sentinel error, field, msg string) error {
	return domain.NewValidationError(sentinel, domain.FieldError{Field: field, Error: msg})
}
