package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidName is returned when a name is empty or outside its length range.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidDeadline is returned when a quiz deadline is not after its creation time.
	ErrInvalidDeadline = errors.New("deadline must be after the quiz creation time")
	// ErrInvalidQuestions is returned for malformed quiz question sets.
	ErrInvalidQuestions = errors.New("invalid questions")
	// ErrInvalidPassword is returned when no classroom has the given password.
	ErrInvalidPassword = errors.New("invalid classroom password")
	// ErrAlreadyMember is returned when joining a classroom the user already belongs to.
	ErrAlreadyMember = errors.New("already a member of this classroom")
	// ErrCreatorRemoval is returned when removing a classroom's creator.
	ErrCreatorRemoval = errors.New("the classroom creator cannot be removed")
	// ErrInvalidAttempt is returned for attempts with impossible scores.
	ErrInvalidAttempt = errors.New("invalid attempt")

	// ErrDuplicateName is returned when a name is already used in its scope.
	ErrDuplicateName = errors.New("name already in use")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotMember is returned when a user acts on a classroom they do not belong to.
	ErrNotMember = errors.New("not a member of this classroom")
)

// Kind is the outcome category of an operation.
type Kind int

const (
	KindOK Kind = iota
	KindRejected
	KindConflict
	KindNotFound
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRejected:
		return "rejected"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "system"
	}
}

var rejected = []error{
	ErrInvalidName, ErrInvalidDeadline, ErrInvalidQuestions, ErrInvalidPassword,
	ErrAlreadyMember, ErrCreatorRemoval, ErrInvalidAttempt,
}

// KindOf classifies err. Anything that is not a known expected failure is a
// system error.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	for _, target := range rejected {
		if errors.Is(err, target) {
			return KindRejected
		}
	}
	switch {
	case errors.Is(err, ErrDuplicateName):
		return KindConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotMember):
		return KindNotFound
	}
	return KindSystem
}

// FieldError is a translated message for one invalid input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError carries per-field messages and unwraps to the sentinel it wraps.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, fields ...FieldError) error {
	return &ValidationError{Err: err, Fields: fields}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return ""
	}
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error
	}
	return e.Err.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
