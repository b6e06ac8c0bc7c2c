package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	ClassroomNameMin = 8
	ClassroomNameMax = 150
	QuizNameMin      = 4
	QuizNameMax      = 60
	UserNameMax      = 100
)

// CleanName trims s and collapses internal whitespace runs to one space.
// This is the form names are stored in; case is preserved.
func CleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeKey is the comparison key for name uniqueness.
func NormalizeKey(s string) string {
	return strings.ToLower(CleanName(s))
}

// ClassroomName cleans raw and checks its length.
func ClassroomName(raw string) (string, error) {
	return checkedName("classroom name", raw, ClassroomNameMin, ClassroomNameMax)
}

// QuizName cleans raw and checks its length.
func QuizName(raw string) (string, error) {
	return checkedName("quiz name", raw, QuizNameMin, QuizNameMax)
}

// UserName cleans raw and checks it is non-empty and not too long.
func UserName(raw string) (string, error) {
	return checkedName("name", raw, 1, UserNameMax)
}

func checkedName(label, raw string, min, max int) (string, error) {
	name := CleanName(raw)
	if n := utf8.RuneCountInString(name); n < min || n > max {
		msg := fmt.Sprintf("%s must be %d-%d characters", label, min, max)
		if min == 1 {
			msg = fmt.Sprintf("%s must be non-empty and at most %d characters", label, max)
		}
		return "", NewValidationError(ErrInvalidName, FieldError{Field: "name", Error: msg})
	}
	return name, nil
}
