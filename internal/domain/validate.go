package domain

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const answerTag = "answer_in_options"

var (
	validate   = validator.New()
	translator ut.Translator
)

func init() {
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterStructValidation(questionAnswerValidation, NewQuestion{})
	_ = validate.RegisterTranslation(answerTag, translator,
		func(t ut.Translator) error { return t.Add(answerTag, "{0} must be one of the options", false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(answerTag, fe.Field())
			return s
		},
	)
}

// NewQuestion is the input for one question of a new quiz.
type NewQuestion struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options" validate:"min=2,max=5,unique,dive,required"`
	Answer   string   `json:"answer" validate:"required"`
}

// NewQuiz is the input for quiz creation.
type NewQuiz struct {
	Name      string        `json:"name"`
	Deadline  time.Time     `json:"deadline"`
	Questions []NewQuestion `json:"questions" validate:"min=2,dive"`
}

func questionAnswerValidation(sl validator.StructLevel) {
	q := sl.Current().Interface().(NewQuestion)
	if q.Answer != "" && !slices.Contains(q.Options, q.Answer) {
		sl.ReportError(q.Answer, "answer", "Answer", answerTag, "")
	}
}

// ValidateQuestions checks the question set of a new quiz. Name and deadline
// are checked by the caller since they depend on the store and the clock.
func ValidateQuestions(nq NewQuiz) error {
	return validateStruct(nq, ErrInvalidQuestions)
}

// ValidateAttempt checks 0 <= score <= totalScore and totalScore > 0.
func ValidateAttempt(a Attempt) error {
	return validateStruct(a, ErrInvalidAttempt)
}

func validateStruct(v any, sentinel error) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(sentinel)
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fieldPath(fe.Namespace()), Error: fe.Translate(translator)}
	}
	return NewValidationError(sentinel, fields...)
}

// fieldPath drops the root struct name: "NewQuiz.questions[0].answer" -> "questions[0].answer".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
