package domain

import "time"

// User is a profile record. Signup lives outside this service.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Classroom struct {
	ID            string    `json:"id,omitempty"`
	ClassroomName string    `json:"classroomName"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedByName string    `json:"createdByName"`
	Password      string    `json:"password"`
}

// Member is keyed by UserID inside a classroom's members collection.
type Member struct {
	UserID             string    `json:"userId"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	IsCreator          bool      `json:"isCreator"`
	ClassroomCreatedAt time.Time `json:"classroomCreatedAt"`
}

type Quiz struct {
	ID        string    `json:"id,omitempty"`
	QuizName  string    `json:"quizName"`
	CreatedAt time.Time `json:"createdAt"`
	Deadline  time.Time `json:"deadline"`
}

type Question struct {
	ID       string   `json:"id,omitempty"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// QuizStat holds every attempt of one user at one quiz, in submission order.
type QuizStat struct {
	UserID          string    `json:"userId"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	LastAttemptDate time.Time `json:"lastAttemptDate"`
	Attempts        []Attempt `json:"attempts"`
}

type Attempt struct {
	AttemptDate time.Time `json:"attemptDate"`
	Score       int       `json:"score" validate:"gte=0,ltefield=TotalScore"`
	TotalScore  int       `json:"totalScore" validate:"gt=0"`
}

// IsLate reports whether the attempt was submitted after deadline.
func (a Attempt) IsLate(deadline time.Time) bool {
	return a.AttemptDate.After(deadline)
}

// Membership is one classroom as seen from a member's dashboard.
type Membership struct {
	ClassroomID        string    `json:"classroomId"`
	ClassroomName      string    `json:"classroomName"`
	CreatedByName      string    `json:"createdByName"`
	IsCreator          bool      `json:"isCreator"`
	ClassroomCreatedAt time.Time `json:"classroomCreatedAt"`
}

// StudentResult is one row of a quiz summary.
type StudentResult struct {
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	BestScore   int       `json:"bestScore"`
	TotalScore  int       `json:"totalScore"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"lastAttempt"`
	Late        bool      `json:"late"`
}

// QuizSummary aggregates every student's stats for one quiz.
type QuizSummary struct {
	QuizID           string          `json:"quizId"`
	QuizName         string          `json:"quizName"`
	Deadline         time.Time       `json:"deadline"`
	Attempted        int             `json:"attempted"`
	Late             int             `json:"late"`
	AverageBestScore float64         `json:"averageBestScore"`
	Students         []StudentResult `json:"students"`
}

// EventType names a committed mutation.
type EventType string

const (
	EventClassroomCreated EventType = "classroom.created"
	EventClassroomRenamed EventType = "classroom.renamed"
	EventClassroomDeleted EventType = "classroom.deleted"
	EventPasswordReset    EventType = "classroom.password_regenerated"
	EventMemberJoined     EventType = "member.joined"
	EventMemberRemoved    EventType = "member.removed"
	EventQuizCreated      EventType = "quiz.created"
	EventQuizUpdated      EventType = "quiz.updated"
	EventQuizDeleted      EventType = "quiz.deleted"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventUserNameChanged  EventType = "user.name_changed"
)

// Event is published after a mutation commits.
type Event struct {
	Type        EventType `json:"type"`
	ClassroomID string    `json:"classroomId,omitempty"`
	QuizID      string    `json:"quizId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	At          time.Time `json:"at"`
}
