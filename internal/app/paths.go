package app

import "classquiz-service/internal/docstore"

const (
	membersGroup = "members"
)

var (
	usersColl      = docstore.Collection("users")
	classroomsColl = docstore.Collection("classrooms")
)

func userRef(userID string) docstore.DocRef {
	return usersColl.Doc(userID)
}

func classroomRef(classroomID string) docstore.DocRef {
	return classroomsColl.Doc(classroomID)
}

func membersOf(classroomID string) docstore.CollectionRef {
	return classroomRef(classroomID).Collection("members")
}

func memberRef(classroomID, userID string) docstore.DocRef {
	return membersOf(classroomID).Doc(userID)
}

func quizzesOf(classroomID string) docstore.CollectionRef {
	return classroomRef(classroomID).Collection("quizzes")
}

func quizRef(classroomID, quizID string) docstore.DocRef {
	return quizzesOf(classroomID).Doc(quizID)
}

func questionsOf(classroomID, quizID string) docstore.CollectionRef {
	return quizRef(classroomID, quizID).Collection("quizQuestions")
}

func statsOf(classroomID, quizID string) docstore.CollectionRef {
	return quizRef(classroomID, quizID).Collection("stats")
}

func statRef(classroomID, quizID, userID string) docstore.DocRef {
	return statsOf(classroomID, quizID).Doc(userID)
}

// classroomOfMember returns the classroom a member document lives in.
func classroomOfMember(ref docstore.DocRef) (docstore.DocRef, bool) {
	parent, ok := ref.Coll.Parent()
	if !ok || parent.Coll.Path != classroomsColl.Path {
		return docstore.DocRef{}, false
	}
	return parent, true
}
