package grading

import (
	"context"
	"fmt"
	"log"
)

// StudentGrade is one row of a batch grading run. Err is set and Grades is
// nil when the student could not be graded.
type StudentGrade struct {
	Student User
	Grades  *GradeSet
	Err     string
}

// IterateGradesFor grades every student in turn, calling fn once per
// student. A failure (including a panic) while grading one student is
// reported in that student's row and never aborts the rest of the batch.
func (e *Engine) IterateGradesFor(ctx context.Context, course Course, students []User, factories FactoryProvider, fn func(StudentGrade)) {
	for _, student := range students {
		gs, err := e.gradeOne(ctx, student, course, factories.For(student))
		if err != nil {
			log.Printf("grading: cannot grade student %s (%s) in course %s: %v",
				student.Username, student.ID, course.ID(), err)
			fn(StudentGrade{Student: student, Err: err.Error()})
			continue
		}
		fn(StudentGrade{Student: student, Grades: gs})
	}
}

func (e *Engine) gradeOne(ctx context.Context, student User, course Course, factory ModuleFactory) (gs *GradeSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("grading panicked: %v", r)
		}
	}()
	return e.Grade(ctx, student, course, factory, false)
}
