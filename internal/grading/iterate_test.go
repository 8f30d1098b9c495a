package grading_test

import (
	"context"
	"strings"
	"testing"

	"github.com/opencourse/grader/internal/grading"
)

type stubProvider struct {
	byStudent map[string]grading.ModuleFactory
	fallback  grading.ModuleFactory
}

func (p *stubProvider) For(student grading.User) grading.ModuleFactory {
	if f, ok := p.byStudent[student.ID]; ok {
		return f
	}
	return p.fallback
}

type panicFactory struct{}

func (panicFactory) Module(context.Context, grading.Descriptor) grading.Module {
	panic("module exploded")
}

func TestIterateGradesForIsolatesFailures(t *testing.T) {
	p := problemDesc("p1", "Problem 1")
	course := homeworkCourse(sectionWith("Week 1", p))
	states := &stubStates{
		rows: map[string]*grading.ModuleState{
			stateKey("alice", "course-1", "p1"): {Grade: fptr(4), MaxGrade: fptr(4)},
		},
		failFor: "bob",
	}
	engine := &grading.Engine{States: states}

	students := []grading.User{
		{ID: "alice", Username: "alice"},
		{ID: "bob", Username: "bob"},
		{ID: "carol", Username: "carol"},
	}
	var rows []grading.StudentGrade
	engine.IterateGradesFor(context.Background(), course, students,
		&stubProvider{fallback: &stubFactory{}},
		func(sg grading.StudentGrade) { rows = append(rows, sg) })

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want one per student", len(rows))
	}
	if rows[0].Err != "" || rows[0].Grades == nil || rows[0].Grades.Percent != 1 {
		t.Fatalf("alice row = %+v", rows[0])
	}
	if rows[1].Err == "" || rows[1].Grades != nil {
		t.Fatalf("bob's failure must produce an error row, got %+v", rows[1])
	}
	if rows[2].Err != "" {
		t.Fatalf("carol row = %+v; one failure must not poison the batch", rows[2])
	}
}

func TestIterateGradesForRecoversPanics(t *testing.T) {
	p := problemDesc("p1", "Problem 1")
	p.always = true // forces module instantiation during grading
	course := homeworkCourse(sectionWith("Week 1", p))
	engine := &grading.Engine{States: &stubStates{}}

	var rows []grading.StudentGrade
	engine.IterateGradesFor(context.Background(), course,
		[]grading.User{{ID: "boom", Username: "boom"}},
		&stubProvider{byStudent: map[string]grading.ModuleFactory{"boom": panicFactory{}}},
		func(sg grading.StudentGrade) { rows = append(rows, sg) })

	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if !strings.Contains(rows[0].Err, "panicked") {
		t.Fatalf("err = %q, want a recovered panic", rows[0].Err)
	}
}
